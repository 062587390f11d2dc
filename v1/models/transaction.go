package models

import "time"

// Property is the address a transaction is about
type Property struct {
	PropertyID    string `gorm:"primarykey;column:property_id" json:"propertyId"`
	StreetAddress string `gorm:"column:street_address;not null" json:"streetAddress"`
	City          string `gorm:"column:city;not null" json:"city"`
	State         string `gorm:"column:state;not null" json:"state"`
	ZipCode       string `gorm:"column:zip_code;not null" json:"zipCode"`
	PropertyType  string `gorm:"column:property_type" json:"propertyType,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (Property) TableName() string {
	return "properties"
}

// Transaction is one coordinated real-estate deal. Rows are never deleted.
type Transaction struct {
	TransactionID string            `gorm:"primarykey;column:transaction_id" json:"transactionId"`
	PropertyID    string            `gorm:"column:property_id;not null;index" json:"propertyId"`
	ServiceTier   ServiceTier       `gorm:"column:service_tier;type:varchar(50);not null" json:"serviceTier"`
	Status        TransactionStatus `gorm:"column:status;type:varchar(30);not null;default:'pending';index" json:"status"`
	AgentID       *string           `gorm:"column:agent_id;index" json:"agentId,omitempty"`
	ClosingDate   *time.Time        `gorm:"column:closing_date" json:"closingDate,omitempty"`
	PurchasePrice *float64          `gorm:"column:purchase_price" json:"purchasePrice,omitempty"`

	// WizardSessionID makes a retried wizard submit land on the same row
	WizardSessionID *string `gorm:"column:wizard_session_id;uniqueIndex" json:"-"`
	BaseModel

	Property Property      `gorm:"foreignKey:PropertyID;references:PropertyID" json:"property"`
	Agent    *AgentProfile `gorm:"foreignKey:AgentID;references:AgentID" json:"agent,omitempty"`
	Clients  []Client      `gorm:"foreignKey:TransactionID;references:TransactionID" json:"clients,omitempty"`
}

// TableName sets the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}

// PrimaryClient returns the client flagged primary, falling back to the first one
func (t *Transaction) PrimaryClient() *Client {
	for i := range t.Clients {
		if t.Clients[i].IsPrimary {
			return &t.Clients[i]
		}
	}
	if len(t.Clients) > 0 {
		return &t.Clients[0]
	}
	return nil
}

// Client is a participant in a transaction
type Client struct {
	ClientID                string                  `gorm:"primarykey;column:client_id" json:"clientId"`
	TransactionID           string                  `gorm:"column:transaction_id;not null;index" json:"transactionId"`
	FirstName               string                  `gorm:"column:first_name;not null" json:"firstName"`
	LastName                string                  `gorm:"column:last_name;not null" json:"lastName"`
	Email                   string                  `gorm:"column:email" json:"email,omitempty"`
	Phone                   string                  `gorm:"column:phone" json:"phone,omitempty"`
	Role                    ClientRole              `gorm:"column:role;type:varchar(20);not null" json:"role"`
	IsPrimary               bool                    `gorm:"column:is_primary;not null;default:false" json:"isPrimary"`
	CommunicationPreference CommunicationPreference `gorm:"column:communication_preference;type:varchar(20);not null;default:'email'" json:"communicationPreference"`
	BaseModel
}

// TableName sets the table name for GORM
func (Client) TableName() string {
	return "clients"
}

// FullName joins first and last name
func (c *Client) FullName() string {
	return joinName(c.FirstName, c.LastName)
}
