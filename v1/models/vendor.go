package models

// Vendor is a service provider on an agent's list.
// At most one vendor per (agent_id, vendor_type) has IsPrimary set.
type Vendor struct {
	VendorID    string     `gorm:"primarykey;column:vendor_id" json:"vendorId"`
	AgentID     string     `gorm:"column:agent_id;not null;index:idx_vendors_agent_type;uniqueIndex:idx_vendors_one_primary,where:is_primary = true" json:"agentId"`
	VendorType  VendorType `gorm:"column:vendor_type;type:varchar(20);not null;index:idx_vendors_agent_type;uniqueIndex:idx_vendors_one_primary,where:is_primary = true" json:"vendorType"`
	CompanyName string     `gorm:"column:company_name;not null" json:"companyName"`
	ContactName string     `gorm:"column:contact_name" json:"contactName,omitempty"`
	Email       string     `gorm:"column:email" json:"email,omitempty"`
	Phone       string     `gorm:"column:phone" json:"phone,omitempty"`
	Notes       string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
	IsPrimary   bool       `gorm:"column:is_primary;not null;default:false" json:"isPrimary"`
	BaseModel
}

// TableName sets the table name for GORM
func (Vendor) TableName() string {
	return "vendors"
}
