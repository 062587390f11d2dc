package models

import "time"

// OfferRequest is an offer drafted through the offer wizard
type OfferRequest struct {
	OfferID               string      `gorm:"primarykey;column:offer_id" json:"offerId"`
	AgentID               string      `gorm:"column:agent_id;not null;index" json:"agentId"`
	TransactionID         *string     `gorm:"column:transaction_id;index" json:"transactionId,omitempty"`
	BuyerNames            StringList  `gorm:"column:buyer_names;type:text" json:"buyerNames"`
	BuyerEmail            string      `gorm:"column:buyer_email;not null" json:"buyerEmail"`
	BuyerPhone            string      `gorm:"column:buyer_phone" json:"buyerPhone,omitempty"`
	PropertyAddress       string      `gorm:"column:property_address;not null" json:"propertyAddress"`
	PurchasePrice         float64     `gorm:"column:purchase_price;not null" json:"purchasePrice"`
	LoanType              string      `gorm:"column:loan_type;not null" json:"loanType"`
	EarnestMoney          float64     `gorm:"column:earnest_money;not null;default:0" json:"earnestMoney"`
	DownPayment           *float64    `gorm:"column:down_payment" json:"downPayment,omitempty"`
	FinancingContingency  bool        `gorm:"column:financing_contingency;not null;default:false" json:"financingContingency"`
	InspectionContingency bool        `gorm:"column:inspection_contingency;not null;default:false" json:"inspectionContingency"`
	AppraisalContingency  bool        `gorm:"column:appraisal_contingency;not null;default:false" json:"appraisalContingency"`
	InspectionPeriodDays  *int        `gorm:"column:inspection_period_days" json:"inspectionPeriodDays,omitempty"`
	ClosingDate           *time.Time  `gorm:"column:closing_date" json:"closingDate,omitempty"`
	Notes                 string      `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Status                OfferStatus `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
	WizardSessionID       *string     `gorm:"column:wizard_session_id;uniqueIndex" json:"-"`
	BaseModel
}

// TableName sets the table name for GORM
func (OfferRequest) TableName() string {
	return "offer_requests"
}
