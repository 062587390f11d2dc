package models

import (
	"strings"
	"time"
)

// AgentProfile is an agent's account in the portal
type AgentProfile struct {
	AgentID          string           `gorm:"primarykey;column:agent_id" json:"agentId"`
	UserID           *string          `gorm:"column:user_id;uniqueIndex" json:"userId,omitempty"`
	FirstName        string           `gorm:"column:first_name;not null" json:"firstName"`
	LastName         string           `gorm:"column:last_name;not null" json:"lastName"`
	Email            string           `gorm:"column:email;not null;unique" json:"email"`
	Phone            string           `gorm:"column:phone" json:"phone,omitempty"`
	Brokerage        string           `gorm:"column:brokerage" json:"brokerage,omitempty"`
	InvitationStatus InvitationStatus `gorm:"column:invitation_status;type:varchar(20);not null;default:'pending'" json:"invitationStatus"`
	AccountStatus    AccountStatus    `gorm:"column:account_status;type:varchar(20);not null;default:'active'" json:"accountStatus"`
	SetupMethod      SetupMethod      `gorm:"column:setup_method;type:varchar(20);not null;default:'invitation'" json:"setupMethod"`
	InvitedAt        *time.Time       `gorm:"column:invited_at" json:"invitedAt,omitempty"`
	SetupLinkSentAt  *time.Time       `gorm:"column:setup_link_sent_at" json:"setupLinkSentAt,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (AgentProfile) TableName() string {
	return "agent_profiles"
}

// FullName joins first and last name
func (a *AgentProfile) FullName() string {
	return joinName(a.FirstName, a.LastName)
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
