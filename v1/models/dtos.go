package models

import (
	"fmt"
	"strings"
)

// Request/Response DTOs for V1 API endpoints

// UpdateTransactionStatusRequest changes one transaction's status
type UpdateTransactionStatusRequest struct {
	Status TransactionStatus `json:"status"`
}

// Validate checks the requested status
func (r *UpdateTransactionStatusRequest) Validate() error {
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid transaction status %q", r.Status)
	}
	return nil
}

// BulkStatusUpdateRequest moves many transactions to one status in a single batched call
type BulkStatusUpdateRequest struct {
	TransactionIDs []string          `json:"transactionIds"`
	Status         TransactionStatus `json:"status"`
}

// Validate checks ids and status
func (r *BulkStatusUpdateRequest) Validate() error {
	if len(r.TransactionIDs) == 0 {
		return fmt.Errorf("transactionIds must not be empty")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid transaction status %q", r.Status)
	}
	return nil
}

// ReassignTransactionsRequest moves transactions to another agent
type ReassignTransactionsRequest struct {
	TransactionIDs []string `json:"transactionIds"`
	AgentID        string   `json:"agentId"`
}

// Validate checks ids and agent
func (r *ReassignTransactionsRequest) Validate() error {
	if len(r.TransactionIDs) == 0 {
		return fmt.Errorf("transactionIds must not be empty")
	}
	if strings.TrimSpace(r.AgentID) == "" {
		return fmt.Errorf("agentId is required")
	}
	return nil
}

// BatchUpdateResponse reports how many rows a batched call touched
type BatchUpdateResponse struct {
	Requested int   `json:"requested"`
	Updated   int64 `json:"updated"`
}

// InviteAgentRequest creates an agent profile and queues its setup link
type InviteAgentRequest struct {
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone,omitempty"`
	Brokerage   string      `json:"brokerage,omitempty"`
	SetupMethod SetupMethod `json:"setupMethod,omitempty"`
}

// Validate returns the offending fields, or nil
func (r *InviteAgentRequest) Validate() map[string]string {
	fields := make(map[string]string)
	if strings.TrimSpace(r.FirstName) == "" {
		fields["firstName"] = "is required"
	}
	if strings.TrimSpace(r.LastName) == "" {
		fields["lastName"] = "is required"
	}
	if strings.TrimSpace(r.Email) == "" {
		fields["email"] = "is required"
	} else if len(r.Email) > MaxEmailLength {
		fields["email"] = "is too long"
	}
	if len(r.Phone) > MaxPhoneLength+5 {
		fields["phone"] = "is too long"
	}
	switch r.SetupMethod {
	case "", SetupMethodInvitation, SetupMethodManual, SetupMethodBulkImport:
	default:
		fields["setupMethod"] = "must be one of invitation, manual, bulk_import"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// UpdateAgentStatusRequest changes an agent's invitation status
type UpdateAgentStatusRequest struct {
	InvitationStatus InvitationStatus `json:"invitationStatus"`
}

// DeleteAgentRequest carries the typed confirmation for a single delete
type DeleteAgentRequest struct {
	Confirmation string `json:"confirmation"`
}

// BulkAgentActionRequest runs activate, deactivate or delete over selected agents
type BulkAgentActionRequest struct {
	AgentIDs     []string `json:"agentIds"`
	Action       string   `json:"action"`
	Confirmation string   `json:"confirmation,omitempty"`
}

// CompleteSetupRequest links an agent profile to the auth subject that finished setup
type CompleteSetupRequest struct {
	UserID string `json:"userId"`
}

// ImportAgentsRequest is the JSON form of a CSV import
type ImportAgentsRequest struct {
	CSV string `json:"csv"`
}

// Import row outcomes
const (
	ImportRowCreated = "created"
	ImportRowSkipped = "skipped"
	ImportRowFailed  = "failed"
)

// ImportRowResult is the outcome of one data row
type ImportRowResult struct {
	Row     int    `json:"row"`
	Email   string `json:"email,omitempty"`
	Status  string `json:"status"`
	AgentID string `json:"agentId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ImportAgentsResponse summarises a CSV import
type ImportAgentsResponse struct {
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
	Rows    []ImportRowResult `json:"rows"`
}

// CreateVendorRequest adds a vendor to an agent's list
type CreateVendorRequest struct {
	VendorType  VendorType `json:"vendorType"`
	CompanyName string     `json:"companyName"`
	ContactName string     `json:"contactName,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	IsPrimary   bool       `json:"isPrimary"`
}

// Validate returns the offending fields, or nil
func (r *CreateVendorRequest) Validate() map[string]string {
	fields := make(map[string]string)
	if !r.VendorType.IsValid() {
		fields["vendorType"] = "is not a known vendor type"
	}
	if strings.TrimSpace(r.CompanyName) == "" {
		fields["companyName"] = "is required"
	}
	if len(r.Notes) > MaxNotesLength {
		fields["notes"] = "is too long"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// UpdateVendorRequest patches vendor contact details; nil fields are left alone
type UpdateVendorRequest struct {
	CompanyName *string `json:"companyName,omitempty"`
	ContactName *string `json:"contactName,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// UpdateOfferStatusRequest changes an offer's status
type UpdateOfferStatusRequest struct {
	Status OfferStatus `json:"status"`
}

// UpdateWizardStepRequest merges data into one wizard step
type UpdateWizardStepRequest struct {
	Data map[string]interface{} `json:"data"`
}

// WizardStepInfo describes a step for the client
type WizardStepInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// WizardSessionResponse is the session view returned by every wizard endpoint
type WizardSessionResponse struct {
	SessionID     string                            `json:"sessionId"`
	Kind          WizardKind                        `json:"kind"`
	Steps         []WizardStepInfo                  `json:"steps"`
	CurrentStep   int                               `json:"currentStep"`
	CurrentStepID string                            `json:"currentStepId"`
	CollectedData map[string]map[string]interface{} `json:"collectedData"`
	FieldErrors   map[string]string                 `json:"fieldErrors,omitempty"`
	CanSubmit     bool                              `json:"canSubmit"`
	Submitted     bool                              `json:"submitted"`
	ResultID      string                            `json:"resultId,omitempty"`
	UpdatedAt     string                            `json:"updatedAt"`
}

// ChangeEventType is the kind of write a change event reports
type ChangeEventType string

const (
	ChangeInsert ChangeEventType = "INSERT"
	ChangeUpdate ChangeEventType = "UPDATE"
	ChangeDelete ChangeEventType = "DELETE"
)

// ChangeEvent is pushed to subscribers after a committed write
type ChangeEvent struct {
	Table string          `json:"table"`
	Type  ChangeEventType `json:"type"`
	ID    string          `json:"id"`
	At    string          `json:"at"`
}

// Notification levels
const (
	NotificationSuccess = "success"
	NotificationError   = "error"
	NotificationInfo    = "info"
)

// Notification is a user-facing message delivered out of band
type Notification struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
