package audit

import (
	"encoding/json"
)

// AuditLogRequest is one management event written to the audit stream
type AuditLogRequest struct {
	// Correlation
	RequestID *string `json:"requestId,omitempty"`

	// ISO 8601, required
	Timestamp string `json:"timestamp"`

	// Classification
	EventType   string `json:"eventType"`   // MANAGEMENT_EVENT, BULK_OPERATION, IMPORT
	EventAction string `json:"eventAction"` // CREATE, UPDATE, DELETE
	Status      string `json:"status"`      // SUCCESS, FAILURE

	// Actor
	ActorType string `json:"actorType"` // ADMIN, COORDINATOR, AGENT, SYSTEM
	ActorID   string `json:"actorId"`

	// Target
	TargetType string  `json:"targetType"` // TRANSACTIONS, AGENTS, OFFERS, VENDORS, WIZARDS
	TargetID   *string `json:"targetId,omitempty"`

	// Metadata without PII
	AdditionalMetadata json.RawMessage `json:"additionalMetadata,omitempty"`
}

// Audit log status constants
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Event type constants
const (
	EventTypeManagement = "MANAGEMENT_EVENT"
	EventTypeBulk       = "BULK_OPERATION"
	EventTypeImport     = "IMPORT"
)

// Fields flattens the event into the string map stored in a Redis stream entry
func (r *AuditLogRequest) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"timestamp":   r.Timestamp,
		"eventType":   r.EventType,
		"eventAction": r.EventAction,
		"status":      r.Status,
		"actorType":   r.ActorType,
		"actorId":     r.ActorID,
		"targetType":  r.TargetType,
	}
	if r.RequestID != nil {
		fields["requestId"] = *r.RequestID
	}
	if r.TargetID != nil {
		fields["targetId"] = *r.TargetID
	}
	if len(r.AdditionalMetadata) > 0 {
		fields["additionalMetadata"] = string(r.AdditionalMetadata)
	}
	return fields
}
