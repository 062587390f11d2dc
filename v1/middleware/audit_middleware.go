package middleware

import (
	"context"
	"log/slog"
	"net/http"

	auditpkg "github.com/concierge-tc/portal-backend/shared/audit"
	"github.com/concierge-tc/portal-backend/v1/models"
)

// AuditEntry describes one write operation for the audit stream
type AuditEntry struct {
	EventType  string
	Resource   models.ResourceType
	ResourceID *string
	Status     models.AuditStatus
	Metadata   map[string]interface{}
}

// LogAudit logs an audit event for a write request by extracting the actor from the request
func LogAudit(auditor auditpkg.Auditor, r *http.Request, entry AuditEntry) {
	if auditor == nil || !auditor.IsEnabled() {
		return
	}

	// Only log write operations (POST, PUT, PATCH, DELETE)
	if !isWriteOperation(r.Method) {
		return
	}

	actorType, actorID := extractActorInfoFromRequest(r)
	if actorID == "" {
		// actorId is required on every event
		slog.Warn("Cannot log audit event: no actor ID found", "path", r.URL.Path)
		return
	}

	eventAction := determineEventType(r.Method)
	eventType := entry.EventType
	if eventType == "" {
		eventType = auditpkg.EventTypeManagement
	}
	status := auditpkg.StatusSuccess
	if entry.Status == models.AuditStatusFailure {
		status = auditpkg.StatusFailure
	}

	event := &auditpkg.AuditLogRequest{
		Timestamp:          auditpkg.CurrentTimestamp(),
		EventType:          eventType,
		EventAction:        eventAction,
		Status:             status,
		ActorType:          actorType,
		ActorID:            actorID,
		TargetType:         string(entry.Resource),
		TargetID:           entry.ResourceID,
		AdditionalMetadata: auditpkg.MarshalMetadata(entry.Metadata),
	}
	if requestID := models.GetRequestID(r.Context()); requestID != "" {
		event.RequestID = &requestID
	}

	// The request context may be cancelled before the event is written
	auditor.LogEvent(context.Background(), event)
}

// extractActorInfoFromRequest maps the authenticated user's highest role onto an actor type
func extractActorInfoFromRequest(r *http.Request) (actorType string, actorID string) {
	user, err := GetUserFromRequest(r)
	if err != nil {
		return "", ""
	}
	switch {
	case user.HasRole(models.RoleAdmin):
		actorType = "ADMIN"
	case user.HasRole(models.RoleCoordinator):
		actorType = "COORDINATOR"
	default:
		actorType = "AGENT"
	}
	return actorType, user.UserID
}

func isWriteOperation(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch || method == http.MethodDelete
}

func determineEventType(method string) string {
	switch method {
	case http.MethodPost:
		return "CREATE"
	case http.MethodPut, http.MethodPatch:
		return "UPDATE"
	case http.MethodDelete:
		return "DELETE"
	default:
		return ""
	}
}
