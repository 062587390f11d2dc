package audit

import "context"

// Auditor is the primary interface for audit logging operations.
//
// Implementations log asynchronously and degrade to a no-op when the
// backing store is unavailable; callers never see audit failures.
type Auditor interface {
	// LogEvent records an audit event without blocking the caller.
	LogEvent(ctx context.Context, event *AuditLogRequest)

	// IsEnabled lets callers skip building events when auditing is off.
	IsEnabled() bool
}

// NoopAuditor discards every event
type NoopAuditor struct{}

// LogEvent implements Auditor
func (NoopAuditor) LogEvent(context.Context, *AuditLogRequest) {}

// IsEnabled implements Auditor
func (NoopAuditor) IsEnabled() bool { return false }
