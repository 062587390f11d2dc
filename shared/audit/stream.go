package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultStreamName is the Redis stream audit events are appended to
const DefaultStreamName = "portal-audit-events"

// DefaultMaxStreamLength is the stream length above which HealthCheck fails
const DefaultMaxStreamLength = 1_000_000

// streamPublisher is the subset of the Redis client the auditor needs
type streamPublisher interface {
	PublishStreamEvent(ctx context.Context, streamName string, data map[string]interface{}) (string, error)
	GetStreamLength(ctx context.Context, streamName string) (int64, error)
}

// StreamAuditor appends audit events to a Redis stream
type StreamAuditor struct {
	publisher  streamPublisher
	streamName string
	timeout    time.Duration
	maxLength  int64
}

// NewStreamAuditor creates an auditor writing to streamName.
// A nil publisher yields a disabled auditor.
func NewStreamAuditor(publisher streamPublisher, streamName string) *StreamAuditor {
	if streamName == "" {
		streamName = DefaultStreamName
	}
	if publisher == nil {
		slog.Info("Audit logging disabled", "reason", "no Redis client configured")
	}
	return &StreamAuditor{
		publisher:  publisher,
		streamName: streamName,
		timeout:    5 * time.Second,
		maxLength:  DefaultMaxStreamLength,
	}
}

// WithMaxLength overrides the health threshold. Zero disables the length check.
func (a *StreamAuditor) WithMaxLength(n int64) *StreamAuditor {
	a.maxLength = n
	return a
}

// IsEnabled returns whether events are written anywhere
func (a *StreamAuditor) IsEnabled() bool {
	return a.publisher != nil
}

// LogEvent writes the event in a background goroutine (fire-and-forget).
// The request context is not used so the write survives request cancellation.
func (a *StreamAuditor) LogEvent(_ context.Context, event *AuditLogRequest) {
	if !a.IsEnabled() || event == nil {
		return
	}
	go a.logEvent(event)
}

func (a *StreamAuditor) logEvent(event *AuditLogRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if _, err := a.publisher.PublishStreamEvent(ctx, a.streamName, event.Fields()); err != nil {
		slog.Warn("Failed to write audit event",
			"error", err,
			"eventAction", event.EventAction,
			"targetType", event.TargetType)
	}
}

// HealthCheck fails when the stream cannot be read or has grown past the configured length,
// which means nothing is trimming or consuming it
func (a *StreamAuditor) HealthCheck(ctx context.Context) error {
	if !a.IsEnabled() {
		return nil
	}
	n, err := a.publisher.GetStreamLength(ctx, a.streamName)
	if err != nil {
		return fmt.Errorf("failed to read audit stream length: %w", err)
	}
	if a.maxLength > 0 && n > a.maxLength {
		return fmt.Errorf("audit stream %s holds %d events, limit is %d", a.streamName, n, a.maxLength)
	}
	return nil
}
