package audit

import (
	"encoding/json"
	"log/slog"
	"time"
)

// MarshalMetadata marshals metadata for AdditionalMetadata.
// nil stays nil; a marshal failure yields "{}" so the event is still valid JSON.
func MarshalMetadata(metadata map[string]interface{}) json.RawMessage {
	if metadata == nil {
		return nil
	}
	bytes, err := json.Marshal(metadata)
	if err != nil {
		slog.Error("Failed to marshal metadata for audit", "error", err)
		return json.RawMessage("{}")
	}
	return json.RawMessage(bytes)
}

// CurrentTimestamp returns current UTC time in RFC3339 format.
func CurrentTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
