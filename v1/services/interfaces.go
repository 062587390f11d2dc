package services

import (
	"context"
	"errors"

	"github.com/concierge-tc/portal-backend/v1/models"
)

// ErrDraftNotFound is returned by a DraftStore when no session is stored under an id
var ErrDraftNotFound = errors.New("wizard draft not found")

// ErrDraftLocked is returned by Lock while another request holds the session
var ErrDraftLocked = errors.New("wizard draft is locked")

// DraftStore persists wizard sessions between requests
type DraftStore interface {
	Save(ctx context.Context, session *models.WizardSession) error
	Load(ctx context.Context, sessionID string) (*models.WizardSession, error)
	Delete(ctx context.Context, sessionID string) error
	// Lock claims the session exclusively until Unlock or until the claim expires.
	Lock(ctx context.Context, sessionID string) error
	Unlock(ctx context.Context, sessionID string) error
}

// Notifier delivers user-facing messages out of band
type Notifier interface {
	Notify(ctx context.Context, userID string, n models.Notification) error
}

// ChangeFeed publishes committed writes and lets clients follow them
type ChangeFeed interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
	// Subscribe returns a channel that is closed when ctx is done
	Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error)
}

// FunctionInvoker calls a named remote function
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, body interface{}, out interface{}) error
}
