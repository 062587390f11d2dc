package models

import "time"

// WizardKind selects the step definitions a session runs
type WizardKind string

const (
	WizardKindTransaction WizardKind = "transaction"
	WizardKindOffer       WizardKind = "offer"
)

// IsValid checks the kind against the known set
func (k WizardKind) IsValid() bool {
	return k == WizardKindTransaction || k == WizardKindOffer
}

// WizardSession is the auto-saved state of one wizard run.
// It lives in the draft store as JSON, not in a table.
type WizardSession struct {
	SessionID     string                            `json:"sessionId"`
	Kind          WizardKind                        `json:"kind"`
	OwnerID       string                            `json:"ownerId"`
	CurrentStep   int                               `json:"currentStep"`
	CollectedData map[string]map[string]interface{} `json:"collectedData"`
	Submitted     bool                              `json:"submitted"`
	ResultID      string                            `json:"resultId,omitempty"`
	CreatedAt     time.Time                         `json:"createdAt"`
	UpdatedAt     time.Time                         `json:"updatedAt"`
}
