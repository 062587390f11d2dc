package models

import "time"

// SetupLinkJobStatus represents the status of a setup-link job
type SetupLinkJobStatus string

const (
	SetupLinkJobStatusPending    SetupLinkJobStatus = "pending"
	SetupLinkJobStatusProcessing SetupLinkJobStatus = "processing" // Job is currently being processed by a worker
	SetupLinkJobStatusCompleted  SetupLinkJobStatus = "completed"
	SetupLinkJobStatusFailed     SetupLinkJobStatus = "failed"
)

// DefaultSetupLinkMaxRetries is used when a job is enqueued without an explicit limit
const DefaultSetupLinkMaxRetries = 5

// SetupLinkJob is an outbox row asking the worker to issue an agent's setup link
type SetupLinkJob struct {
	JobID       string             `gorm:"primaryKey;type:varchar(255)" json:"job_id"`
	AgentID     string             `gorm:"type:varchar(255);not null;index" json:"agent_id"`
	Status      SetupLinkJobStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RetryCount  int                `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries  int                `gorm:"not null;default:5" json:"max_retries"`
	Error       *string            `gorm:"type:text" json:"error,omitempty"`
	NextRetryAt *time.Time         `json:"next_retry_at,omitempty"` // When to retry (for exponential backoff)
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	ProcessedAt *time.Time         `json:"processed_at,omitempty"`
}

// TableName specifies the table name for SetupLinkJob
func (SetupLinkJob) TableName() string {
	return "setup_link_jobs"
}

// NewSetupLinkJob returns a pending job for agentID
func NewSetupLinkJob(agentID string) *SetupLinkJob {
	return &SetupLinkJob{
		JobID:      NewID(PrefixJob),
		AgentID:    agentID,
		Status:     SetupLinkJobStatusPending,
		MaxRetries: DefaultSetupLinkMaxRetries,
	}
}
