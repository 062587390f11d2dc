package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/concierge-tc/portal-backend/shared/monitoring"
	"github.com/concierge-tc/portal-backend/v1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultInvitationTTL is how long a sent setup link stays valid
const DefaultInvitationTTL = 7 * 24 * time.Hour

// stuckJobThreshold is how long a job may stay in processing before it is handed out again
const stuckJobThreshold = 5 * time.Minute

// SetupLinkRequest is the body sent to the generate-setup-link function
type SetupLinkRequest struct {
	AgentID   string `json:"agentId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// SetupLinkResponse is the function's reply
type SetupLinkResponse struct {
	SetupLink string `json:"setupLink,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// SetupLinkWorkerConfig tunes the worker
type SetupLinkWorkerConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	InvitationTTL time.Duration
}

// SetupLinkWorker processes setup-link jobs from the outbox table
type SetupLinkWorker struct {
	db            *gorm.DB
	functions     FunctionInvoker
	pollInterval  time.Duration
	batchSize     int
	invitationTTL time.Duration
	now           func() time.Time
}

// NewSetupLinkWorker creates a new setup-link worker
func NewSetupLinkWorker(db *gorm.DB, functions FunctionInvoker, cfg SetupLinkWorkerConfig) *SetupLinkWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.InvitationTTL <= 0 {
		cfg.InvitationTTL = DefaultInvitationTTL
	}
	return &SetupLinkWorker{
		db:            db,
		functions:     functions,
		pollInterval:  cfg.PollInterval,
		batchSize:     cfg.BatchSize,
		invitationTTL: cfg.InvitationTTL,
		now:           time.Now,
	}
}

// Start runs the worker until ctx is done
func (w *SetupLinkWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Setup link worker started", "pollInterval", w.pollInterval, "batchSize", w.batchSize, "invitationTTL", w.invitationTTL)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Setup link worker stopped")
			return
		case <-ticker.C:
			w.processJobs(ctx)
			if _, err := w.expireInvitations(ctx); err != nil {
				slog.Warn("Failed to expire invitations", "error", err)
			}
		}
	}
}

// processJobs claims and processes a batch of pending jobs
func (w *SetupLinkWorker) processJobs(ctx context.Context) int {
	now := w.now()
	var jobs []models.SetupLinkJob

	// Jobs left in processing by a crashed worker go back to pending
	if err := w.db.WithContext(ctx).Model(&models.SetupLinkJob{}).
		Where("status = ?", models.SetupLinkJobStatusProcessing).
		Where("updated_at < ?", now.Add(-stuckJobThreshold)).
		Update("status", models.SetupLinkJobStatusPending).Error; err != nil {
		slog.Warn("Failed to clean up stuck processing jobs", "error", err)
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("status = ?", models.SetupLinkJobStatusPending).
			Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now).
			Order("created_at ASC").
			Limit(w.batchSize)
		// SKIP LOCKED lets several workers share the table; SQLite has no row locks
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := query.Find(&jobs).Error; err != nil {
			return err
		}

		if len(jobs) > 0 {
			jobIDs := make([]string, len(jobs))
			for i := range jobs {
				jobIDs[i] = jobs[i].JobID
			}
			if err := tx.Model(&models.SetupLinkJob{}).
				Where("job_id IN ?", jobIDs).
				Update("status", models.SetupLinkJobStatusProcessing).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to fetch pending setup link jobs", "error", err)
		return 0
	}

	if len(jobs) == 0 {
		return 0
	}

	slog.Debug("Processing setup link jobs", "count", len(jobs))
	for i := range jobs {
		w.processJob(ctx, &jobs[i])
	}
	return len(jobs)
}

// processJob issues one setup link and records the outcome with exponential backoff on failure
func (w *SetupLinkWorker) processJob(ctx context.Context, job *models.SetupLinkJob) {
	now := w.now()
	err := w.issueSetupLink(ctx, job)

	newRetryCount := job.RetryCount + 1
	updates := map[string]interface{}{
		"processed_at": now,
		"retry_count":  newRetryCount,
	}

	if err != nil {
		errorMsg := err.Error()
		updates["error"] = &errorMsg

		// RetryCount starts at 0, so MaxRetries=5 allows five retries after the first attempt
		if newRetryCount > job.MaxRetries {
			updates["status"] = models.SetupLinkJobStatusFailed
			updates["next_retry_at"] = nil
			monitoring.RecordBusinessEvent("setup_link", "failed")
			slog.Error("Setup link job failed after max retries",
				"jobID", job.JobID,
				"agentID", job.AgentID,
				"retryCount", newRetryCount,
				"maxRetries", job.MaxRetries,
				"error", err)
		} else {
			backoffDelay := time.Minute * time.Duration(1<<job.RetryCount)
			nextRetryAt := now.Add(backoffDelay)
			updates["next_retry_at"] = &nextRetryAt
			updates["status"] = models.SetupLinkJobStatusPending
			slog.Warn("Setup link job failed, will retry",
				"jobID", job.JobID,
				"agentID", job.AgentID,
				"retryCount", newRetryCount,
				"error", err,
				"nextRetryAt", nextRetryAt)
		}
	} else {
		updates["status"] = models.SetupLinkJobStatusCompleted
		updates["error"] = nil
		updates["next_retry_at"] = nil
		monitoring.RecordBusinessEvent("setup_link", "sent")
		slog.Info("Setup link job completed", "jobID", job.JobID, "agentID", job.AgentID)
	}

	if updateErr := w.db.WithContext(ctx).Model(job).Updates(updates).Error; updateErr != nil {
		slog.Error("Failed to update setup link job status", "jobID", job.JobID, "error", updateErr)
	}
}

// issueSetupLink calls the remote function and marks the agent as sent.
// Agents who finished setup or were cancelled need no link.
func (w *SetupLinkWorker) issueSetupLink(ctx context.Context, job *models.SetupLinkJob) error {
	var agent models.AgentProfile
	if err := w.db.WithContext(ctx).First(&agent, "agent_id = ?", job.AgentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("agent %s no longer exists", job.AgentID)
		}
		return err
	}

	switch agent.InvitationStatus {
	case models.InvitationStatusCompleted, models.InvitationStatusCancelled:
		slog.Info("Skipping setup link", "agentID", agent.AgentID, "invitationStatus", agent.InvitationStatus)
		return nil
	}

	var resp SetupLinkResponse
	if err := w.functions.Invoke(ctx, FunctionGenerateSetupLink, SetupLinkRequest{
		AgentID:   agent.AgentID,
		Email:     agent.Email,
		FirstName: agent.FirstName,
		LastName:  agent.LastName,
	}, &resp); err != nil {
		return err
	}

	sentAt := w.now()
	return w.db.WithContext(ctx).Model(&models.AgentProfile{}).
		Where("agent_id = ?", agent.AgentID).
		Updates(map[string]interface{}{
			"invitation_status":  models.InvitationStatusSent,
			"setup_link_sent_at": sentAt,
		}).Error
}

// expireInvitations marks sent invitations older than the TTL as expired
func (w *SetupLinkWorker) expireInvitations(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.invitationTTL)
	res := w.db.WithContext(ctx).Model(&models.AgentProfile{}).
		Where("invitation_status = ?", models.InvitationStatusSent).
		Where("setup_link_sent_at < ?", cutoff).
		Update("invitation_status", models.InvitationStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		slog.Info("Expired stale invitations", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
