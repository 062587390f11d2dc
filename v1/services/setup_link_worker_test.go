package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestWorker(db *gorm.DB, functions FunctionInvoker) *SetupLinkWorker {
	return NewSetupLinkWorker(db, functions, SetupLinkWorkerConfig{PollInterval: time.Millisecond})
}

func seedJob(t *testing.T, db *gorm.DB, agentID string) *models.SetupLinkJob {
	t.Helper()
	job := models.NewSetupLinkJob(agentID)
	require.NoError(t, db.Create(job).Error)
	return job
}

func reloadJob(t *testing.T, db *gorm.DB, jobID string) models.SetupLinkJob {
	t.Helper()
	var job models.SetupLinkJob
	require.NoError(t, db.First(&job, "job_id = ?", jobID).Error)
	return job
}

func TestSetupLinkWorker_Success(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	job := seedJob(t, db, agent.AgentID)

	var sent SetupLinkRequest
	functions := &MockFunctions{InvokeFunc: func(_ context.Context, name string, body interface{}, out interface{}) error {
		sent = body.(SetupLinkRequest)
		out.(*SetupLinkResponse).SetupLink = "https://portal.example.com/setup/abc"
		return nil
	}}

	worker := newTestWorker(db, functions)
	assert.Equal(t, 1, worker.processJobs(context.Background()))

	assert.Equal(t, []string{FunctionGenerateSetupLink}, functions.calls)
	assert.Equal(t, "jane@example.com", sent.Email)

	done := reloadJob(t, db, job.JobID)
	assert.Equal(t, models.SetupLinkJobStatusCompleted, done.Status)
	assert.Equal(t, 1, done.RetryCount)
	assert.NotNil(t, done.ProcessedAt)

	var reloaded models.AgentProfile
	require.NoError(t, db.First(&reloaded, "agent_id = ?", agent.AgentID).Error)
	assert.Equal(t, models.InvitationStatusSent, reloaded.InvitationStatus)
	assert.NotNil(t, reloaded.SetupLinkSentAt)

	// nothing left to claim
	assert.Equal(t, 0, worker.processJobs(context.Background()))
}

func TestSetupLinkWorker_RetryWithBackoff(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	job := seedJob(t, db, agent.AgentID)

	functions := &MockFunctions{InvokeFunc: func(context.Context, string, interface{}, interface{}) error {
		return errors.New("function unavailable")
	}}
	worker := newTestWorker(db, functions)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }

	assert.Equal(t, 1, worker.processJobs(context.Background()))
	failed := reloadJob(t, db, job.JobID)
	assert.Equal(t, models.SetupLinkJobStatusPending, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "function unavailable")
	require.NotNil(t, failed.NextRetryAt)
	assert.WithinDuration(t, now.Add(time.Minute), *failed.NextRetryAt, time.Second)

	// not due yet
	assert.Equal(t, 0, worker.processJobs(context.Background()))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, worker.processJobs(context.Background()))
	second := reloadJob(t, db, job.JobID)
	assert.Equal(t, 2, second.RetryCount)
	assert.WithinDuration(t, now.Add(2*time.Minute), *second.NextRetryAt, time.Second)
}

func TestSetupLinkWorker_FailsAfterMaxRetries(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	job := seedJob(t, db, agent.AgentID)
	require.NoError(t, db.Model(job).Updates(map[string]interface{}{"retry_count": job.MaxRetries}).Error)

	functions := &MockFunctions{InvokeFunc: func(context.Context, string, interface{}, interface{}) error {
		return errors.New("still down")
	}}
	worker := newTestWorker(db, functions)
	worker.processJobs(context.Background())

	final := reloadJob(t, db, job.JobID)
	assert.Equal(t, models.SetupLinkJobStatusFailed, final.Status)
	assert.Nil(t, final.NextRetryAt)
}

func TestSetupLinkWorker_SkipsCompletedAgents(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	require.NoError(t, db.Model(agent).Update("invitation_status", models.InvitationStatusCompleted).Error)
	job := seedJob(t, db, agent.AgentID)

	functions := &MockFunctions{}
	newTestWorker(db, functions).processJobs(context.Background())

	assert.Empty(t, functions.calls)
	assert.Equal(t, models.SetupLinkJobStatusCompleted, reloadJob(t, db, job.JobID).Status)
}

func TestSetupLinkWorker_ResetsStuckJobs(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	agent := seedAgent(t, db, "Jane", "Roe", "jane@example.com")
	job := seedJob(t, db, agent.AgentID)
	require.NoError(t, db.Model(job).Update("status", models.SetupLinkJobStatusProcessing).Error)

	functions := &MockFunctions{}
	worker := newTestWorker(db, functions)

	// recently claimed jobs are left alone
	assert.Equal(t, 0, worker.processJobs(context.Background()))

	worker.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	assert.Equal(t, 1, worker.processJobs(context.Background()))
	assert.Equal(t, models.SetupLinkJobStatusCompleted, reloadJob(t, db, job.JobID).Status)
}

func TestSetupLinkWorker_ExpiresStaleInvitations(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	stale := seedAgent(t, db, "Old", "Invite", "old@example.com")
	fresh := seedAgent(t, db, "New", "Invite", "new@example.com")
	now := time.Now().UTC()
	require.NoError(t, db.Model(stale).Updates(map[string]interface{}{
		"invitation_status":  models.InvitationStatusSent,
		"setup_link_sent_at": now.Add(-8 * 24 * time.Hour),
	}).Error)
	require.NoError(t, db.Model(fresh).Updates(map[string]interface{}{
		"invitation_status":  models.InvitationStatusSent,
		"setup_link_sent_at": now.Add(-time.Hour),
	}).Error)

	worker := newTestWorker(db, &MockFunctions{})
	n, err := worker.expireInvitations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var statuses []string
	require.NoError(t, db.Model(&models.AgentProfile{}).Order("email").Pluck("invitation_status", &statuses).Error)
	assert.Equal(t, []string{string(models.InvitationStatusSent), string(models.InvitationStatusExpired)}, statuses)
}

func TestSetupLinkWorker_SkipLockedOnPostgres(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE "setup_link_jobs" SET "status"=.*`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "setup_link_jobs" .* FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}))
	mock.ExpectCommit()

	worker := newTestWorker(db, &MockFunctions{})
	assert.Equal(t, 0, worker.processJobs(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetupLinkWorker_StartStopsOnCancel(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	worker := newTestWorker(db, &MockFunctions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
