package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/shared/monitoring"
	"github.com/concierge-tc/portal-backend/shared/utils"
	"github.com/concierge-tc/portal-backend/v1/bulk"
	"github.com/concierge-tc/portal-backend/v1/csvimport"
	"github.com/concierge-tc/portal-backend/v1/models"
	"gorm.io/gorm"
)

// AgentService handles agent onboarding and administration
type AgentService struct {
	db   *gorm.DB
	feed ChangeFeed
}

// NewAgentService creates a new agent service
func NewAgentService(db *gorm.DB, feed ChangeFeed) *AgentService {
	return &AgentService{db: db, feed: feed}
}

// AgentListQuery filters the agent list
type AgentListQuery struct {
	InvitationStatus models.InvitationStatus
	AccountStatus    models.AccountStatus
	Search           string
}

// InviteAgent creates the profile and queues its setup link in one database transaction.
// Manually created agents get no setup link.
func (s *AgentService) InviteAgent(ctx context.Context, req *models.InviteAgentRequest) (*models.AgentProfile, error) {
	fields := req.Validate()
	if fields == nil && !utils.IsValidEmail(req.Email) {
		fields = map[string]string{"email": "is not a valid email address"}
	}
	if fields != nil {
		return nil, apperrors.FieldValidationError("Invalid agent details", fields)
	}

	method := req.SetupMethod
	if method == "" {
		method = models.SetupMethodInvitation
	}

	agent, err := s.createAgent(ctx, agentInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Brokerage: req.Brokerage,
		Method:    method,
	})
	if err != nil {
		monitoring.RecordBusinessEvent("agent_invite", "failure")
		return nil, err
	}
	monitoring.RecordBusinessEvent("agent_invite", "success")
	return agent, nil
}

type agentInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Brokerage string
	Method    models.SetupMethod
}

func (s *AgentService) createAgent(ctx context.Context, in agentInput) (*models.AgentProfile, error) {
	now := time.Now()
	agent := models.AgentProfile{
		AgentID:          models.NewID(models.PrefixAgent),
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		Email:            utils.NormalizeEmail(in.Email),
		Phone:            strings.TrimSpace(in.Phone),
		Brokerage:        strings.TrimSpace(in.Brokerage),
		InvitationStatus: models.InvitationStatusPending,
		AccountStatus:    models.AccountStatusActive,
		SetupMethod:      in.Method,
		InvitedAt:        &now,
	}

	var job *models.SetupLinkJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&agent).Error; err != nil {
			return err
		}
		if in.Method == models.SetupMethodManual {
			return nil
		}
		job = models.NewSetupLinkJob(agent.AgentID)
		return tx.Create(job).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ConflictError(fmt.Sprintf("an agent with email %s already exists", agent.Email))
		}
		return nil, apperrors.HandleDatabaseError(err, "create agent", "agent")
	}

	if job != nil {
		slog.Info("Agent created, setup link queued", "agentID", agent.AgentID, "jobID", job.JobID, "setupMethod", in.Method)
	} else {
		slog.Info("Agent created", "agentID", agent.AgentID, "setupMethod", in.Method)
	}
	publishChanges(ctx, s.feed, models.AgentProfile{}.TableName(), models.ChangeInsert, agent.AgentID)
	return &agent, nil
}

// GetAgent retrieves an agent by ID
func (s *AgentService) GetAgent(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	var agent models.AgentProfile
	if err := s.db.WithContext(ctx).First(&agent, "agent_id = ?", agentID).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "get agent", "agent")
	}
	return &agent, nil
}

// AgentIDForUser finds the agent profile linked to an auth subject
func (s *AgentService) AgentIDForUser(ctx context.Context, userID string) (string, error) {
	var agent models.AgentProfile
	err := s.db.WithContext(ctx).Select("agent_id").First(&agent, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.HandleDatabaseError(err, "resolve agent", "agent")
	}
	return agent.AgentID, nil
}

// ScopeFor returns the visibility scope of user.
// Users without read:all only see records of their own agent profile, or nothing if unlinked.
func (s *AgentService) ScopeFor(ctx context.Context, user *models.AuthenticatedUser) (Scope, error) {
	if user == nil {
		return AgentScope(""), nil
	}
	if !user.IsAgentOnly() {
		return Unrestricted, nil
	}
	agentID, err := s.AgentIDForUser(ctx, user.UserID)
	if err != nil {
		return Scope{}, err
	}
	return AgentScope(agentID), nil
}

// likeEscaper makes search text match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListAgents returns agents ordered by last then first name
func (s *AgentService) ListAgents(ctx context.Context, q AgentListQuery) ([]models.AgentProfile, error) {
	query := s.db.WithContext(ctx).Model(&models.AgentProfile{})
	if q.InvitationStatus != "" {
		query = query.Where("invitation_status = ?", q.InvitationStatus)
	}
	if q.AccountStatus != "" {
		query = query.Where("account_status = ?", q.AccountStatus)
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		like := "%" + likeEscaper.Replace(search) + "%"
		query = query.Where(`LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(brokerage) LIKE ? ESCAPE '\'`,
			like, like, like, like)
	}

	var agents []models.AgentProfile
	if err := query.Order("last_name ASC, first_name ASC").Find(&agents).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "list agents", "agent")
	}
	return agents, nil
}

// UpdateInvitationStatus changes an agent's onboarding state
func (s *AgentService) UpdateInvitationStatus(ctx context.Context, agentID string, status models.InvitationStatus) (*models.AgentProfile, error) {
	if !status.IsValid() {
		return nil, apperrors.ValidationError("INVALID_STATUS", fmt.Sprintf("invalid invitation status %q", status))
	}
	agent, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(agent).Update("invitation_status", status).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "update agent status", "agent")
	}
	agent.InvitationStatus = status
	publishChanges(ctx, s.feed, agent.TableName(), models.ChangeUpdate, agent.AgentID)
	return agent, nil
}

// DeleteAgent removes one agent after checking the typed confirmation
func (s *AgentService) DeleteAgent(ctx context.Context, agentID, confirmation string) error {
	agent, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	expected := bulk.ExpectedConfirmation([]bulk.Named{agent})
	if !bulk.ConfirmationMatches(confirmation, expected) {
		return apperrors.ConfirmationMismatchError(expected)
	}
	return s.deleteAgent(ctx, agentID)
}

// deleteAgent unassigns the agent's transactions and removes its vendors, jobs and profile.
// Transactions themselves are never deleted.
func (s *AgentService) deleteAgent(ctx context.Context, agentID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Transaction{}).Where("agent_id = ?", agentID).
			Update("agent_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("agent_id = ?", agentID).Delete(&models.Vendor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("agent_id = ?", agentID).Delete(&models.SetupLinkJob{}).Error; err != nil {
			return err
		}
		res := tx.Where("agent_id = ?", agentID).Delete(&models.AgentProfile{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return apperrors.HandleDatabaseError(err, "delete agent", "agent")
	}
	slog.Info("Agent deleted", "agentID", agentID)
	publishChanges(ctx, s.feed, models.AgentProfile{}.TableName(), models.ChangeDelete, agentID)
	return nil
}

// BulkAction runs activate, deactivate or delete over the selected agents.
// Delete requires the agent delete permission and the confirmation phrase for the selection, and is not atomic.
func (s *AgentService) BulkAction(ctx context.Context, user *models.AuthenticatedUser, agentIDs []string, actionName, confirmation string) (*bulk.Result, error) {
	action, err := bulk.ParseAction(actionName)
	if err != nil {
		return nil, apperrors.ValidationError("INVALID_ACTION", err.Error())
	}
	if action == bulk.ActionDelete && (user == nil || !user.HasPermission(models.PermissionDeleteAgent)) {
		return nil, apperrors.ForbiddenError("Deleting agents requires the agent delete permission")
	}
	ids := bulk.Dedupe(agentIDs)
	if len(ids) == 0 {
		return nil, apperrors.ValidationError("EMPTY_SELECTION", bulk.ErrEmptySelection.Error())
	}

	if action == bulk.ActionDelete {
		var agents []models.AgentProfile
		if err := s.db.WithContext(ctx).Where("agent_id IN ?", ids).Find(&agents).Error; err != nil {
			return nil, apperrors.HandleDatabaseError(err, "load agents", "agent")
		}
		if len(agents) != len(ids) {
			return nil, apperrors.NotFoundError("agent")
		}
		named := make([]bulk.Named, len(agents))
		for i := range agents {
			named[i] = &agents[i]
		}
		expected := bulk.ExpectedConfirmation(named)
		if !bulk.ConfirmationMatches(confirmation, expected) {
			return nil, apperrors.ConfirmationMismatchError(expected)
		}
	}

	executor := bulk.NewExecutor(s.setAccountStatus, s.deleteAgent)
	result, err := executor.Run(ctx, action, ids)
	if err != nil {
		return nil, apperrors.ValidationError("INVALID_ACTION", err.Error())
	}

	outcome := "success"
	if result.FailureCount > 0 {
		outcome = "partial"
	}
	monitoring.RecordBusinessEvent("agent_bulk_"+string(action), outcome)
	slog.Info("Bulk agent action finished",
		"action", action,
		"selected", len(ids),
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount)
	return result, nil
}

func (s *AgentService) setAccountStatus(ctx context.Context, ids []string, action bulk.Action) (int64, error) {
	status := models.AccountStatusActive
	if action == bulk.ActionDeactivate {
		status = models.AccountStatusInactive
	}
	res := s.db.WithContext(ctx).Model(&models.AgentProfile{}).
		Where("agent_id IN ?", ids).
		Update("account_status", status)
	if res.Error != nil {
		return 0, res.Error
	}
	publishChanges(ctx, s.feed, models.AgentProfile{}.TableName(), models.ChangeUpdate, ids...)
	return res.RowsAffected, nil
}

// ImportAgents creates one profile per valid CSV row, sequentially.
// Emails that already exist are skipped; each created agent gets a setup-link job.
func (s *AgentService) ImportAgents(ctx context.Context, csvText string) (*models.ImportAgentsResponse, error) {
	parsed, err := csvimport.Parse(csvText)
	if err != nil {
		return nil, apperrors.ValidationError("INVALID_CSV", err.Error())
	}

	resp := &models.ImportAgentsResponse{Rows: make([]models.ImportRowResult, 0, len(parsed.Records)+len(parsed.Errors))}
	for _, rowErr := range parsed.Errors {
		resp.Rows = append(resp.Rows, models.ImportRowResult{
			Row:    rowErr.Row,
			Status: models.ImportRowFailed,
			Error:  rowErr.Error(),
		})
		resp.Failed++
	}

	for _, rec := range parsed.Records {
		row := models.ImportRowResult{Row: rec.Row, Email: rec.Email}

		var count int64
		if err := s.db.WithContext(ctx).Model(&models.AgentProfile{}).Where("email = ?", rec.Email).Count(&count).Error; err != nil {
			row.Status = models.ImportRowFailed
			row.Error = err.Error()
			resp.Failed++
			resp.Rows = append(resp.Rows, row)
			continue
		}
		if count > 0 {
			row.Status = models.ImportRowSkipped
			row.Error = "an agent with this email already exists"
			resp.Skipped++
			resp.Rows = append(resp.Rows, row)
			continue
		}

		agent, err := s.createAgent(ctx, agentInput{
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Email:     rec.Email,
			Phone:     rec.Phone,
			Brokerage: rec.Brokerage,
			Method:    models.SetupMethodBulkImport,
		})
		if err != nil {
			row.Status = models.ImportRowFailed
			row.Error = err.Error()
			resp.Failed++
		} else {
			row.Status = models.ImportRowCreated
			row.AgentID = agent.AgentID
			resp.Created++
		}
		resp.Rows = append(resp.Rows, row)
	}

	sort.SliceStable(resp.Rows, func(i, j int) bool { return resp.Rows[i].Row < resp.Rows[j].Row })
	monitoring.RecordBusinessEvent("agent_import", "success")
	slog.Info("Agent import finished", "created", resp.Created, "skipped", resp.Skipped, "failed", resp.Failed)
	return resp, nil
}

// ResendSetupLink queues a fresh setup-link job for an agent who has not completed setup
func (s *AgentService) ResendSetupLink(ctx context.Context, agentID string) (*models.SetupLinkJob, error) {
	agent, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.InvitationStatus == models.InvitationStatusCompleted {
		return nil, apperrors.ConflictError("agent has already completed setup")
	}

	job := models.NewSetupLinkJob(agentID)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SetupLinkJob{}).
			Where("agent_id = ? AND status = ?", agentID, models.SetupLinkJobStatusPending).
			Update("status", models.SetupLinkJobStatusFailed).Error; err != nil {
			return err
		}
		if err := tx.Model(agent).Update("invitation_status", models.InvitationStatusPending).Error; err != nil {
			return err
		}
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, apperrors.HandleDatabaseError(err, "queue setup link", "agent")
	}
	slog.Info("Setup link re-queued", "agentID", agentID, "jobID", job.JobID)
	return job, nil
}

// CompleteSetup links the agent profile to the user who finished setup
func (s *AgentService) CompleteSetup(ctx context.Context, agentID, userID string) (*models.AgentProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.FieldValidationError("Invalid setup completion", map[string]string{"userId": "is required"})
	}
	agent, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(agent).Updates(map[string]interface{}{
		"user_id":           userID,
		"invitation_status": models.InvitationStatusCompleted,
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ConflictError("user is already linked to another agent")
		}
		return nil, apperrors.HandleDatabaseError(err, "complete setup", "agent")
	}
	agent.UserID = &userID
	agent.InvitationStatus = models.InvitationStatusCompleted
	publishChanges(ctx, s.feed, agent.TableName(), models.ChangeUpdate, agentID)
	return agent, nil
}
