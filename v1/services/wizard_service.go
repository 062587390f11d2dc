package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/shared/monitoring"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/wizard"
)

// WizardService drives wizard sessions and auto-saves them to the draft store after every change.
// Concurrent step edits on one session are last-write-wins; Submit holds the session's lock.
type WizardService struct {
	store        DraftStore
	transactions *TransactionService
	offers       *OfferService
	agents       *AgentService
}

// NewWizardService creates a new wizard service
func NewWizardService(store DraftStore, transactions *TransactionService, offers *OfferService, agents *AgentService) *WizardService {
	return &WizardService{store: store, transactions: transactions, offers: offers, agents: agents}
}

// wizardRun is a loaded session with its rebuilt sequencer
type wizardRun struct {
	session *models.WizardSession
	seq     *wizard.Sequencer
}

// Start opens a new session of kind for the user
func (s *WizardService) Start(ctx context.Context, kind models.WizardKind, user *models.AuthenticatedUser) (*models.WizardSessionResponse, error) {
	steps, err := wizard.StepsFor(kind)
	if err != nil {
		return nil, apperrors.ValidationError("INVALID_WIZARD_KIND", err.Error())
	}
	seq, err := wizard.New(steps...)
	if err != nil {
		return nil, apperrors.InternalErrorWithCause("failed to build wizard", err)
	}

	now := time.Now().UTC()
	run := &wizardRun{
		session: &models.WizardSession{
			SessionID: models.NewID(models.PrefixWizard),
			Kind:      kind,
			OwnerID:   user.UserID,
			CreatedAt: now,
		},
		seq: seq,
	}
	if err := s.save(ctx, run); err != nil {
		return nil, err
	}
	slog.Info("Wizard session started", "sessionID", run.session.SessionID, "kind", kind, "ownerID", user.UserID)
	return s.response(run), nil
}

// Get returns the session with the current step's field errors
func (s *WizardService) Get(ctx context.Context, sessionID string, user *models.AuthenticatedUser) (*models.WizardSessionResponse, error) {
	run, err := s.load(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	return s.response(run), nil
}

// UpdateStep merges data into one step
func (s *WizardService) UpdateStep(ctx context.Context, sessionID string, user *models.AuthenticatedUser, stepID string, data map[string]interface{}) (*models.WizardSessionResponse, error) {
	run, err := s.loadOpen(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	if err := run.seq.UpdateStepData(stepID, data); err != nil {
		if errors.Is(err, wizard.ErrUnknownStep) {
			return nil, apperrors.NotFoundError("wizard step")
		}
		return nil, err
	}
	if err := s.save(ctx, run); err != nil {
		return nil, err
	}
	return s.response(run), nil
}

// Next advances when the current step validates; otherwise it returns the field errors
func (s *WizardService) Next(ctx context.Context, sessionID string, user *models.AuthenticatedUser) (*models.WizardSessionResponse, error) {
	run, err := s.loadOpen(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	if err := run.seq.Next(); err != nil {
		return nil, translateWizardError(err)
	}
	if err := s.save(ctx, run); err != nil {
		return nil, err
	}
	return s.response(run), nil
}

// Previous goes back one step
func (s *WizardService) Previous(ctx context.Context, sessionID string, user *models.AuthenticatedUser) (*models.WizardSessionResponse, error) {
	run, err := s.loadOpen(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	run.seq.Previous()
	if err := s.save(ctx, run); err != nil {
		return nil, err
	}
	return s.response(run), nil
}

// Submit writes the collected data as one unit. A failed write leaves the session untouched.
// The session is claimed for the duration of the write; a concurrent submit gets a conflict.
// Retrying after the draft could not be saved returns the record the first submit created.
func (s *WizardService) Submit(ctx context.Context, sessionID string, user *models.AuthenticatedUser) (*models.WizardSessionResponse, error) {
	if _, err := s.load(ctx, sessionID, user); err != nil {
		return nil, err
	}
	if err := s.store.Lock(ctx, sessionID); err != nil {
		if errors.Is(err, ErrDraftLocked) {
			return nil, apperrors.ConflictError("wizard is already being submitted")
		}
		return nil, apperrors.InternalErrorWithCause("failed to lock wizard session", err)
	}
	defer func() {
		if err := s.store.Unlock(context.WithoutCancel(ctx), sessionID); err != nil {
			slog.Warn("Failed to unlock wizard session", "sessionID", sessionID, "error", err)
		}
	}()

	// reload under the claim so a submit that finished meanwhile is seen
	run, err := s.load(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}

	var submit wizard.SubmitFunc
	switch run.session.Kind {
	case models.WizardKindTransaction:
		submit = s.submitTransaction(user, sessionID)
	case models.WizardKindOffer:
		submit = s.submitOffer(user, sessionID)
	default:
		return nil, apperrors.InternalError(fmt.Sprintf("session has unknown kind %q", run.session.Kind))
	}

	resultID, err := run.seq.Submit(ctx, submit)
	if err != nil {
		monitoring.RecordBusinessEvent("wizard_submit_"+string(run.session.Kind), "failure")
		return nil, translateWizardError(err)
	}
	monitoring.RecordBusinessEvent("wizard_submit_"+string(run.session.Kind), "success")

	if err := s.save(ctx, run); err != nil {
		// the record exists and is keyed by the session, so a retry resolves to it
		slog.Warn("Failed to save submitted wizard session", "sessionID", sessionID, "resultID", resultID, "error", err)
	}
	slog.Info("Wizard submitted", "sessionID", sessionID, "kind", run.session.Kind, "resultID", resultID)
	return s.response(run), nil
}

// SubmitData validates and submits a complete data set without a stored session
func (s *WizardService) SubmitData(ctx context.Context, kind models.WizardKind, user *models.AuthenticatedUser, data map[string]map[string]interface{}) (string, error) {
	steps, err := wizard.StepsFor(kind)
	if err != nil {
		return "", apperrors.ValidationError("INVALID_WIZARD_KIND", err.Error())
	}
	seq, err := wizard.New(steps...)
	if err != nil {
		return "", apperrors.InternalErrorWithCause("failed to build wizard", err)
	}
	for stepID, values := range data {
		if err := seq.UpdateStepData(stepID, values); err != nil {
			return "", apperrors.ValidationError("UNKNOWN_STEP", err.Error())
		}
	}

	submit := s.submitTransaction(user, "")
	if kind == models.WizardKindOffer {
		submit = s.submitOffer(user, "")
	}
	resultID, err := seq.Submit(ctx, submit)
	if err != nil {
		monitoring.RecordBusinessEvent("direct_submit_"+string(kind), "failure")
		return "", translateWizardError(err)
	}
	monitoring.RecordBusinessEvent("direct_submit_"+string(kind), "success")
	return resultID, nil
}

func (s *WizardService) submitTransaction(user *models.AuthenticatedUser, sessionID string) wizard.SubmitFunc {
	return func(ctx context.Context, data map[string]map[string]interface{}) (string, error) {
		var agentID *string
		if user.IsAgentOnly() {
			id, err := s.agents.AgentIDForUser(ctx, user.UserID)
			if err != nil {
				return "", err
			}
			if id == "" {
				return "", apperrors.ForbiddenError("transactions can only be created by a user linked to an agent profile")
			}
			agentID = &id
		}
		draft := wizard.DecodeTransaction(data)
		draft.SessionID = sessionID
		txn, err := s.transactions.CreateFromWizard(ctx, agentID, draft)
		if err != nil {
			return "", err
		}
		return txn.TransactionID, nil
	}
}

func (s *WizardService) submitOffer(user *models.AuthenticatedUser, sessionID string) wizard.SubmitFunc {
	return func(ctx context.Context, data map[string]map[string]interface{}) (string, error) {
		agentID, err := s.agents.AgentIDForUser(ctx, user.UserID)
		if err != nil {
			return "", err
		}
		draft := wizard.DecodeOffer(data)
		draft.SessionID = sessionID
		offer, err := s.offers.CreateFromWizard(ctx, agentID, draft)
		if err != nil {
			return "", err
		}
		return offer.OfferID, nil
	}
}

func translateWizardError(err error) error {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		apiErr := apperrors.FieldValidationError(fmt.Sprintf("Step %q is incomplete", verr.StepID), verr.Fields)
		apiErr.Details = verr.StepID
		return apiErr
	case errors.Is(err, wizard.ErrAlreadySubmitted):
		return apperrors.ConflictError("wizard has already been submitted")
	}
	return err
}

// load fetches a session owned by user. Other users' sessions are reported as not found.
func (s *WizardService) load(ctx context.Context, sessionID string, user *models.AuthenticatedUser) (*wizardRun, error) {
	session, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, ErrDraftNotFound) {
		return nil, apperrors.NotFoundError("wizard session")
	}
	if err != nil {
		return nil, apperrors.InternalErrorWithCause("failed to load wizard session", err)
	}
	if user == nil || session.OwnerID != user.UserID {
		return nil, apperrors.NotFoundError("wizard session")
	}

	steps, err := wizard.StepsFor(session.Kind)
	if err != nil {
		return nil, apperrors.InternalErrorWithCause("stored session has unknown kind", err)
	}
	seq, err := wizard.Restore(steps, wizard.State{
		CurrentStep:   session.CurrentStep,
		CollectedData: session.CollectedData,
		Submitted:     session.Submitted,
		ResultID:      session.ResultID,
	})
	if err != nil {
		return nil, apperrors.InternalErrorWithCause("failed to restore wizard session", err)
	}
	return &wizardRun{session: session, seq: seq}, nil
}

func (s *WizardService) loadOpen(ctx context.Context, sessionID string, user *models.AuthenticatedUser) (*wizardRun, error) {
	run, err := s.load(ctx, sessionID, user)
	if err != nil {
		return nil, err
	}
	if run.seq.Submitted() {
		return nil, apperrors.ConflictError("wizard has already been submitted")
	}
	return run, nil
}

func (s *WizardService) save(ctx context.Context, run *wizardRun) error {
	state := run.seq.State()
	run.session.CurrentStep = state.CurrentStep
	run.session.CollectedData = state.CollectedData
	run.session.Submitted = state.Submitted
	run.session.ResultID = state.ResultID
	run.session.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, run.session); err != nil {
		return apperrors.InternalErrorWithCause("failed to save wizard session", err)
	}
	return nil
}

func (s *WizardService) response(run *wizardRun) *models.WizardSessionResponse {
	steps := run.seq.Steps()
	info := make([]models.WizardStepInfo, len(steps))
	for i, step := range steps {
		info[i] = models.WizardStepInfo{ID: step.ID, Title: step.Title}
	}
	submitted := run.seq.Submitted()
	resp := &models.WizardSessionResponse{
		SessionID:     run.session.SessionID,
		Kind:          run.session.Kind,
		Steps:         info,
		CurrentStep:   run.seq.Current(),
		CurrentStepID: run.seq.CurrentStep().ID,
		CollectedData: run.seq.Data(),
		CanSubmit:     !submitted && run.seq.FirstInvalid() == nil,
		Submitted:     submitted,
		ResultID:      run.seq.ResultID(),
		UpdatedAt:     run.session.UpdatedAt.Format(time.RFC3339),
	}
	if !submitted {
		resp.FieldErrors = run.seq.ValidateStep(run.seq.Current())
	}
	return resp
}
