package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/shared/monitoring"
	"github.com/concierge-tc/portal-backend/v1/bulk"
	"github.com/concierge-tc/portal-backend/v1/display"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/progress"
	"github.com/concierge-tc/portal-backend/v1/wizard"
	"gorm.io/gorm"
)

// TransactionService handles transaction-related operations
type TransactionService struct {
	db   *gorm.DB
	feed ChangeFeed
	now  func() time.Time
}

// NewTransactionService creates a new transaction service
func NewTransactionService(db *gorm.DB, feed ChangeFeed) *TransactionService {
	return &TransactionService{db: db, feed: feed, now: time.Now}
}

// ListQuery combines the progress filter with a sort order
type ListQuery struct {
	Filter progress.Filter
	Sort   progress.SortKey
	Desc   bool
}

// ProgressView is the dashboard payload: filtered cards plus their metrics
type ProgressView struct {
	Cards   []display.Card   `json:"cards"`
	Metrics progress.Metrics `json:"metrics"`
}

// CreateFromWizard writes property, transaction, primary client and secondary clients
// as one database transaction. agentID, when set, becomes the assigned agent.
func (s *TransactionService) CreateFromWizard(ctx context.Context, agentID *string, draft wizard.TransactionDraft) (*models.Transaction, error) {
	property := models.Property{
		PropertyID:    models.NewID(models.PrefixProperty),
		StreetAddress: draft.StreetAddress,
		City:          draft.City,
		State:         draft.State,
		ZipCode:       draft.ZipCode,
		PropertyType:  draft.PropertyType,
	}
	txn := models.Transaction{
		TransactionID: models.NewID(models.PrefixTransaction),
		PropertyID:    property.PropertyID,
		ServiceTier:   draft.ServiceTier,
		Status:        models.TransactionStatusPending,
		AgentID:       agentID,
		ClosingDate:   draft.ClosingDate,
		PurchasePrice: draft.PurchasePrice,
	}
	if draft.SessionID != "" {
		txn.WizardSessionID = &draft.SessionID
	}

	clients := make([]models.Client, 0, 1+len(draft.Secondary))
	clients = append(clients, newClient(txn.TransactionID, draft.Primary, true))
	for _, c := range draft.Secondary {
		clients = append(clients, newClient(txn.TransactionID, c, false))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&property).Error; err != nil {
			return fmt.Errorf("failed to create property: %w", err)
		}
		if err := tx.Omit("Property", "Agent", "Clients").Create(&txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		if err := tx.Create(&clients).Error; err != nil {
			return fmt.Errorf("failed to create clients: %w", err)
		}
		return nil
	})
	if err != nil {
		if existing := s.findByWizardSession(ctx, draft.SessionID, err); existing != nil {
			slog.Info("Wizard session already produced a transaction", "sessionID", draft.SessionID, "transactionID", existing.TransactionID)
			return existing, nil
		}
		monitoring.RecordBusinessEvent("transaction_create", "failure")
		return nil, apperrors.HandleDatabaseError(err, "create transaction", "transaction")
	}

	txn.Property = property
	txn.Clients = clients
	monitoring.RecordBusinessEvent("transaction_create", "success")
	slog.Info("Transaction created", "transactionID", txn.TransactionID, "tier", txn.ServiceTier, "clients", len(clients))
	publishChanges(ctx, s.feed, txn.TableName(), models.ChangeInsert, txn.TransactionID)
	return &txn, nil
}

// findByWizardSession returns the transaction an earlier submit of sessionID created,
// when createErr is the unique violation on wizard_session_id
func (s *TransactionService) findByWizardSession(ctx context.Context, sessionID string, createErr error) *models.Transaction {
	if sessionID == "" || !errors.Is(createErr, gorm.ErrDuplicatedKey) {
		return nil
	}
	var txn models.Transaction
	if err := s.preloaded(ctx).First(&txn, "wizard_session_id = ?", sessionID).Error; err != nil {
		return nil
	}
	return &txn
}

func newClient(transactionID string, d wizard.ClientDraft, primary bool) models.Client {
	return models.Client{
		ClientID:                models.NewID(models.PrefixClient),
		TransactionID:           transactionID,
		FirstName:               d.FirstName,
		LastName:                d.LastName,
		Email:                   d.Email,
		Phone:                   d.Phone,
		Role:                    d.Role,
		IsPrimary:               primary,
		CommunicationPreference: d.Preference,
	}
}

func (s *TransactionService) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Property").
		Preload("Agent").
		Preload("Clients", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_primary DESC, created_at ASC")
		})
}

// GetTransaction retrieves a transaction visible in scope
func (s *TransactionService) GetTransaction(ctx context.Context, scope Scope, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.preloaded(ctx).First(&txn, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "get transaction", "transaction")
	}
	if !scope.Allows(txn.AgentID) {
		return nil, apperrors.NotFoundError("transaction")
	}
	return &txn, nil
}

// ListTransactions loads every transaction in scope, then filters and sorts in memory.
// Reads are not snapshotted; concurrent writes may or may not be included.
func (s *TransactionService) ListTransactions(ctx context.Context, scope Scope, q ListQuery) ([]models.Transaction, error) {
	var records []models.Transaction
	query := scope.apply(s.preloaded(ctx)).Order("created_at DESC")
	if err := query.Find(&records).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "list transactions", "transaction")
	}

	filtered := progress.Apply(records, q.Filter)
	if q.Sort != "" {
		progress.Sort(filtered, q.Sort, q.Desc)
	}
	return filtered, nil
}

// ListCards is ListTransactions rendered as display cards
func (s *TransactionService) ListCards(ctx context.Context, scope Scope, q ListQuery) ([]display.Card, error) {
	records, err := s.ListTransactions(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	return display.TransactionCards(records, s.now()), nil
}

// Progress returns filtered cards and metrics over the same records
func (s *TransactionService) Progress(ctx context.Context, scope Scope, q ListQuery) (*ProgressView, error) {
	records, err := s.ListTransactions(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &ProgressView{
		Cards:   display.TransactionCards(records, now),
		Metrics: progress.ComputeMetrics(records, now),
	}, nil
}

// AgentPerformance aggregates the filtered transactions per assigned agent
func (s *TransactionService) AgentPerformance(ctx context.Context, filter progress.Filter) ([]progress.AgentStats, error) {
	records, err := s.ListTransactions(ctx, Unrestricted, ListQuery{Filter: filter})
	if err != nil {
		return nil, err
	}
	return progress.AgentPerformance(records, s.now()), nil
}

// UpdateStatus changes one transaction's status
func (s *TransactionService) UpdateStatus(ctx context.Context, scope Scope, transactionID string, status models.TransactionStatus) (*models.Transaction, error) {
	req := models.UpdateTransactionStatusRequest{Status: status}
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationError("INVALID_STATUS", err.Error())
	}
	txn, err := s.GetTransaction(ctx, scope, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("transaction_id = ?", transactionID).
		Update("status", status).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "update transaction status", "transaction")
	}
	txn.Status = status
	slog.Info("Transaction status updated", "transactionID", transactionID, "status", status)
	publishChanges(ctx, s.feed, txn.TableName(), models.ChangeUpdate, transactionID)
	return txn, nil
}

// BulkUpdateStatus moves every id to status with a single UPDATE and reports the affected count
func (s *TransactionService) BulkUpdateStatus(ctx context.Context, req *models.BulkStatusUpdateRequest) (*models.BatchUpdateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationError("INVALID_REQUEST", err.Error())
	}
	ids := bulk.Dedupe(req.TransactionIDs)
	if len(ids) == 0 {
		return nil, apperrors.ValidationError("EMPTY_SELECTION", bulk.ErrEmptySelection.Error())
	}

	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("transaction_id IN ?", ids).
		Update("status", req.Status)
	if res.Error != nil {
		return nil, apperrors.HandleDatabaseError(res.Error, "bulk update transaction status", "transaction")
	}

	monitoring.RecordBusinessEvent("transaction_bulk_status", "success")
	slog.Info("Bulk transaction status update", "requested", len(ids), "updated", res.RowsAffected, "status", req.Status)
	publishChanges(ctx, s.feed, models.Transaction{}.TableName(), models.ChangeUpdate, ids...)
	return &models.BatchUpdateResponse{Requested: len(ids), Updated: res.RowsAffected}, nil
}

// Reassign moves transactions to an existing agent
func (s *TransactionService) Reassign(ctx context.Context, req *models.ReassignTransactionsRequest) (*models.BatchUpdateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationError("INVALID_REQUEST", err.Error())
	}
	ids := bulk.Dedupe(req.TransactionIDs)

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var agent models.AgentProfile
		if err := tx.Select("agent_id").First(&agent, "agent_id = ?", req.AgentID).Error; err != nil {
			return apperrors.HandleDatabaseError(err, "find agent", "agent")
		}
		res := tx.Model(&models.Transaction{}).
			Where("transaction_id IN ?", ids).
			Update("agent_id", req.AgentID)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, apperrors.HandleDatabaseError(err, "reassign transactions", "transaction")
	}

	slog.Info("Transactions reassigned", "agentID", req.AgentID, "requested", len(ids), "updated", affected)
	publishChanges(ctx, s.feed, models.Transaction{}.TableName(), models.ChangeUpdate, ids...)
	return &models.BatchUpdateResponse{Requested: len(ids), Updated: affected}, nil
}
