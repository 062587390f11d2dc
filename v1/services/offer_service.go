package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/shared/monitoring"
	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/wizard"
	"gorm.io/gorm"
)

// OfferService handles offer requests drafted through the offer wizard
type OfferService struct {
	db   *gorm.DB
	feed ChangeFeed
}

// NewOfferService creates a new offer service
func NewOfferService(db *gorm.DB, feed ChangeFeed) *OfferService {
	return &OfferService{db: db, feed: feed}
}

// CreateFromWizard stores a submitted offer for agentID with status pending
func (s *OfferService) CreateFromWizard(ctx context.Context, agentID string, draft wizard.OfferDraft) (*models.OfferRequest, error) {
	if agentID == "" {
		return nil, apperrors.ForbiddenError("offers can only be created by a user linked to an agent profile")
	}
	offer := models.OfferRequest{
		OfferID:               models.NewID(models.PrefixOffer),
		AgentID:               agentID,
		TransactionID:         draft.TransactionID,
		BuyerNames:            models.StringList(draft.BuyerNames),
		BuyerEmail:            draft.BuyerEmail,
		BuyerPhone:            draft.BuyerPhone,
		PropertyAddress:       draft.PropertyAddress,
		PurchasePrice:         draft.PurchasePrice,
		LoanType:              draft.LoanType,
		EarnestMoney:          draft.EarnestMoney,
		DownPayment:           draft.DownPayment,
		FinancingContingency:  draft.FinancingContingency,
		InspectionContingency: draft.InspectionContingency,
		AppraisalContingency:  draft.AppraisalContingency,
		InspectionPeriodDays:  draft.InspectionPeriodDays,
		ClosingDate:           draft.ClosingDate,
		Notes:                 draft.Notes,
		Status:                models.OfferStatusPending,
	}
	if draft.SessionID != "" {
		offer.WizardSessionID = &draft.SessionID
	}

	if err := s.db.WithContext(ctx).Create(&offer).Error; err != nil {
		if draft.SessionID != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.OfferRequest
			if findErr := s.db.WithContext(ctx).First(&existing, "wizard_session_id = ?", draft.SessionID).Error; findErr == nil {
				return &existing, nil
			}
		}
		monitoring.RecordBusinessEvent("offer_create", "failure")
		return nil, apperrors.HandleDatabaseError(err, "create offer", "offer")
	}
	monitoring.RecordBusinessEvent("offer_create", "success")
	slog.Info("Offer created", "offerID", offer.OfferID, "agentID", agentID)
	publishChanges(ctx, s.feed, offer.TableName(), models.ChangeInsert, offer.OfferID)
	return &offer, nil
}

// GetOffer retrieves an offer visible in scope
func (s *OfferService) GetOffer(ctx context.Context, scope Scope, offerID string) (*models.OfferRequest, error) {
	var offer models.OfferRequest
	if err := s.db.WithContext(ctx).First(&offer, "offer_id = ?", offerID).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "get offer", "offer")
	}
	if !scope.Allows(&offer.AgentID) {
		return nil, apperrors.NotFoundError("offer")
	}
	return &offer, nil
}

// ListOffers returns offers in scope, newest first, optionally by status
func (s *OfferService) ListOffers(ctx context.Context, scope Scope, status models.OfferStatus) ([]models.OfferRequest, error) {
	query := scope.apply(s.db.WithContext(ctx).Model(&models.OfferRequest{}))
	if status != "" {
		if !status.IsValid() {
			return nil, apperrors.ValidationError("INVALID_STATUS", fmt.Sprintf("invalid offer status %q", status))
		}
		query = query.Where("status = ?", status)
	}
	var offers []models.OfferRequest
	if err := query.Order("created_at DESC").Find(&offers).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "list offers", "offer")
	}
	return offers, nil
}

// UpdateStatus moves an offer to a new status. Accepted, rejected and withdrawn offers are final.
func (s *OfferService) UpdateStatus(ctx context.Context, scope Scope, offerID string, status models.OfferStatus) (*models.OfferRequest, error) {
	if !status.IsValid() {
		return nil, apperrors.ValidationError("INVALID_STATUS", fmt.Sprintf("invalid offer status %q", status))
	}
	offer, err := s.GetOffer(ctx, scope, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status.IsTerminal() {
		return nil, apperrors.ConflictError(fmt.Sprintf("offer is %s and can no longer change", offer.Status))
	}

	// the status guard makes a concurrent terminal transition lose cleanly
	res := s.db.WithContext(ctx).Model(&models.OfferRequest{}).
		Where("offer_id = ? AND status = ?", offerID, offer.Status).
		Update("status", status)
	if res.Error != nil {
		return nil, apperrors.HandleDatabaseError(res.Error, "update offer status", "offer")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ConflictError("offer changed concurrently, reload and retry")
	}
	offer.Status = status
	publishChanges(ctx, s.feed, offer.TableName(), models.ChangeUpdate, offerID)
	return offer, nil
}
