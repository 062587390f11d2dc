package services

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/v1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VendorService manages agents' vendor lists.
// Each (agent, vendor type) list has at most one primary vendor.
type VendorService struct {
	db   *gorm.DB
	feed ChangeFeed
}

// NewVendorService creates a new vendor service
func NewVendorService(db *gorm.DB, feed ChangeFeed) *VendorService {
	return &VendorService{db: db, feed: feed}
}

// CreateVendor adds a vendor. It becomes primary when requested or when it is the first of its type.
func (s *VendorService) CreateVendor(ctx context.Context, agentID string, req *models.CreateVendorRequest) (*models.Vendor, error) {
	if fields := req.Validate(); fields != nil {
		return nil, apperrors.FieldValidationError("Invalid vendor details", fields)
	}

	vendor := models.Vendor{
		VendorID:    models.NewID(models.PrefixVendor),
		AgentID:     agentID,
		VendorType:  req.VendorType,
		CompanyName: strings.TrimSpace(req.CompanyName),
		ContactName: strings.TrimSpace(req.ContactName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		Notes:       req.Notes,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockAgent(tx, agentID); err != nil {
			return apperrors.HandleDatabaseError(err, "find agent", "agent")
		}

		var existing int64
		if err := tx.Model(&models.Vendor{}).
			Where("agent_id = ? AND vendor_type = ?", agentID, req.VendorType).
			Count(&existing).Error; err != nil {
			return err
		}

		vendor.IsPrimary = req.IsPrimary || existing == 0
		if vendor.IsPrimary && existing > 0 {
			if err := clearPrimary(tx, agentID, req.VendorType); err != nil {
				return err
			}
		}
		return tx.Create(&vendor).Error
	})
	if err != nil {
		return nil, apperrors.HandleDatabaseError(err, "create vendor", "vendor")
	}

	slog.Info("Vendor created", "vendorID", vendor.VendorID, "agentID", agentID, "type", vendor.VendorType, "primary", vendor.IsPrimary)
	publishChanges(ctx, s.feed, vendor.TableName(), models.ChangeInsert, vendor.VendorID)
	return &vendor, nil
}

// lockAgent takes a row lock on the agent so primary changes for its vendors run one at a time.
// The partial unique index idx_vendors_one_primary backs this up.
func lockAgent(tx *gorm.DB, agentID string) error {
	var agent models.AgentProfile
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("agent_id").First(&agent, "agent_id = ?", agentID).Error
}

func clearPrimary(tx *gorm.DB, agentID string, vendorType models.VendorType) error {
	return tx.Model(&models.Vendor{}).
		Where("agent_id = ? AND vendor_type = ? AND is_primary = ?", agentID, vendorType, true).
		Update("is_primary", false).Error
}

// ListVendors returns an agent's vendors, primary first within each type
func (s *VendorService) ListVendors(ctx context.Context, agentID string, vendorType models.VendorType) ([]models.Vendor, error) {
	query := s.db.WithContext(ctx).Where("agent_id = ?", agentID)
	if vendorType != "" {
		if !vendorType.IsValid() {
			return nil, apperrors.ValidationError("INVALID_VENDOR_TYPE", "unknown vendor type "+string(vendorType))
		}
		query = query.Where("vendor_type = ?", vendorType)
	}
	var vendors []models.Vendor
	if err := query.Order("vendor_type ASC, is_primary DESC, company_name ASC").Find(&vendors).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "list vendors", "vendor")
	}
	return vendors, nil
}

// GetVendor retrieves a vendor by ID
func (s *VendorService) GetVendor(ctx context.Context, vendorID string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := s.db.WithContext(ctx).First(&vendor, "vendor_id = ?", vendorID).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "get vendor", "vendor")
	}
	return &vendor, nil
}

// UpdateVendor patches contact details. Primary status only changes through SetPrimary.
func (s *VendorService) UpdateVendor(ctx context.Context, vendorID string, req *models.UpdateVendorRequest) (*models.Vendor, error) {
	vendor, err := s.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.CompanyName != nil {
		name := strings.TrimSpace(*req.CompanyName)
		if name == "" {
			return nil, apperrors.FieldValidationError("Invalid vendor details", map[string]string{"companyName": "is required"})
		}
		updates["company_name"] = name
		vendor.CompanyName = name
	}
	if req.ContactName != nil {
		updates["contact_name"] = strings.TrimSpace(*req.ContactName)
		vendor.ContactName = strings.TrimSpace(*req.ContactName)
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
		vendor.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
		vendor.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Notes != nil {
		if len(*req.Notes) > models.MaxNotesLength {
			return nil, apperrors.FieldValidationError("Invalid vendor details", map[string]string{"notes": "is too long"})
		}
		updates["notes"] = *req.Notes
		vendor.Notes = *req.Notes
	}
	if len(updates) == 0 {
		return vendor, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Vendor{}).Where("vendor_id = ?", vendorID).Updates(updates).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "update vendor", "vendor")
	}
	publishChanges(ctx, s.feed, vendor.TableName(), models.ChangeUpdate, vendorID)
	return vendor, nil
}

// SetPrimary makes vendorID the primary of its list, clearing the others in the same transaction
func (s *VendorService) SetPrimary(ctx context.Context, vendorID string) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&vendor, "vendor_id = ?", vendorID).Error; err != nil {
			return err
		}
		if err := lockAgent(tx, vendor.AgentID); err != nil {
			return err
		}
		if err := clearPrimary(tx, vendor.AgentID, vendor.VendorType); err != nil {
			return err
		}
		return tx.Model(&models.Vendor{}).Where("vendor_id = ?", vendorID).Update("is_primary", true).Error
	})
	if err != nil {
		return nil, apperrors.HandleDatabaseError(err, "set primary vendor", "vendor")
	}
	vendor.IsPrimary = true
	slog.Info("Primary vendor set", "vendorID", vendorID, "agentID", vendor.AgentID, "type", vendor.VendorType)
	publishChanges(ctx, s.feed, vendor.TableName(), models.ChangeUpdate, vendorID)
	return &vendor, nil
}

// DeleteVendor removes a vendor. Deleting the primary promotes no replacement.
func (s *VendorService) DeleteVendor(ctx context.Context, vendorID string) error {
	res := s.db.WithContext(ctx).Where("vendor_id = ?", vendorID).Delete(&models.Vendor{})
	if res.Error != nil {
		return apperrors.HandleDatabaseError(res.Error, "delete vendor", "vendor")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFoundError("vendor")
	}
	publishChanges(ctx, s.feed, models.Vendor{}.TableName(), models.ChangeDelete, vendorID)
	return nil
}
