package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel contains common fields for all models
type BaseModel struct {
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// BeforeCreate GORM hook for BaseModel.
// A CreatedAt set by the caller is kept so imports can carry historic timestamps.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM hook for BaseModel
func (b *BaseModel) BeforeUpdate(tx *gorm.DB) error {
	b.UpdatedAt = time.Now()
	return nil
}

// ID prefixes per entity
const (
	PrefixTransaction = "txn_"
	PrefixProperty    = "prop_"
	PrefixClient      = "cli_"
	PrefixAgent       = "agt_"
	PrefixOffer       = "off_"
	PrefixVendor      = "ven_"
	PrefixJob         = "job_"
	PrefixWizard      = "wiz_"
)

// NewID returns a prefixed random identifier, e.g. "txn_5f0c..."
func NewID(prefix string) string {
	return prefix + uuid.New().String()
}
