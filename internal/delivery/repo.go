package delivery

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
)

// Repository persists the delivery fee schedule.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActive(ctx context.Context) (*models.DeliverySettings, error)
	// Replace deactivates every existing row and inserts the new one as
	// active, keeping the at-most-one-active invariant.
	Replace(ctx context.Context, settings *models.DeliverySettings) (*models.DeliverySettings, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActive(ctx context.Context) (*models.DeliverySettings, error) {
	var settings models.DeliverySettings
	err := r.db.WithContext(ctx).
		Where("is_active = true").
		Order("created_at DESC").
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *repository) Replace(ctx context.Context, settings *models.DeliverySettings) (*models.DeliverySettings, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DeliverySettings{}).
			Where("is_active = true").
			Update("is_active", false).Error; err != nil {
			return err
		}
		settings.IsActive = true
		return tx.Create(settings).Error
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}
