package delivery

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/internal/pricing"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
)

// Service exposes the active fee schedule and the delivery-charge preview.
type Service interface {
	ActiveSettings(ctx context.Context) (*models.DeliverySettings, error)
	// PricingSettings converts the active row into the engine's shape.
	// Nil means none is configured and defaults apply.
	PricingSettings(ctx context.Context) (*pricing.Settings, error)
	ReplaceSettings(ctx context.Context, settings *models.DeliverySettings) (*models.DeliverySettings, error)
	// QuoteCharge is the soft preview: out-of-range distances come back
	// as CanDeliver=false rather than an error.
	QuoteCharge(ctx context.Context, distanceKM, subtotal decimal.Decimal) (*pricing.Quote, error)
}

type service struct {
	repo   Repository
	engine *pricing.Engine
}

func NewService(repo Repository, engine *pricing.Engine) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	return &service{repo: repo, engine: engine}, nil
}

func (s *service) ActiveSettings(ctx context.Context) (*models.DeliverySettings, error) {
	return s.repo.FindActive(ctx)
}

func (s *service) PricingSettings(ctx context.Context) (*pricing.Settings, error) {
	row, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &pricing.Settings{
		Tiers:                 row.DistanceTiers,
		MaxDistanceKM:         row.MaxDeliveryDistanceKM,
		FreeDeliveryThreshold: row.FreeDeliveryThreshold,
	}, nil
}

func (s *service) ReplaceSettings(ctx context.Context, settings *models.DeliverySettings) (*models.DeliverySettings, error) {
	if len(settings.DistanceTiers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one distance tier required")
	}
	maxTier := decimal.Zero
	for _, tier := range settings.DistanceTiers {
		if !tier.MaxDistanceKM.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier max distance must be positive")
		}
		if tier.Charge.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier charge cannot be negative")
		}
		if tier.MaxDistanceKM.GreaterThan(maxTier) {
			maxTier = tier.MaxDistanceKM
		}
	}
	if settings.MaxDeliveryDistanceKM.IsZero() {
		settings.MaxDeliveryDistanceKM = maxTier
	}
	if settings.MaxDeliveryDistanceKM.LessThan(maxTier) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max delivery distance cannot be below the largest tier")
	}
	return s.repo.Replace(ctx, settings)
}

func (s *service) QuoteCharge(ctx context.Context, distanceKM, subtotal decimal.Decimal) (*pricing.Quote, error) {
	if distanceKM.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distance cannot be negative")
	}
	settings, err := s.PricingSettings(ctx)
	if err != nil {
		return nil, err
	}
	quote := s.engine.QuoteCharge(distanceKM, subtotal, settings)
	return &quote, nil
}
