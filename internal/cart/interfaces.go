package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
)

// Repository defines persistence operations for carts and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	DeleteAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AddItemInput identifies what the customer picked. Prices are resolved
// server-side from the catalog; any client-sent price is discarded.
type AddItemInput struct {
	ProductID      uuid.UUID
	Quantity       int
	VariantValue   *string
	Customizations []CustomizationChoice
}

// CustomizationChoice selects one customization option by name.
type CustomizationChoice struct {
	Name   string
	Option string
}
