package purchaseorder

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	// NextCOSequence atomically increments and returns the purchase order's
	// change-order counter. Collision-free by construction.
	NextCOSequence(ctx context.Context, id uuid.UUID) (int, error)
	// AddToTotalValue applies a signed delta and returns the new total.
	AddToTotalValue(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*PurchaseOrder, error)
}
