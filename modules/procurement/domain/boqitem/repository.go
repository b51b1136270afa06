package boqitem

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, item *BOQItem) (*BOQItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*BOQItem, error)
	// GetByIDForUpdate locks the item row for the duration of the enclosing
	// transaction so quantity floors are re-checked under the lock.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*BOQItem, error)
	GetByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*BOQItem, error)
	Update(ctx context.Context, item *BOQItem) error
	ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*BOQItem, error)
}
