package changeorder

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, co *ChangeOrder) (*ChangeOrder, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ChangeOrder, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*ChangeOrder, error)
	Update(ctx context.Context, co *ChangeOrder) error
	// ListPending returns SUBMITTED and UNDER_REVIEW orders, newest first,
	// optionally narrowed to one purchase order.
	ListPending(ctx context.Context, purchaseOrderID *uuid.UUID) ([]*PendingView, error)
	ListByPurchaseOrders(ctx context.Context, purchaseOrderIDs []uuid.UUID) ([]*ChangeOrder, error)
}
