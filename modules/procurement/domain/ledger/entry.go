package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionCOAdjustment = "CO_ADJUSTMENT"
	StatusCommitted         = "COMMITTED"
)

// Entry is an append-only financial ledger record. Entries are never mutated
// after creation.
type Entry struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	ID              uuid.UUID       `json:"id"`
	PurchaseOrderID uuid.UUID       `json:"purchase_order_id"`
	ChangeOrderID   uuid.UUID       `json:"change_order_id"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	Note            string          `json:"note"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, entry *Entry) (*Entry, error)
	ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*Entry, error)
}
