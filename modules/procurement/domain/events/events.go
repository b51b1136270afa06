package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain events published after a committed mutation. Subscribers refresh
// presentation views; delivery is fire-and-forget and never a correctness
// dependency.

type ChangeOrderSubmitted struct {
	TenantID        uuid.UUID
	ChangeOrderID   uuid.UUID
	PurchaseOrderID uuid.UUID
	ChangeNumber    string
	Type            string
	AmountDelta     decimal.Decimal
	RequestedBy     uuid.UUID
	OccurredAt      time.Time
}

type ChangeOrderApproved struct {
	TenantID        uuid.UUID
	ChangeOrderID   uuid.UUID
	PurchaseOrderID uuid.UUID
	ChangeNumber    string
	AmountDelta     decimal.Decimal
	NewTotalValue   decimal.Decimal
	ApprovedBy      uuid.UUID
	OccurredAt      time.Time
}

type ChangeOrderRejected struct {
	TenantID        uuid.UUID
	ChangeOrderID   uuid.UUID
	PurchaseOrderID uuid.UUID
	ChangeNumber    string
	RejectedBy      uuid.UUID
	Reason          string
	OccurredAt      time.Time
}

type QuantityProgressUpdated struct {
	TenantID        uuid.UUID
	BOQItemID       uuid.UUID
	PurchaseOrderID uuid.UUID
	Stage           string // delivered, installed or certified
	Quantity        decimal.Decimal
	OccurredAt      time.Time
}
