package boqitem

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BOQItem is one contracted line of work on a purchase order.
//
// Two invariants hold after every accepted mutation:
//
//	0 <= QuantityCertified <= QuantityInstalled <= QuantityDelivered <= Quantity
//
// and the contracted quantity never drops below the certified quantity.
// Items are soft-deleted only; certified history must stay auditable.
type BOQItem struct {
	TenantID            uuid.UUID        `json:"tenant_id"`
	ID                  uuid.UUID        `json:"id"`
	PurchaseOrderID     uuid.UUID        `json:"purchase_order_id"`
	ItemNumber          string           `json:"item_number"`
	Description         string           `json:"description"`
	Unit                string           `json:"unit"`
	Quantity            decimal.Decimal  `json:"quantity"`
	OriginalQuantity    *decimal.Decimal `json:"original_quantity,omitempty"`
	RevisedQuantity     *decimal.Decimal `json:"revised_quantity,omitempty"`
	UnitPrice           decimal.Decimal  `json:"unit_price"`
	TotalPrice          decimal.Decimal  `json:"total_price"`
	QuantityDelivered   decimal.Decimal  `json:"quantity_delivered"`
	QuantityInstalled   decimal.Decimal  `json:"quantity_installed"`
	QuantityCertified   decimal.Decimal  `json:"quantity_certified"`
	IsVariation         bool             `json:"is_variation"`
	VariationOrderNo    *string          `json:"variation_order_number,omitempty"`
	ClientInstructionID *uuid.UUID       `json:"client_instruction_id,omitempty"`
	LockedForDeScope    bool             `json:"locked_for_de_scope"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	DeletedAt           *time.Time       `json:"deleted_at,omitempty"`
}

// ContractedQuantity is the baseline a de-scope reduces from: the original
// quantity when one was recorded, the current quantity otherwise.
func (i *BOQItem) ContractedQuantity() decimal.Decimal {
	if i.OriginalQuantity != nil {
		return *i.OriginalQuantity
	}
	return i.Quantity
}
