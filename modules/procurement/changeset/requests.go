package changeset

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdditionItem is either a quantity increase on an existing item or a brand
// new line; exactly one of the two shapes is populated.
type AdditionItem struct {
	BOQItemID          *uuid.UUID      `json:"boq_item_id,omitempty"`
	AdditionalQuantity decimal.Decimal `json:"additional_quantity"`
	ItemNumber         string          `json:"item_number,omitempty"`
	Description        string          `json:"description,omitempty"`
	Unit               string          `json:"unit,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
}

type AdditionRequest struct {
	PurchaseOrderID uuid.UUID      `json:"purchase_order_id"`
	Items           []AdditionItem `json:"items"`
}

// OmissionItem carries only the item id and the reduction amount; the server
// recomputes the monetary effect from its own records.
type OmissionItem struct {
	BOQItemID         uuid.UUID       `json:"boq_item_id"`
	ReductionQuantity decimal.Decimal `json:"reduction_quantity"`
}

type OmissionRequest struct {
	PurchaseOrderID uuid.UUID      `json:"purchase_order_id"`
	Items           []OmissionItem `json:"items"`
}

// AmendmentItem is a price-only change on an existing item.
type AmendmentItem struct {
	BOQItemID    uuid.UUID       `json:"boq_item_id"`
	NewUnitPrice decimal.Decimal `json:"new_unit_price"`
}

type AmendmentRequest struct {
	PurchaseOrderID uuid.UUID       `json:"purchase_order_id"`
	Items           []AmendmentItem `json:"items"`
}

// Requests is the submission split. The three requests are sent
// independently; the caller reports a failed counterpart without rolling back
// one that already succeeded.
type Requests struct {
	Addition  *AdditionRequest  `json:"addition,omitempty"`
	Omission  *OmissionRequest  `json:"omission,omitempty"`
	Amendment *AmendmentRequest `json:"amendment,omitempty"`
}

// BuildRequests bundles quantity increases and new items into one addition
// request, quantity decreases into one omission request, and price-only
// changes into one amendment request. Empty bundles are omitted.
func (b *Builder) BuildRequests() Requests {
	var additions []AdditionItem
	var omissions []OmissionItem
	var amendments []AmendmentItem

	itemIDs := make([]uuid.UUID, 0, len(b.changes))
	for itemID := range b.changes {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i].String() < itemIDs[j].String() })

	for _, itemID := range itemIDs {
		change := b.changes[itemID]
		item := b.items[itemID]
		id := itemID
		switch b.Classification(itemID) {
		case KindQtyIncrease:
			additions = append(additions, AdditionItem{
				BOQItemID:          &id,
				AdditionalQuantity: change.NewQuantity.Sub(item.Quantity),
				Quantity:           *change.NewQuantity,
				UnitPrice:          item.UnitPrice,
			})
		case KindQtyDecrease:
			omissions = append(omissions, OmissionItem{
				BOQItemID:         id,
				ReductionQuantity: item.Quantity.Sub(*change.NewQuantity),
			})
		case KindPriceChange:
			amendments = append(amendments, AmendmentItem{
				BOQItemID:    id,
				NewUnitPrice: *change.NewUnitPrice,
			})
		}
	}

	for _, item := range b.newItems {
		if item.valid() {
			additions = append(additions, AdditionItem{
				ItemNumber:  item.ItemNumber,
				Description: item.Description,
				Unit:        item.Unit,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}
	}

	var out Requests
	if len(additions) > 0 {
		out.Addition = &AdditionRequest{PurchaseOrderID: b.purchaseOrderID, Items: additions}
	}
	if len(omissions) > 0 {
		out.Omission = &OmissionRequest{PurchaseOrderID: b.purchaseOrderID, Items: omissions}
	}
	if len(amendments) > 0 {
		out.Amendment = &AmendmentRequest{PurchaseOrderID: b.purchaseOrderID, Items: amendments}
	}
	return out
}
