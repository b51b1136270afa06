// Package changeset is the client-side change-request builder: a pure,
// replayable aggregation of proposed BOQ edits with a financial-impact
// preview. Nothing in this package performs I/O; the preview is always
// derivable from the inputs the client already holds.
package changeset

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeKind classifies a proposed edit to an existing item. The cases are
// mutually exclusive and evaluated in this order: quantity increase, quantity
// decrease, price change, none.
type ChangeKind string

const (
	KindNone        ChangeKind = "none"
	KindQtyIncrease ChangeKind = "qty_increase"
	KindQtyDecrease ChangeKind = "qty_decrease"
	KindPriceChange ChangeKind = "price_change"
)

// ExistingItem is the client's snapshot of a contracted BOQ line.
type ExistingItem struct {
	ID                uuid.UUID
	ItemNumber        string
	Description       string
	Unit              string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	QuantityCertified decimal.Decimal
}

// ItemChange is a proposed new quantity and/or unit price for an existing item.
type ItemChange struct {
	NewQuantity  *decimal.Decimal
	NewUnitPrice *decimal.Decimal
}

// NewItem is a brand-new line item not yet persisted anywhere.
type NewItem struct {
	ItemNumber  string
	Description string
	Unit        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

func (n NewItem) valid() bool {
	return n.Quantity.IsPositive() && n.UnitPrice.IsPositive()
}

// Summary is the derived financial impact of the current change set.
type Summary struct {
	Additions     decimal.Decimal `json:"additions"`
	Omissions     decimal.Decimal `json:"omissions"`
	NetChange     decimal.Decimal `json:"net_change"`
	NewTotal      decimal.Decimal `json:"new_total"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// Builder accumulates one session's proposed edits against a purchase order.
type Builder struct {
	purchaseOrderID uuid.UUID
	currentPOValue  decimal.Decimal
	items           map[uuid.UUID]ExistingItem
	changes         map[uuid.UUID]ItemChange
	newItems        []NewItem
}

func NewBuilder(purchaseOrderID uuid.UUID, items []ExistingItem, currentPOValue decimal.Decimal) *Builder {
	indexed := make(map[uuid.UUID]ExistingItem, len(items))
	for _, item := range items {
		indexed[item.ID] = item
	}
	return &Builder{
		purchaseOrderID: purchaseOrderID,
		currentPOValue:  currentPOValue,
		items:           indexed,
		changes:         make(map[uuid.UUID]ItemChange),
	}
}

// UpdateItemChange stores a proposed edit for an existing item. A quantity
// decrease is clamped to the item's certified quantity, mirroring the
// server-side de-scope floor before any submission happens.
func (b *Builder) UpdateItemChange(itemID uuid.UUID, change ItemChange) error {
	item, ok := b.items[itemID]
	if !ok {
		return fmt.Errorf("unknown item %s", itemID)
	}
	if change.NewQuantity != nil {
		if change.NewQuantity.IsNegative() {
			return fmt.Errorf("quantity for %s must not be negative", item.ItemNumber)
		}
		if change.NewQuantity.LessThan(item.QuantityCertified) {
			clamped := item.QuantityCertified
			change.NewQuantity = &clamped
		}
	}
	if change.NewUnitPrice != nil && change.NewUnitPrice.IsNegative() {
		return fmt.Errorf("unit price for %s must not be negative", item.ItemNumber)
	}
	if change.NewQuantity == nil && change.NewUnitPrice == nil {
		delete(b.changes, itemID)
		return nil
	}
	b.changes[itemID] = change
	return nil
}

// Classification reports the kind of the stored change, checking quantity
// increase, then quantity decrease, then price change, in that order.
func (b *Builder) Classification(itemID uuid.UUID) ChangeKind {
	item, ok := b.items[itemID]
	if !ok {
		return KindNone
	}
	change, ok := b.changes[itemID]
	if !ok {
		return KindNone
	}
	if change.NewQuantity != nil {
		switch {
		case change.NewQuantity.GreaterThan(item.Quantity):
			return KindQtyIncrease
		case change.NewQuantity.LessThan(item.Quantity):
			return KindQtyDecrease
		}
	}
	if change.NewUnitPrice != nil && !change.NewUnitPrice.Equal(item.UnitPrice) {
		return KindPriceChange
	}
	return KindNone
}

// AddNewItem appends an empty new line and returns its index.
func (b *Builder) AddNewItem() int {
	b.newItems = append(b.newItems, NewItem{})
	return len(b.newItems) - 1
}

func (b *Builder) UpdateNewItem(index int, item NewItem) error {
	if index < 0 || index >= len(b.newItems) {
		return fmt.Errorf("new item index %d out of range", index)
	}
	if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
		return fmt.Errorf("new item quantity and unit price must not be negative")
	}
	b.newItems[index] = item
	return nil
}

func (b *Builder) RemoveNewItem(index int) error {
	if index < 0 || index >= len(b.newItems) {
		return fmt.Errorf("new item index %d out of range", index)
	}
	b.newItems = append(b.newItems[:index], b.newItems[index+1:]...)
	return nil
}

func (b *Builder) NewItems() []NewItem {
	out := make([]NewItem, len(b.newItems))
	copy(out, b.newItems)
	return out
}

func (b *Builder) revisedTotal(item ExistingItem, change ItemChange) decimal.Decimal {
	qty := item.Quantity
	if change.NewQuantity != nil {
		qty = *change.NewQuantity
	}
	price := item.UnitPrice
	if change.NewUnitPrice != nil {
		price = *change.NewUnitPrice
	}
	return qty.Mul(price)
}

// Summary recomputes the financial preview from scratch. Additions collect
// every positive revised-minus-original difference plus the full value of
// valid new items; omissions collect the absolute reductions.
func (b *Builder) Summary() Summary {
	additions := decimal.Zero
	omissions := decimal.Zero

	for itemID, change := range b.changes {
		item := b.items[itemID]
		diff := b.revisedTotal(item, change).Sub(item.Quantity.Mul(item.UnitPrice))
		switch {
		case diff.IsPositive():
			additions = additions.Add(diff)
		case diff.IsNegative():
			omissions = omissions.Add(diff.Abs())
		}
	}
	for _, item := range b.newItems {
		if item.valid() {
			additions = additions.Add(item.Quantity.Mul(item.UnitPrice))
		}
	}

	netChange := additions.Sub(omissions)
	newTotal := b.currentPOValue.Add(netChange)
	changePercent := decimal.Zero
	if !b.currentPOValue.IsZero() {
		changePercent = netChange.Div(b.currentPOValue).Mul(decimal.NewFromInt(100))
	}
	return Summary{
		Additions:     additions,
		Omissions:     omissions,
		NetChange:     netChange,
		NewTotal:      newTotal,
		ChangePercent: changePercent,
	}
}

// HasChanges reports whether anything would be submitted: an existing item
// with a real classification, or a new item with quantity, price and a
// description.
func (b *Builder) HasChanges() bool {
	for itemID := range b.changes {
		if b.Classification(itemID) != KindNone {
			return true
		}
	}
	for _, item := range b.newItems {
		if item.valid() && strings.TrimSpace(item.Description) != "" {
			return true
		}
	}
	return false
}
