package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type BOQItemRepository struct{}

func NewBOQItemRepository() boqitem.Repository {
	return &BOQItemRepository{}
}

const boqItemColumns = `
	tenant_id, id, purchase_order_id, item_number, description, unit,
	quantity, original_quantity, revised_quantity, unit_price, total_price,
	quantity_delivered, quantity_installed, quantity_certified,
	is_variation, variation_order_number, client_instruction_id,
	locked_for_de_scope, created_at, updated_at, deleted_at`

func (r *BOQItemRepository) Insert(ctx context.Context, item *boqitem.BOQItem) (*boqitem.BOQItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
INSERT INTO boq_items (
	tenant_id, purchase_order_id, item_number, description, unit,
	quantity, original_quantity, revised_quantity, unit_price, total_price,
	quantity_delivered, quantity_installed, quantity_certified,
	is_variation, variation_order_number, client_instruction_id, locked_for_de_scope
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
RETURNING `+boqItemColumns,
		pgUUID(item.TenantID),
		pgUUID(item.PurchaseOrderID),
		item.ItemNumber,
		item.Description,
		item.Unit,
		pgNumeric(item.Quantity),
		pgNullableNumeric(item.OriginalQuantity),
		pgNullableNumeric(item.RevisedQuantity),
		pgNumeric(item.UnitPrice),
		pgNumeric(item.TotalPrice),
		pgNumeric(item.QuantityDelivered),
		pgNumeric(item.QuantityInstalled),
		pgNumeric(item.QuantityCertified),
		item.IsVariation,
		pgNullableText(item.VariationOrderNo),
		pgNullableUUID(item.ClientInstructionID),
		item.LockedForDeScope,
	)
	return scanBOQItem(row)
}

func (r *BOQItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*boqitem.BOQItem, error) {
	return r.getByID(ctx, id, "")
}

func (r *BOQItemRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*boqitem.BOQItem, error) {
	return r.getByID(ctx, id, " FOR UPDATE")
}

func (r *BOQItemRepository) getByID(ctx context.Context, id uuid.UUID, suffix string) (*boqitem.BOQItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
SELECT `+boqItemColumns+`
FROM boq_items
WHERE id=$1 AND deleted_at IS NULL`+suffix, pgUUID(id))
	return scanBOQItem(row)
}

// GetByIDsForUpdate locks the rows in id order so concurrent batches acquire
// locks in a consistent sequence.
func (r *BOQItemRepository) GetByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*boqitem.BOQItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+boqItemColumns+`
FROM boq_items
WHERE id = ANY($1) AND deleted_at IS NULL
ORDER BY id
FOR UPDATE`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBOQItems(rows)
}

func (r *BOQItemRepository) Update(ctx context.Context, item *boqitem.BOQItem) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE boq_items SET
	quantity=$2,
	original_quantity=$3,
	revised_quantity=$4,
	unit_price=$5,
	total_price=$6,
	quantity_delivered=$7,
	quantity_installed=$8,
	quantity_certified=$9,
	locked_for_de_scope=$10,
	updated_at=now()
WHERE id=$1 AND deleted_at IS NULL`,
		pgUUID(item.ID),
		pgNumeric(item.Quantity),
		pgNullableNumeric(item.OriginalQuantity),
		pgNullableNumeric(item.RevisedQuantity),
		pgNumeric(item.UnitPrice),
		pgNumeric(item.TotalPrice),
		pgNumeric(item.QuantityDelivered),
		pgNumeric(item.QuantityInstalled),
		pgNumeric(item.QuantityCertified),
		item.LockedForDeScope,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BOQItemRepository) ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*boqitem.BOQItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+boqItemColumns+`
FROM boq_items
WHERE purchase_order_id=$1 AND deleted_at IS NULL
ORDER BY item_number`, pgUUID(purchaseOrderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBOQItems(rows)
}

func scanBOQItems(rows pgx.Rows) ([]*boqitem.BOQItem, error) {
	var out []*boqitem.BOQItem
	for rows.Next() {
		item, err := scanBOQItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanBOQItem(row pgx.Row) (*boqitem.BOQItem, error) {
	var (
		item             boqitem.BOQItem
		tenantID, id     pgtype.UUID
		poID             pgtype.UUID
		quantity         pgtype.Numeric
		originalQty      pgtype.Numeric
		revisedQty       pgtype.Numeric
		unitPrice        pgtype.Numeric
		totalPrice       pgtype.Numeric
		delivered        pgtype.Numeric
		installed        pgtype.Numeric
		certified        pgtype.Numeric
		voNo             pgtype.Text
		instructionID    pgtype.UUID
		created, updated pgtype.Timestamptz
		deleted          pgtype.Timestamptz
	)
	if err := row.Scan(
		&tenantID, &id, &poID, &item.ItemNumber, &item.Description, &item.Unit,
		&quantity, &originalQty, &revisedQty, &unitPrice, &totalPrice,
		&delivered, &installed, &certified,
		&item.IsVariation, &voNo, &instructionID,
		&item.LockedForDeScope, &created, &updated, &deleted,
	); err != nil {
		return nil, err
	}
	item.TenantID = asUUID(tenantID)
	item.ID = asUUID(id)
	item.PurchaseOrderID = asUUID(poID)
	item.Quantity = asDecimal(quantity)
	item.OriginalQuantity = asNullableDecimal(originalQty)
	item.RevisedQuantity = asNullableDecimal(revisedQty)
	item.UnitPrice = asDecimal(unitPrice)
	item.TotalPrice = asDecimal(totalPrice)
	item.QuantityDelivered = asDecimal(delivered)
	item.QuantityInstalled = asDecimal(installed)
	item.QuantityCertified = asDecimal(certified)
	item.VariationOrderNo = asNullableText(voNo)
	item.ClientInstructionID = asNullableUUID(instructionID)
	item.CreatedAt = asTime(created)
	item.UpdatedAt = asTime(updated)
	item.DeletedAt = asNullableTime(deleted)
	return &item, nil
}
