package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/purchaseorder"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type PurchaseOrderRepository struct{}

func NewPurchaseOrderRepository() purchaseorder.Repository {
	return &PurchaseOrderRepository{}
}

const purchaseOrderColumns = `
	tenant_id, id, project_id, organization_id, po_number, supplier_name,
	total_value, co_sequence, created_at, updated_at`

func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*purchaseorder.PurchaseOrder, error) {
	return r.getByID(ctx, id, "")
}

func (r *PurchaseOrderRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*purchaseorder.PurchaseOrder, error) {
	return r.getByID(ctx, id, " FOR UPDATE")
}

func (r *PurchaseOrderRepository) getByID(ctx context.Context, id uuid.UUID, suffix string) (*purchaseorder.PurchaseOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
SELECT `+purchaseOrderColumns+`
FROM purchase_orders
WHERE id=$1`+suffix, pgUUID(id))
	return scanPurchaseOrder(row)
}

// NextCOSequence bumps the row-owned counter. Callers already hold the row
// lock so the increment is serialized per purchase order.
func (r *PurchaseOrderRepository) NextCOSequence(ctx context.Context, id uuid.UUID) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var seq int
	if err := tx.QueryRow(ctx, `
UPDATE purchase_orders
SET co_sequence = co_sequence + 1, updated_at = now()
WHERE id=$1
RETURNING co_sequence`, pgUUID(id)).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *PurchaseOrderRepository) AddToTotalValue(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	var newTotal pgtype.Numeric
	if err := tx.QueryRow(ctx, `
UPDATE purchase_orders
SET total_value = total_value + $2, updated_at = now()
WHERE id=$1
RETURNING total_value`, pgUUID(id), pgNumeric(delta)).Scan(&newTotal); err != nil {
		return decimal.Zero, err
	}
	return asDecimal(newTotal), nil
}

func (r *PurchaseOrderRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*purchaseorder.PurchaseOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+purchaseOrderColumns+`
FROM purchase_orders
WHERE project_id=$1
ORDER BY po_number`, pgUUID(projectID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*purchaseorder.PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func scanPurchaseOrder(row pgx.Row) (*purchaseorder.PurchaseOrder, error) {
	var (
		po                   purchaseorder.PurchaseOrder
		tenantID, id         pgtype.UUID
		projectID, orgID     pgtype.UUID
		totalValue           pgtype.Numeric
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&tenantID, &id, &projectID, &orgID, &po.PONumber, &po.SupplierName,
		&totalValue, &po.COSequence, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	po.TenantID = asUUID(tenantID)
	po.ID = asUUID(id)
	po.ProjectID = asUUID(projectID)
	po.OrganizationID = asUUID(orgID)
	po.TotalValue = asDecimal(totalValue)
	po.CreatedAt = asTime(createdAt)
	po.UpdatedAt = asTime(updatedAt)
	return &po, nil
}
