package persistence

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/changeorder"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type ChangeOrderRepository struct{}

func NewChangeOrderRepository() changeorder.Repository {
	return &ChangeOrderRepository{}
}

const changeOrderColumns = `
	tenant_id, id, purchase_order_id, change_number, variation_order_number,
	change_order_type, reason, amount_delta, new_total_value, status,
	requested_by, approved_by, requested_at, approved_at,
	schedule_impact_days, affected_milestone_ids, affected_boq_item_ids,
	item_deltas, client_instruction_id, rejection_reason, approval_notes,
	created_at, updated_at, deleted_at`

func (r *ChangeOrderRepository) Insert(ctx context.Context, co *changeorder.ChangeOrder) (*changeorder.ChangeOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	deltas, err := json.Marshal(co.ItemDeltas)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
INSERT INTO change_orders (
	tenant_id, purchase_order_id, change_number, variation_order_number,
	change_order_type, reason, amount_delta, new_total_value, status,
	requested_by, requested_at, schedule_impact_days,
	affected_milestone_ids, affected_boq_item_ids, item_deltas,
	client_instruction_id
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15::jsonb,$16)
RETURNING `+changeOrderColumns,
		pgUUID(co.TenantID),
		pgUUID(co.PurchaseOrderID),
		co.ChangeNumber,
		pgNullableText(co.VariationOrderNo),
		co.Type,
		co.Reason,
		pgNumeric(co.AmountDelta),
		pgNumeric(co.NewTotalValue),
		co.Status,
		pgUUID(co.RequestedBy),
		co.RequestedAt,
		co.ScheduleImpactDays,
		uuidStrings(co.AffectedMilestones),
		uuidStrings(co.AffectedBOQItems),
		string(deltas),
		pgNullableUUID(co.ClientInstructionID),
	)
	return scanChangeOrder(row)
}

func (r *ChangeOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*changeorder.ChangeOrder, error) {
	return r.getByID(ctx, id, "")
}

func (r *ChangeOrderRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*changeorder.ChangeOrder, error) {
	return r.getByID(ctx, id, " FOR UPDATE")
}

func (r *ChangeOrderRepository) getByID(ctx context.Context, id uuid.UUID, suffix string) (*changeorder.ChangeOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
SELECT `+changeOrderColumns+`
FROM change_orders
WHERE id=$1 AND deleted_at IS NULL`+suffix, pgUUID(id))
	return scanChangeOrder(row)
}

func (r *ChangeOrderRepository) Update(ctx context.Context, co *changeorder.ChangeOrder) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE change_orders SET
	status=$2,
	approved_by=$3,
	approved_at=$4,
	rejection_reason=$5,
	approval_notes=$6,
	updated_at=now()
WHERE id=$1 AND deleted_at IS NULL`,
		pgUUID(co.ID),
		co.Status,
		pgNullableUUID(co.ApprovedBy),
		co.ApprovedAt,
		pgNullableText(co.RejectionReason),
		pgNullableText(co.ApprovalNotes),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ChangeOrderRepository) ListPending(ctx context.Context, purchaseOrderID *uuid.UUID) ([]*changeorder.PendingView, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := `
SELECT ` + prefixColumns("co", changeOrderColumns) + `,
	COALESCE(u.display_name, '') AS requester_name,
	po.po_number,
	po.supplier_name
FROM change_orders co
JOIN purchase_orders po ON po.id = co.purchase_order_id
LEFT JOIN users u ON u.id = co.requested_by
WHERE co.status IN ('SUBMITTED','UNDER_REVIEW') AND co.deleted_at IS NULL`
	args := []any{}
	if purchaseOrderID != nil {
		query += ` AND co.purchase_order_id=$1`
		args = append(args, pgUUID(*purchaseOrderID))
	}
	query += ` ORDER BY co.requested_at DESC`

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*changeorder.PendingView
	for rows.Next() {
		view, err := scanPendingView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, rows.Err()
}

func (r *ChangeOrderRepository) ListByPurchaseOrders(ctx context.Context, purchaseOrderIDs []uuid.UUID) ([]*changeorder.ChangeOrder, error) {
	if len(purchaseOrderIDs) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+changeOrderColumns+`
FROM change_orders
WHERE purchase_order_id = ANY($1) AND deleted_at IS NULL
ORDER BY requested_at DESC`, uuidStrings(purchaseOrderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*changeorder.ChangeOrder
	for rows.Next() {
		co, err := scanChangeOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

type changeOrderScan struct {
	tenantID, id, poID pgtype.UUID
	voNo               pgtype.Text
	amountDelta        pgtype.Numeric
	newTotal           pgtype.Numeric
	requestedBy        pgtype.UUID
	approvedBy         pgtype.UUID
	requestedAt        pgtype.Timestamptz
	approvedAt         pgtype.Timestamptz
	milestoneIDs       []string
	boqItemIDs         []string
	itemDeltas         []byte
	instructionID      pgtype.UUID
	rejectionReason    pgtype.Text
	approvalNotes      pgtype.Text
	created, updated   pgtype.Timestamptz
	deleted            pgtype.Timestamptz
}

func (s *changeOrderScan) dest(co *changeorder.ChangeOrder) []any {
	return []any{
		&s.tenantID, &s.id, &s.poID, &co.ChangeNumber, &s.voNo,
		&co.Type, &co.Reason, &s.amountDelta, &s.newTotal, &co.Status,
		&s.requestedBy, &s.approvedBy, &s.requestedAt, &s.approvedAt,
		&co.ScheduleImpactDays, &s.milestoneIDs, &s.boqItemIDs,
		&s.itemDeltas, &s.instructionID, &s.rejectionReason, &s.approvalNotes,
		&s.created, &s.updated, &s.deleted,
	}
}

func (s *changeOrderScan) apply(co *changeorder.ChangeOrder) error {
	co.TenantID = asUUID(s.tenantID)
	co.ID = asUUID(s.id)
	co.PurchaseOrderID = asUUID(s.poID)
	co.VariationOrderNo = asNullableText(s.voNo)
	co.AmountDelta = asDecimal(s.amountDelta)
	co.NewTotalValue = asDecimal(s.newTotal)
	co.RequestedBy = asUUID(s.requestedBy)
	co.ApprovedBy = asNullableUUID(s.approvedBy)
	co.RequestedAt = asTime(s.requestedAt)
	co.ApprovedAt = asNullableTime(s.approvedAt)
	co.ClientInstructionID = asNullableUUID(s.instructionID)
	co.RejectionReason = asNullableText(s.rejectionReason)
	co.ApprovalNotes = asNullableText(s.approvalNotes)
	co.CreatedAt = asTime(s.created)
	co.UpdatedAt = asTime(s.updated)
	co.DeletedAt = asNullableTime(s.deleted)

	var err error
	if co.AffectedMilestones, err = parseUUIDStrings(s.milestoneIDs); err != nil {
		return err
	}
	if co.AffectedBOQItems, err = parseUUIDStrings(s.boqItemIDs); err != nil {
		return err
	}
	if len(s.itemDeltas) > 0 {
		if err := json.Unmarshal(s.itemDeltas, &co.ItemDeltas); err != nil {
			return err
		}
	}
	return nil
}

func scanChangeOrder(row pgx.Row) (*changeorder.ChangeOrder, error) {
	var co changeorder.ChangeOrder
	var s changeOrderScan
	if err := row.Scan(s.dest(&co)...); err != nil {
		return nil, err
	}
	if err := s.apply(&co); err != nil {
		return nil, err
	}
	return &co, nil
}

func scanPendingView(row pgx.Row) (*changeorder.PendingView, error) {
	var view changeorder.PendingView
	var s changeOrderScan
	dest := append(s.dest(&view.ChangeOrder), &view.RequesterName, &view.PONumber, &view.SupplierName)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := s.apply(&view.ChangeOrder); err != nil {
		return nil, err
	}
	return &view, nil
}
