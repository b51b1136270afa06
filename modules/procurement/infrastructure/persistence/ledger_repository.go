package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/ledger"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type LedgerRepository struct{}

func NewLedgerRepository() ledger.Repository {
	return &LedgerRepository{}
}

const ledgerColumns = `
	tenant_id, id, purchase_order_id, change_order_id, transaction_type,
	amount, status, note, created_at`

func (r *LedgerRepository) Insert(ctx context.Context, entry *ledger.Entry) (*ledger.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
INSERT INTO financial_ledger (
	tenant_id, purchase_order_id, change_order_id, transaction_type,
	amount, status, note
)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+ledgerColumns,
		pgUUID(entry.TenantID),
		pgUUID(entry.PurchaseOrderID),
		pgUUID(entry.ChangeOrderID),
		entry.TransactionType,
		pgNumeric(entry.Amount),
		entry.Status,
		entry.Note,
	)
	return scanLedgerEntry(row)
}

func (r *LedgerRepository) ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*ledger.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+ledgerColumns+`
FROM financial_ledger
WHERE purchase_order_id=$1
ORDER BY created_at`, pgUUID(purchaseOrderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanLedgerEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		entry        ledger.Entry
		tenantID, id pgtype.UUID
		poID, coID   pgtype.UUID
		amount       pgtype.Numeric
		createdAt    pgtype.Timestamptz
	)
	if err := row.Scan(
		&tenantID, &id, &poID, &coID, &entry.TransactionType,
		&amount, &entry.Status, &entry.Note, &createdAt,
	); err != nil {
		return nil, err
	}
	entry.TenantID = asUUID(tenantID)
	entry.ID = asUUID(id)
	entry.PurchaseOrderID = asUUID(poID)
	entry.ChangeOrderID = asUUID(coID)
	entry.Amount = asDecimal(amount)
	entry.CreatedAt = asTime(createdAt)
	return &entry, nil
}
