package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/milestone"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type MilestoneRepository struct{}

func NewMilestoneRepository() milestone.Repository {
	return &MilestoneRepository{}
}

func (r *MilestoneRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*milestone.Milestone, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT tenant_id, id, project_id, purchase_order_id, title, expected_date, created_at, updated_at
FROM milestones
WHERE id = ANY($1)
ORDER BY expected_date NULLS LAST`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*milestone.Milestone
	for rows.Next() {
		var (
			m                    milestone.Milestone
			tenantID, id         pgtype.UUID
			projectID, poID      pgtype.UUID
			expected             pgtype.Timestamptz
			createdAt, updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&tenantID, &id, &projectID, &poID, &m.Title, &expected, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		m.TenantID = asUUID(tenantID)
		m.ID = asUUID(id)
		m.ProjectID = asUUID(projectID)
		m.PurchaseOrderID = asNullableUUID(poID)
		m.ExpectedDate = asNullableTime(expected)
		m.CreatedAt = asTime(createdAt)
		m.UpdatedAt = asTime(updatedAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *MilestoneRepository) ShiftExpectedDates(ctx context.Context, ids []uuid.UUID, days int) (int, error) {
	if len(ids) == 0 || days == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `
UPDATE milestones
SET expected_date = expected_date + make_interval(days => $2), updated_at = now()
WHERE id = ANY($1) AND expected_date IS NOT NULL`, uuidStrings(ids), days)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
