package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/project"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type ProjectRepository struct{}

func NewProjectRepository() project.Repository {
	return &ProjectRepository{}
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var (
		p                    project.Project
		tenantID, rowID      pgtype.UUID
		orgID                pgtype.UUID
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := tx.QueryRow(ctx, `
SELECT tenant_id, id, organization_id, name, vo_sequence, created_at, updated_at
FROM projects
WHERE id=$1`, pgUUID(id)).Scan(
		&tenantID, &rowID, &orgID, &p.Name, &p.VOSequence, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	p.TenantID = asUUID(tenantID)
	p.ID = asUUID(rowID)
	p.OrganizationID = asUUID(orgID)
	p.CreatedAt = asTime(createdAt)
	p.UpdatedAt = asTime(updatedAt)
	return &p, nil
}

// NextVOSequence bumps the project's variation-order counter under the row's
// write lock implied by the UPDATE.
func (r *ProjectRepository) NextVOSequence(ctx context.Context, id uuid.UUID) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var seq int
	if err := tx.QueryRow(ctx, `
UPDATE projects
SET vo_sequence = vo_sequence + 1, updated_at = now()
WHERE id=$1
RETURNING vo_sequence`, pgUUID(id)).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
