package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/instruction"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type InstructionRepository struct{}

func NewInstructionRepository() instruction.Repository {
	return &InstructionRepository{}
}

const instructionColumns = `
	tenant_id, id, project_id, reference, kind, title, attachment_ref,
	status, created_by, created_at, updated_at`

func (r *InstructionRepository) Insert(ctx context.Context, ci *instruction.ClientInstruction) (*instruction.ClientInstruction, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
INSERT INTO client_instructions (
	tenant_id, project_id, reference, kind, title, attachment_ref, status, created_by
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+instructionColumns,
		pgUUID(ci.TenantID),
		pgUUID(ci.ProjectID),
		ci.Reference,
		ci.Kind,
		ci.Title,
		ci.AttachmentRef,
		ci.Status,
		pgUUID(ci.CreatedBy),
	)
	return scanInstruction(row)
}

func (r *InstructionRepository) GetByID(ctx context.Context, id uuid.UUID) (*instruction.ClientInstruction, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, `
SELECT `+instructionColumns+`
FROM client_instructions
WHERE id=$1`, pgUUID(id))
	return scanInstruction(row)
}

func (r *InstructionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE client_instructions
SET status=$2, updated_at=now()
WHERE id=$1`, pgUUID(id), status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanInstruction(row pgx.Row) (*instruction.ClientInstruction, error) {
	var (
		ci                   instruction.ClientInstruction
		tenantID, id         pgtype.UUID
		projectID, createdBy pgtype.UUID
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&tenantID, &id, &projectID, &ci.Reference, &ci.Kind, &ci.Title,
		&ci.AttachmentRef, &ci.Status, &createdBy, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	ci.TenantID = asUUID(tenantID)
	ci.ID = asUUID(id)
	ci.ProjectID = asUUID(projectID)
	ci.CreatedBy = asUUID(createdBy)
	ci.CreatedAt = asTime(createdAt)
	ci.UpdatedAt = asTime(updatedAt)
	return &ci, nil
}
