package project

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Project owns the variation-order counter so VO numbers are generated
// atomically per project.
type Project struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	VOSequence     int       `json:"vo_sequence"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	NextVOSequence(ctx context.Context, id uuid.UUID) (int, error)
}
