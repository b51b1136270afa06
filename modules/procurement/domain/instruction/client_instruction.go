package instruction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPendingEstimate = "PENDING_ESTIMATE"
	StatusApproved        = "APPROVED"
)

const (
	KindSiteInstruction      = "SITE_INSTRUCTION"
	KindArchitectInstruction = "ARCHITECT_INSTRUCTION"
	KindEmailVariation       = "EMAIL_VARIATION"
)

// ClientInstruction is the authorization record behind a change order. The
// attachment reference is mandatory for legal traceability; status advances to
// APPROVED when a linked change order is approved.
type ClientInstruction struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"project_id"`
	Reference     string    `json:"reference"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	AttachmentRef string    `json:"attachment_ref"`
	Status        string    `json:"status"`
	CreatedBy     uuid.UUID `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Repository interface {
	Insert(ctx context.Context, ci *ClientInstruction) (*ClientInstruction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ClientInstruction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
