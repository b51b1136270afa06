package milestone

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Milestone is consumed, not owned, by the change-order engine: only the
// expected date is shifted when an approved change order names the milestone.
type Milestone struct {
	TenantID        uuid.UUID  `json:"tenant_id"`
	ID              uuid.UUID  `json:"id"`
	ProjectID       uuid.UUID  `json:"project_id"`
	PurchaseOrderID *uuid.UUID `json:"purchase_order_id,omitempty"`
	Title           string     `json:"title"`
	ExpectedDate    *time.Time `json:"expected_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Repository interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Milestone, error)
	// ShiftExpectedDates moves the expected date of every listed milestone by
	// the signed number of calendar days. Milestones without an expected date
	// are left untouched. Returns the number of shifted rows.
	ShiftExpectedDates(ctx context.Context, ids []uuid.UUID, days int) (int, error)
}
