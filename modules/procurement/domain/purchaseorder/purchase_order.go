package purchaseorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder carries the fields the change-order engine consumes. The
// total value is mutated only by approved change orders; COSequence is the
// row-owned counter behind change-number generation.
type PurchaseOrder struct {
	TenantID       uuid.UUID       `json:"tenant_id"`
	ID             uuid.UUID       `json:"id"`
	ProjectID      uuid.UUID       `json:"project_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	PONumber       string          `json:"po_number"`
	SupplierName   string          `json:"supplier_name"`
	TotalValue     decimal.Decimal `json:"total_value"`
	COSequence     int             `json:"co_sequence"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
