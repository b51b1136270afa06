package changeorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lifecycle: SUBMITTED -> UNDER_REVIEW -> {APPROVED | REJECTED}. The review
// step may be skipped. Terminal states are sticky; a second approval attempt
// is rejected with an already-approved condition.
const (
	StatusSubmitted   = "SUBMITTED"
	StatusUnderReview = "UNDER_REVIEW"
	StatusApproved    = "APPROVED"
	StatusRejected    = "REJECTED"
)

const (
	TypeAddition = "ADDITION"
	TypeOmission = "OMISSION"
	TypeGeneral  = "GENERAL"
)

func IsTerminal(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// ItemDelta is one recorded per-item effect of a change order. Deltas are
// captured at creation and applied to the BOQ rows only inside the approval
// transaction.
type ItemDelta struct {
	BOQItemID          uuid.UUID        `json:"boq_item_id"`
	AdditionalQuantity decimal.Decimal  `json:"additional_quantity"`
	ReductionQuantity  decimal.Decimal  `json:"reduction_quantity"`
	NewUnitPrice       *decimal.Decimal `json:"new_unit_price,omitempty"`
}

// ChangeOrder records a proposed modification to a purchase order's contract
// value or scope. The monetary effect is applied exactly once, at approval.
type ChangeOrder struct {
	TenantID            uuid.UUID       `json:"tenant_id"`
	ID                  uuid.UUID       `json:"id"`
	PurchaseOrderID     uuid.UUID       `json:"purchase_order_id"`
	ChangeNumber        string          `json:"change_number"`
	VariationOrderNo    *string         `json:"variation_order_number,omitempty"`
	Type                string          `json:"change_order_type"`
	Reason              string          `json:"reason"`
	AmountDelta         decimal.Decimal `json:"amount_delta"`
	NewTotalValue       decimal.Decimal `json:"new_total_value"`
	Status              string          `json:"status"`
	RequestedBy         uuid.UUID       `json:"requested_by"`
	ApprovedBy          *uuid.UUID      `json:"approved_by,omitempty"`
	RequestedAt         time.Time       `json:"requested_at"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty"`
	ScheduleImpactDays  int             `json:"schedule_impact_days"`
	AffectedMilestones  []uuid.UUID     `json:"affected_milestone_ids"`
	AffectedBOQItems    []uuid.UUID     `json:"affected_boq_item_ids"`
	ItemDeltas          []ItemDelta     `json:"item_deltas,omitempty"`
	ClientInstructionID *uuid.UUID      `json:"client_instruction_id,omitempty"`
	RejectionReason     *string         `json:"rejection_reason,omitempty"`
	ApprovalNotes       *string         `json:"approval_notes,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	DeletedAt           *time.Time      `json:"deleted_at,omitempty"`
}

// PendingView is a pending change order joined with requester and purchase
// order context for review queues.
type PendingView struct {
	ChangeOrder
	RequesterName string `json:"requester_name"`
	PONumber      string `json:"po_number"`
	SupplierName  string `json:"supplier_name"`
}
