package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/InfradynAB/procure-sdk/pkg/serrors"
)

// Audit action names. Every state transition in this module records one.
const (
	ActionCOSubmitted              = "CO_SUBMITTED"
	ActionCOUnderReview            = "CO_UNDER_REVIEW"
	ActionCOApproved               = "CO_APPROVED"
	ActionCORejected               = "CO_REJECTED"
	ActionVariationOrderCreated    = "VARIATION_ORDER_CREATED"
	ActionDeScopeCreated           = "DE_SCOPE_CREATED"
	ActionQuantityDeliveredUpdated = "QUANTITY_DELIVERED_UPDATED"
	ActionQuantityInstalledUpdated = "QUANTITY_INSTALLED_UPDATED"
	ActionQuantityCertified        = "QUANTITY_CERTIFIED"
	ActionClientInstructionCreated = "CLIENT_INSTRUCTION_CREATED"
)

type AuditLogInsert struct {
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]any
	At         time.Time
}

func (a AuditLogInsert) Validate() error {
	if a.ActorID == uuid.Nil {
		return serrors.NewFieldRequiredError("actor_id", "audit entry")
	}
	if a.Action == "" {
		return serrors.NewFieldRequiredError("action", "audit entry")
	}
	if a.EntityType == "" {
		return serrors.NewFieldRequiredError("entity_type", "audit entry")
	}
	if a.EntityID == uuid.Nil {
		return serrors.NewFieldRequiredError("entity_id", "audit entry")
	}
	return nil
}

func (a AuditLogInsert) MarshalMetadata() (string, error) {
	if a.Metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AuditRecorder persists audit entries inside the caller's transaction.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditLogInsert) error
}
