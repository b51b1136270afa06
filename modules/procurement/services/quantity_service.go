package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/events"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
	"github.com/InfradynAB/procure-sdk/pkg/eventbus"
)

// QuantityService tracks execution progress on BOQ items through the
// delivered -> installed -> certified pipeline. Each stage is bounded above
// by the previous one and below by the next; a rejected update leaves the row
// untouched.
type QuantityService struct {
	boqItems  boqitem.Repository
	audit     AuditRecorder
	publisher eventbus.EventBus
}

func NewQuantityService(items boqitem.Repository, audit AuditRecorder, publisher eventbus.EventBus) *QuantityService {
	return &QuantityService{boqItems: items, audit: audit, publisher: publisher}
}

type QuantityUpdateInput struct {
	BOQItemID uuid.UUID
	Quantity  decimal.Decimal
}

func (s *QuantityService) UpdateQuantityDelivered(ctx context.Context, in QuantityUpdateInput) (*boqitem.BOQItem, error) {
	return s.updateStage(ctx, in, stageDelivered)
}

func (s *QuantityService) UpdateQuantityInstalled(ctx context.Context, in QuantityUpdateInput) (*boqitem.BOQItem, error) {
	return s.updateStage(ctx, in, stageInstalled)
}

// CertifyQuantity records client-certified progress. Certified work is the
// payment baseline, so certifying any amount locks the item against de-scopes
// below that amount.
func (s *QuantityService) CertifyQuantity(ctx context.Context, in QuantityUpdateInput) (*boqitem.BOQItem, error) {
	return s.updateStage(ctx, in, stageCertified)
}

const (
	stageDelivered = "delivered"
	stageInstalled = "installed"
	stageCertified = "certified"
)

func (s *QuantityService) updateStage(ctx context.Context, in QuantityUpdateInput, stage string) (*boqitem.BOQItem, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	if in.BOQItemID == uuid.Nil {
		return nil, errInvalidBody("boq_item_id is required")
	}
	if in.Quantity.IsNegative() {
		return nil, errInvalidBody("quantity cannot be negative")
	}

	updated, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*boqitem.BOQItem, error) {
		item, err := s.boqItems.GetByIDForUpdate(txCtx, in.BOQItemID)
		if err != nil {
			return nil, mapPgError(err)
		}

		var action string
		switch stage {
		case stageDelivered:
			if in.Quantity.GreaterThan(item.Quantity) {
				return nil, errInvalidState("PROC_INVALID_STATE",
					fmt.Sprintf("delivered quantity %s exceeds contracted quantity %s for item %s", in.Quantity, item.Quantity, item.ItemNumber))
			}
			if in.Quantity.LessThan(item.QuantityInstalled) {
				return nil, errInvalidState("PROC_INVALID_STATE",
					fmt.Sprintf("delivered quantity %s is below installed quantity %s for item %s", in.Quantity, item.QuantityInstalled, item.ItemNumber))
			}
			item.QuantityDelivered = in.Quantity
			action = ActionQuantityDeliveredUpdated
		case stageInstalled:
			if in.Quantity.GreaterThan(item.QuantityDelivered) {
				return nil, errInvalidState("PROC_INVALID_STATE",
					fmt.Sprintf("installed quantity %s exceeds delivered quantity %s for item %s", in.Quantity, item.QuantityDelivered, item.ItemNumber))
			}
			if in.Quantity.LessThan(item.QuantityCertified) {
				return nil, errInvalidState("PROC_INVALID_STATE",
					fmt.Sprintf("installed quantity %s is below certified quantity %s for item %s", in.Quantity, item.QuantityCertified, item.ItemNumber))
			}
			item.QuantityInstalled = in.Quantity
			action = ActionQuantityInstalledUpdated
		case stageCertified:
			if in.Quantity.GreaterThan(item.QuantityInstalled) {
				return nil, errInvalidState("PROC_INVALID_STATE",
					fmt.Sprintf("certified quantity %s exceeds installed quantity %s for item %s", in.Quantity, item.QuantityInstalled, item.ItemNumber))
			}
			item.QuantityCertified = in.Quantity
			item.LockedForDeScope = in.Quantity.IsPositive()
			action = ActionQuantityCertified
		}

		if err := s.boqItems.Update(txCtx, item); err != nil {
			return nil, mapPgError(err)
		}

		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     action,
			EntityType: "boq_item",
			EntityID:   item.ID,
			Metadata: map[string]any{
				"item_number": item.ItemNumber,
				"quantity":    in.Quantity.String(),
			},
			At: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return item, nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.Publish(events.QuantityProgressUpdated{
			TenantID:        updated.TenantID,
			BOQItemID:       updated.ID,
			PurchaseOrderID: updated.PurchaseOrderID,
			Stage:           stage,
			Quantity:        in.Quantity,
			OccurredAt:      time.Now().UTC(),
		})
	}
	return updated, nil
}
