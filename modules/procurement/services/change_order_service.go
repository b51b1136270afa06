package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/changeorder"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/events"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/instruction"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/ledger"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/milestone"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/project"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/purchaseorder"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
	"github.com/InfradynAB/procure-sdk/pkg/eventbus"
)

// ChangeOrderService owns the change-order state machine and the
// reconciliation that runs on approval. Every mutation is one transaction;
// monetary effects are applied exactly once, at approval, additively.
type ChangeOrderService struct {
	changeOrders   changeorder.Repository
	purchaseOrders purchaseorder.Repository
	boqItems       boqitem.Repository
	projects       project.Repository
	ledger         ledger.Repository
	milestones     milestone.Repository
	instructions   instruction.Repository
	audit          AuditRecorder
	publisher      eventbus.EventBus
	cache          *procurementCache
}

type ChangeOrderServiceDeps struct {
	ChangeOrders   changeorder.Repository
	PurchaseOrders purchaseorder.Repository
	BOQItems       boqitem.Repository
	Projects       project.Repository
	Ledger         ledger.Repository
	Milestones     milestone.Repository
	Instructions   instruction.Repository
	Audit          AuditRecorder
	Publisher      eventbus.EventBus
}

func NewChangeOrderService(deps ChangeOrderServiceDeps) *ChangeOrderService {
	return &ChangeOrderService{
		changeOrders:   deps.ChangeOrders,
		purchaseOrders: deps.PurchaseOrders,
		boqItems:       deps.BOQItems,
		projects:       deps.Projects,
		ledger:         deps.Ledger,
		milestones:     deps.Milestones,
		instructions:   deps.Instructions,
		audit:          deps.Audit,
		publisher:      deps.Publisher,
		cache:          newProcurementCache(),
	}
}

type SubmitChangeOrderInput struct {
	PurchaseOrderID      uuid.UUID
	Reason               string
	AmountDelta          decimal.Decimal
	ScheduleImpactDays   int
	AffectedMilestoneIDs []uuid.UUID
	ClientInstructionID  *uuid.UUID
}

// SubmitChangeOrder records a generic contract-value change in SUBMITTED
// state. The projected new total is computed at submission time and never
// recomputed retroactively.
func (s *ChangeOrderService) SubmitChangeOrder(ctx context.Context, in SubmitChangeOrderInput) (*changeorder.ChangeOrder, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	if in.PurchaseOrderID == uuid.Nil {
		return nil, errInvalidBody("purchase_order_id is required")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return nil, errInvalidBody("reason is required")
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		po, err := s.purchaseOrders.GetByIDForUpdate(txCtx, in.PurchaseOrderID)
		if err != nil {
			return nil, mapPgError(err)
		}

		co, err := s.insertChangeOrder(txCtx, po, insertChangeOrderParams{
			Type:                 changeorder.TypeGeneral,
			Reason:               in.Reason,
			AmountDelta:          in.AmountDelta,
			ScheduleImpactDays:   in.ScheduleImpactDays,
			AffectedMilestoneIDs: in.AffectedMilestoneIDs,
			ClientInstructionID:  in.ClientInstructionID,
			RequestedBy:          actorID,
		})
		if err != nil {
			return nil, err
		}

		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     ActionCOSubmitted,
			EntityType: "change_order",
			EntityID:   co.ID,
			Metadata: map[string]any{
				"change_number": co.ChangeNumber,
				"amount_delta":  co.AmountDelta.String(),
			},
			At: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return co, nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSubmit(ctx, created)
	return created, nil
}

type insertChangeOrderParams struct {
	Type                 string
	Reason               string
	AmountDelta          decimal.Decimal
	ScheduleImpactDays   int
	AffectedMilestoneIDs []uuid.UUID
	AffectedBOQItemIDs   []uuid.UUID
	ItemDeltas           []changeorder.ItemDelta
	ClientInstructionID  *uuid.UUID
	VariationOrderNo     *string
	RequestedBy          uuid.UUID
}

// insertChangeOrder allocates the next change number from the purchase-order
// row counter and persists the record in SUBMITTED state. Callers hold the
// purchase-order row lock.
func (s *ChangeOrderService) insertChangeOrder(txCtx context.Context, po *purchaseorder.PurchaseOrder, p insertChangeOrderParams) (*changeorder.ChangeOrder, error) {
	tenantID, err := composables.UseTenantID(txCtx)
	if err != nil {
		return nil, errInvalidBody("tenant is required")
	}

	seq, err := s.purchaseOrders.NextCOSequence(txCtx, po.ID)
	if err != nil {
		return nil, mapPgError(err)
	}

	now := time.Now().UTC()
	co := &changeorder.ChangeOrder{
		TenantID:            tenantID,
		PurchaseOrderID:     po.ID,
		ChangeNumber:        fmt.Sprintf("%s-CO%d", po.PONumber, seq),
		VariationOrderNo:    p.VariationOrderNo,
		Type:                p.Type,
		Reason:              p.Reason,
		AmountDelta:         p.AmountDelta,
		NewTotalValue:       po.TotalValue.Add(p.AmountDelta),
		Status:              changeorder.StatusSubmitted,
		RequestedBy:         p.RequestedBy,
		RequestedAt:         now,
		ScheduleImpactDays:  p.ScheduleImpactDays,
		AffectedMilestones:  p.AffectedMilestoneIDs,
		AffectedBOQItems:    p.AffectedBOQItemIDs,
		ItemDeltas:          p.ItemDeltas,
		ClientInstructionID: p.ClientInstructionID,
	}
	inserted, err := s.changeOrders.Insert(txCtx, co)
	if err != nil {
		return nil, mapPgError(err)
	}
	return inserted, nil
}

func (s *ChangeOrderService) afterSubmit(ctx context.Context, co *changeorder.ChangeOrder) {
	recordTransition(changeorder.StatusSubmitted)
	s.invalidateViews(co.TenantID, "submit")
	if s.publisher != nil {
		s.publisher.Publish(events.ChangeOrderSubmitted{
			TenantID:        co.TenantID,
			ChangeOrderID:   co.ID,
			PurchaseOrderID: co.PurchaseOrderID,
			ChangeNumber:    co.ChangeNumber,
			Type:            co.Type,
			AmountDelta:     co.AmountDelta,
			RequestedBy:     co.RequestedBy,
			OccurredAt:      time.Now().UTC(),
		})
	}
}

func (s *ChangeOrderService) invalidateViews(tenantID uuid.UUID, reason string) {
	s.cache.InvalidateTenant(tenantID)
	recordCacheInvalidate(reason)
}

// ReviewChangeOrder moves a pending order into UNDER_REVIEW.
func (s *ChangeOrderService) ReviewChangeOrder(ctx context.Context, changeOrderID uuid.UUID) (*changeorder.ChangeOrder, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}

	co, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		co, err := s.changeOrders.GetByIDForUpdate(txCtx, changeOrderID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if changeorder.IsTerminal(co.Status) {
			return nil, errInvalidState("PROC_INVALID_STATE", fmt.Sprintf("change order %s is %s", co.ChangeNumber, co.Status))
		}
		co.Status = changeorder.StatusUnderReview
		if err := s.changeOrders.Update(txCtx, co); err != nil {
			return nil, mapPgError(err)
		}
		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     ActionCOUnderReview,
			EntityType: "change_order",
			EntityID:   co.ID,
			Metadata:   map[string]any{"change_number": co.ChangeNumber},
			At:         time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return co, nil
	})
	if err != nil {
		return nil, err
	}

	recordTransition(changeorder.StatusUnderReview)
	s.invalidateViews(co.TenantID, "review")
	return co, nil
}

type ApproveChangeOrderInput struct {
	ChangeOrderID uuid.UUID
	Notes         *string
}

// ApproveChangeOrder performs the reconciliation: inside one transaction it
// applies the recorded item deltas to the BOQ rows (re-checking the certified
// floor under the row locks), adds the amount delta to the purchase order's
// total, appends the ledger entry, shifts affected milestones, and advances
// the linked client instruction. A second approval fails with an
// already-approved condition and leaves everything untouched.
func (s *ChangeOrderService) ApproveChangeOrder(ctx context.Context, in ApproveChangeOrderInput) (*changeorder.ChangeOrder, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}

	type approved struct {
		co       *changeorder.ChangeOrder
		newTotal decimal.Decimal
	}

	out, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (approved, error) {
		co, err := s.changeOrders.GetByIDForUpdate(txCtx, in.ChangeOrderID)
		if err != nil {
			return approved{}, mapPgError(err)
		}
		switch co.Status {
		case changeorder.StatusApproved:
			return approved{}, errInvalidState("PROC_ALREADY_APPROVED", fmt.Sprintf("change order %s is already approved", co.ChangeNumber))
		case changeorder.StatusRejected:
			return approved{}, errInvalidState("PROC_INVALID_STATE", fmt.Sprintf("change order %s was rejected", co.ChangeNumber))
		}

		if _, err := s.purchaseOrders.GetByIDForUpdate(txCtx, co.PurchaseOrderID); err != nil {
			return approved{}, mapPgError(err)
		}

		if err := s.applyItemDeltas(txCtx, co); err != nil {
			return approved{}, err
		}

		newTotal, err := s.purchaseOrders.AddToTotalValue(txCtx, co.PurchaseOrderID, co.AmountDelta)
		if err != nil {
			return approved{}, mapPgError(err)
		}

		if _, err := s.ledger.Insert(txCtx, &ledger.Entry{
			TenantID:        co.TenantID,
			PurchaseOrderID: co.PurchaseOrderID,
			ChangeOrderID:   co.ID,
			TransactionType: ledger.TransactionCOAdjustment,
			Amount:          co.AmountDelta,
			Status:          ledger.StatusCommitted,
			Note:            fmt.Sprintf("Contract adjustment for %s", co.ChangeNumber),
		}); err != nil {
			return approved{}, mapPgError(err)
		}

		if co.ScheduleImpactDays != 0 && len(co.AffectedMilestones) > 0 {
			if _, err := s.milestones.ShiftExpectedDates(txCtx, co.AffectedMilestones, co.ScheduleImpactDays); err != nil {
				return approved{}, mapPgError(err)
			}
		}

		if co.ClientInstructionID != nil {
			if err := s.instructions.UpdateStatus(txCtx, *co.ClientInstructionID, instruction.StatusApproved); err != nil {
				return approved{}, mapPgError(err)
			}
		}

		now := time.Now().UTC()
		co.Status = changeorder.StatusApproved
		co.ApprovedBy = &actorID
		co.ApprovedAt = &now
		co.ApprovalNotes = in.Notes
		if err := s.changeOrders.Update(txCtx, co); err != nil {
			return approved{}, mapPgError(err)
		}

		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     ActionCOApproved,
			EntityType: "change_order",
			EntityID:   co.ID,
			Metadata: map[string]any{
				"change_number": co.ChangeNumber,
				"amount_delta":  co.AmountDelta.String(),
				"new_total":     newTotal.String(),
			},
			At: now,
		}); err != nil {
			return approved{}, err
		}
		return approved{co: co, newTotal: newTotal}, nil
	})
	if err != nil {
		return nil, err
	}

	recordTransition(changeorder.StatusApproved)
	s.invalidateViews(out.co.TenantID, "approve")
	if s.publisher != nil {
		s.publisher.Publish(events.ChangeOrderApproved{
			TenantID:        out.co.TenantID,
			ChangeOrderID:   out.co.ID,
			PurchaseOrderID: out.co.PurchaseOrderID,
			ChangeNumber:    out.co.ChangeNumber,
			AmountDelta:     out.co.AmountDelta,
			NewTotalValue:   out.newTotal,
			ApprovedBy:      actorID,
			OccurredAt:      time.Now().UTC(),
		})
	}
	return out.co, nil
}

// applyItemDeltas replays the change order's recorded per-item effects onto
// the locked BOQ rows: quantity reductions for omissions, unit-price updates
// for amendments. The de-scope floor is re-validated here because certified
// progress may have advanced since submission.
func (s *ChangeOrderService) applyItemDeltas(txCtx context.Context, co *changeorder.ChangeOrder) error {
	for _, delta := range co.ItemDeltas {
		item, err := s.boqItems.GetByIDForUpdate(txCtx, delta.BOQItemID)
		if err != nil {
			return mapPgError(err)
		}

		if delta.AdditionalQuantity.IsPositive() {
			if item.OriginalQuantity == nil {
				original := item.Quantity
				item.OriginalQuantity = &original
			}
			revised := item.Quantity.Add(delta.AdditionalQuantity)
			item.RevisedQuantity = &revised
			item.Quantity = revised
			item.TotalPrice = revised.Mul(item.UnitPrice)
		}

		if delta.ReductionQuantity.IsPositive() {
			contracted := item.ContractedQuantity()
			revised := contracted.Sub(delta.ReductionQuantity)
			if revised.LessThan(item.QuantityCertified) {
				return errInvalidState(
					"PROC_DESCOPE_BELOW_CERTIFIED",
					fmt.Sprintf("cannot reduce item %s below certified amount (%s)", item.ItemNumber, item.QuantityCertified),
				)
			}
			if item.OriginalQuantity == nil {
				original := item.Quantity
				item.OriginalQuantity = &original
			}
			item.RevisedQuantity = &revised
			item.Quantity = revised
			item.TotalPrice = revised.Mul(item.UnitPrice)
		}

		if delta.NewUnitPrice != nil {
			item.UnitPrice = *delta.NewUnitPrice
			item.TotalPrice = item.Quantity.Mul(*delta.NewUnitPrice)
		}

		if err := s.boqItems.Update(txCtx, item); err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

type RejectChangeOrderInput struct {
	ChangeOrderID   uuid.UUID
	RejectionReason string
}

// RejectChangeOrder records the rejection. Nothing is reversed because no
// balance effect exists before approval.
func (s *ChangeOrderService) RejectChangeOrder(ctx context.Context, in RejectChangeOrderInput) (*changeorder.ChangeOrder, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	in.RejectionReason = strings.TrimSpace(in.RejectionReason)
	if in.RejectionReason == "" {
		return nil, errInvalidBody("rejection_reason is required")
	}

	co, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		co, err := s.changeOrders.GetByIDForUpdate(txCtx, in.ChangeOrderID)
		if err != nil {
			return nil, mapPgError(err)
		}
		switch co.Status {
		case changeorder.StatusApproved:
			return nil, errInvalidState("PROC_ALREADY_APPROVED", fmt.Sprintf("change order %s is already approved", co.ChangeNumber))
		case changeorder.StatusRejected:
			return nil, errInvalidState("PROC_INVALID_STATE", fmt.Sprintf("change order %s is already rejected", co.ChangeNumber))
		}

		co.Status = changeorder.StatusRejected
		co.RejectionReason = &in.RejectionReason
		if err := s.changeOrders.Update(txCtx, co); err != nil {
			return nil, mapPgError(err)
		}

		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     ActionCORejected,
			EntityType: "change_order",
			EntityID:   co.ID,
			Metadata: map[string]any{
				"change_number": co.ChangeNumber,
				"reason":        in.RejectionReason,
			},
			At: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return co, nil
	})
	if err != nil {
		return nil, err
	}

	recordTransition(changeorder.StatusRejected)
	s.invalidateViews(co.TenantID, "reject")
	if s.publisher != nil {
		s.publisher.Publish(events.ChangeOrderRejected{
			TenantID:        co.TenantID,
			ChangeOrderID:   co.ID,
			PurchaseOrderID: co.PurchaseOrderID,
			ChangeNumber:    co.ChangeNumber,
			RejectedBy:      actorID,
			Reason:          in.RejectionReason,
			OccurredAt:      time.Now().UTC(),
		})
	}
	return co, nil
}

// GetPendingChangeOrders returns SUBMITTED and UNDER_REVIEW orders, newest
// first, joined with requester and purchase-order context.
func (s *ChangeOrderService) GetPendingChangeOrders(ctx context.Context, purchaseOrderID *uuid.UUID) ([]*changeorder.PendingView, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errInvalidBody("tenant is required")
	}

	key := pendingCacheKey(tenantID, purchaseOrderID)
	if cached, ok := s.cache.Get(key); ok {
		recordCacheRequest("pending", true)
		return cached.([]*changeorder.PendingView), nil
	}
	recordCacheRequest("pending", false)

	rows, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]*changeorder.PendingView, error) {
		rows, err := s.changeOrders.ListPending(txCtx, purchaseOrderID)
		if err != nil {
			return nil, mapPgError(err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(tenantID, key, rows)
	return rows, nil
}

// COImpactSummary aggregates change-order impact over a project or a single
// purchase order.
type COImpactSummary struct {
	TotalCOs            int             `json:"total_cos"`
	ApprovedCOs         int             `json:"approved_cos"`
	PendingCOs          int             `json:"pending_cos"`
	TotalCostImpact     decimal.Decimal `json:"total_cost_impact"`
	TotalScheduleImpact int             `json:"total_schedule_impact"`
	AffectedMilestones  int             `json:"affected_milestones"`
}

func (s *ChangeOrderService) GetCOImpactSummary(ctx context.Context, projectID, purchaseOrderID *uuid.UUID) (*COImpactSummary, error) {
	if projectID == nil && purchaseOrderID == nil {
		return nil, errInvalidBody("project_id or purchase_order_id is required")
	}

	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*COImpactSummary, error) {
		var poIDs []uuid.UUID
		if purchaseOrderID != nil {
			poIDs = []uuid.UUID{*purchaseOrderID}
		} else {
			pos, err := s.purchaseOrders.ListByProject(txCtx, *projectID)
			if err != nil {
				return nil, mapPgError(err)
			}
			for _, po := range pos {
				poIDs = append(poIDs, po.ID)
			}
		}

		cos, err := s.changeOrders.ListByPurchaseOrders(txCtx, poIDs)
		if err != nil {
			return nil, mapPgError(err)
		}

		summary := &COImpactSummary{TotalCostImpact: decimal.Zero}
		milestones := make(map[uuid.UUID]struct{})
		for _, co := range cos {
			summary.TotalCOs++
			switch co.Status {
			case changeorder.StatusApproved:
				summary.ApprovedCOs++
				summary.TotalCostImpact = summary.TotalCostImpact.Add(co.AmountDelta)
				summary.TotalScheduleImpact += co.ScheduleImpactDays
				for _, id := range co.AffectedMilestones {
					milestones[id] = struct{}{}
				}
			case changeorder.StatusSubmitted, changeorder.StatusUnderReview:
				summary.PendingCOs++
			}
		}
		summary.AffectedMilestones = len(milestones)
		return summary, nil
	})
}
