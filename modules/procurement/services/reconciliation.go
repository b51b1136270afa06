package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/InfradynAB/procure-sdk/modules/procurement/changeset"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/changeorder"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type VariationOrderInput struct {
	Request             changeset.AdditionRequest
	Reason              string
	ClientInstructionID *uuid.UUID
}

// CreateVariationOrder registers additional scope: brand new BOQ lines are
// inserted right away, tagged with a variation-order number drawn from the
// project's counter; quantity increases on existing lines are recorded as
// item deltas and applied at approval. The purchase order's total is not
// touched until the resulting ADDITION change order is approved.
func (s *ChangeOrderService) CreateVariationOrder(ctx context.Context, in VariationOrderInput) (*changeorder.ChangeOrder, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	if in.Request.PurchaseOrderID == uuid.Nil {
		return nil, errInvalidBody("purchase_order_id is required")
	}
	if len(in.Request.Items) == 0 {
		return nil, errInvalidBody("at least one item is required")
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		tenantID, err := composables.UseTenantID(txCtx)
		if err != nil {
			return nil, errInvalidBody("tenant is required")
		}

		po, err := s.purchaseOrders.GetByIDForUpdate(txCtx, in.Request.PurchaseOrderID)
		if err != nil {
			return nil, mapPgError(err)
		}

		voSeq, err := s.projects.NextVOSequence(txCtx, po.ProjectID)
		if err != nil {
			return nil, mapPgError(err)
		}
		voNo := fmt.Sprintf("VO-%03d", voSeq)

		amountDelta := decimal.Zero
		var deltas []changeorder.ItemDelta
		var affected []uuid.UUID

		for i, item := range in.Request.Items {
			if item.BOQItemID != nil {
				if !item.AdditionalQuantity.IsPositive() {
					return nil, errInvalidBody(fmt.Sprintf("items[%d]: additional_quantity must be positive", i))
				}
				existing, err := s.boqItems.GetByIDForUpdate(txCtx, *item.BOQItemID)
				if err != nil {
					return nil, mapPgError(err)
				}
				amountDelta = amountDelta.Add(item.AdditionalQuantity.Mul(existing.UnitPrice))
				deltas = append(deltas, changeorder.ItemDelta{
					BOQItemID:          existing.ID,
					AdditionalQuantity: item.AdditionalQuantity,
				})
				affected = append(affected, existing.ID)
				continue
			}

			if item.ItemNumber == "" {
				return nil, errInvalidBody(fmt.Sprintf("items[%d]: item_number is required for new items", i))
			}
			if !item.Quantity.IsPositive() || !item.UnitPrice.IsPositive() {
				return nil, errInvalidBody(fmt.Sprintf("items[%d]: quantity and unit_price must be positive", i))
			}
			inserted, err := s.boqItems.Insert(txCtx, &boqitem.BOQItem{
				TenantID:            tenantID,
				PurchaseOrderID:     po.ID,
				ItemNumber:          item.ItemNumber,
				Description:         item.Description,
				Unit:                item.Unit,
				Quantity:            item.Quantity,
				UnitPrice:           item.UnitPrice,
				TotalPrice:          item.Quantity.Mul(item.UnitPrice),
				IsVariation:         true,
				VariationOrderNo:    &voNo,
				ClientInstructionID: in.ClientInstructionID,
			})
			if err != nil {
				return nil, mapPgError(err)
			}
			amountDelta = amountDelta.Add(inserted.TotalPrice)
			affected = append(affected, inserted.ID)
		}

		reason := in.Reason
		if reason == "" {
			reason = fmt.Sprintf("Variation order %s", voNo)
		}
		co, err := s.insertChangeOrder(txCtx, po, insertChangeOrderParams{
			Type:                changeorder.TypeAddition,
			Reason:              reason,
			AmountDelta:         amountDelta,
			AffectedBOQItemIDs:  affected,
			ItemDeltas:          deltas,
			ClientInstructionID: in.ClientInstructionID,
			VariationOrderNo:    &voNo,
			RequestedBy:         actorID,
		})
		if err != nil {
			return nil, err
		}

		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     ActionVariationOrderCreated,
			EntityType: "change_order",
			EntityID:   co.ID,
			Metadata: map[string]any{
				"variation_order_number": voNo,
				"change_number":          co.ChangeNumber,
				"item_count":             len(in.Request.Items),
				"amount_delta":           amountDelta.String(),
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

type DeScopeInput struct {
	Request             changeset.OmissionRequest
	Reason              string
	ClientInstructionID *uuid.UUID
}

// CreateDeScope registers scope reductions as an OMISSION change order. The
// whole batch is validated under item row locks before anything is recorded:
// if any reduction would take an item below its certified quantity the call
// fails and no order is created. The reductions themselves are applied to the
// BOQ rows at approval, where the floor is checked again.
func (s *ChangeOrderService) CreateDeScope(ctx context.Context, in DeScopeInput) (*changeorder.ChangeOrder, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	if in.Request.PurchaseOrderID == uuid.Nil {
		return nil, errInvalidBody("purchase_order_id is required")
	}
	if len(in.Request.Items) == 0 {
		return nil, errInvalidBody("at least one item is required")
	}
	for i, item := range in.Request.Items {
		if !item.ReductionQuantity.IsPositive() {
			return nil, errInvalidBody(fmt.Sprintf("items[%d]: reduction_quantity must be positive", i))
		}
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		po, err := s.purchaseOrders.GetByIDForUpdate(txCtx, in.Request.PurchaseOrderID)
		if err != nil {
			return nil, mapPgError(err)
		}

		itemIDs := make([]uuid.UUID, 0, len(in.Request.Items))
		for _, item := range in.Request.Items {
			itemIDs = append(itemIDs, item.BOQItemID)
		}
		locked, err := s.boqItems.GetByIDsForUpdate(txCtx, itemIDs)
		if err != nil {
			return nil, mapPgError(err)
		}
		byID := make(map[uuid.UUID]*boqitem.BOQItem, len(locked))
		for _, item := range locked {
			byID[item.ID] = item
		}

		amountDelta := decimal.Zero
		deltas := make([]changeorder.ItemDelta, 0, len(in.Request.Items))
		affected := make([]uuid.UUID, 0, len(in.Request.Items))
		for _, req := range in.Request.Items {
			item, ok := byID[req.BOQItemID]
			if !ok {
				return nil, errNotFound(fmt.Sprintf("boq item %s", req.BOQItemID))
			}
			revised := item.ContractedQuantity().Sub(req.ReductionQuantity)
			if revised.LessThan(item.QuantityCertified) {
				return nil, errInvalidState(
					"PROC_DESCOPE_BELOW_CERTIFIED",
					fmt.Sprintf("cannot reduce item %s below certified amount (%s)", item.ItemNumber, item.QuantityCertified),
				)
			}
			amountDelta = amountDelta.Sub(req.ReductionQuantity.Mul(item.UnitPrice))
			deltas = append(deltas, changeorder.ItemDelta{
				BOQItemID:         item.ID,
				ReductionQuantity: req.ReductionQuantity,
			})
			affected = append(affected, item.ID)
		}

		reason := in.Reason
		if reason == "" {
			reason = fmt.Sprintf("De-scope of %d item(s)", len(deltas))
		}
		co, err := s.insertChangeOrder(txCtx, po, insertChangeOrderParams{
			Type:                changeorder.TypeOmission,
			Reason:              reason,
			AmountDelta:         amountDelta,
			AffectedBOQItemIDs:  affected,
			ItemDeltas:          deltas,
			ClientInstructionID: in.ClientInstructionID,
			RequestedBy:         actorID,
		})
		if err != nil {
			return nil, err
		}

		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     ActionDeScopeCreated,
			EntityType: "change_order",
			EntityID:   co.ID,
			Metadata: map[string]any{
				"change_number": co.ChangeNumber,
				"item_count":    len(deltas),
				"amount_delta":  amountDelta.String(),
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

type PriceAmendmentInput struct {
	Request             changeset.AmendmentRequest
	Reason              string
	ClientInstructionID *uuid.UUID
}

// CreatePriceAmendment registers unit-price changes on existing items. The
// monetary delta is computed from the server's own records, not from client
// figures; prices change on the BOQ rows only at approval.
func (s *ChangeOrderService) CreatePriceAmendment(ctx context.Context, in PriceAmendmentInput) (*changeorder.ChangeOrder, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	if in.Request.PurchaseOrderID == uuid.Nil {
		return nil, errInvalidBody("purchase_order_id is required")
	}
	if len(in.Request.Items) == 0 {
		return nil, errInvalidBody("at least one item is required")
	}
	for i, item := range in.Request.Items {
		if !item.NewUnitPrice.IsPositive() {
			return nil, errInvalidBody(fmt.Sprintf("items[%d]: new_unit_price must be positive", i))
		}
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*changeorder.ChangeOrder, error) {
		po, err := s.purchaseOrders.GetByIDForUpdate(txCtx, in.Request.PurchaseOrderID)
		if err != nil {
			return nil, mapPgError(err)
		}

		amountDelta := decimal.Zero
		deltas := make([]changeorder.ItemDelta, 0, len(in.Request.Items))
		affected := make([]uuid.UUID, 0, len(in.Request.Items))
		for _, req := range in.Request.Items {
			item, err := s.boqItems.GetByIDForUpdate(txCtx, req.BOQItemID)
			if err != nil {
				return nil, mapPgError(err)
			}
			price := req.NewUnitPrice
			amountDelta = amountDelta.Add(price.Sub(item.UnitPrice).Mul(item.Quantity))
			deltas = append(deltas, changeorder.ItemDelta{
				BOQItemID:    item.ID,
				NewUnitPrice: &price,
			})
			affected = append(affected, item.ID)
		}

		reason := in.Reason
		if reason == "" {
			reason = fmt.Sprintf("Price amendment of %d item(s)", len(deltas))
		}
		co, err := s.insertChangeOrder(txCtx, po, insertChangeOrderParams{
			Type:                changeorder.TypeGeneral,
			Reason:              reason,
			AmountDelta:         amountDelta,
			AffectedBOQItemIDs:  affected,
			ItemDeltas:          deltas,
			ClientInstructionID: in.ClientInstructionID,
			RequestedBy:         actorID,
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
				"item_count":    len(deltas),
				"amount_delta":  amountDelta.String(),
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
