package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/changeorder"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

// NetContractSummary reconstructs a project's contract position from the
// approved change-order history. Balance effects are applied once at
// approval, so the reconstruction is arithmetic over approved deltas and
// never drifts from the stored purchase-order totals.
type NetContractSummary struct {
	ProjectID        uuid.UUID           `json:"project_id"`
	OriginalContract decimal.Decimal     `json:"original_contract"`
	Additions        decimal.Decimal     `json:"additions"`
	Omissions        decimal.Decimal     `json:"omissions"`
	CurrentTotal     decimal.Decimal     `json:"current_total"`
	AdditionDetails  []AdditionDetailRow `json:"addition_details"`
}

type AdditionDetailRow struct {
	VariationOrderNo string          `json:"variation_order_number"`
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"`
	Status           string          `json:"status"`
}

func (s *ChangeOrderService) GetNetContractSummary(ctx context.Context, projectID uuid.UUID) (*NetContractSummary, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errInvalidBody("tenant is required")
	}
	if projectID == uuid.Nil {
		return nil, errInvalidBody("project_id is required")
	}

	key := summaryCacheKey(tenantID, projectID)
	if cached, ok := s.cache.Get(key); ok {
		recordCacheRequest("summary", true)
		return cached.(*NetContractSummary), nil
	}
	recordCacheRequest("summary", false)

	summary, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*NetContractSummary, error) {
		if _, err := s.projects.GetByID(txCtx, projectID); err != nil {
			return nil, mapPgError(err)
		}

		pos, err := s.purchaseOrders.ListByProject(txCtx, projectID)
		if err != nil {
			return nil, mapPgError(err)
		}

		currentTotal := decimal.Zero
		poIDs := make([]uuid.UUID, 0, len(pos))
		for _, po := range pos {
			currentTotal = currentTotal.Add(po.TotalValue)
			poIDs = append(poIDs, po.ID)
		}

		cos, err := s.changeOrders.ListByPurchaseOrders(txCtx, poIDs)
		if err != nil {
			return nil, mapPgError(err)
		}

		additions := decimal.Zero
		omissions := decimal.Zero
		var details []AdditionDetailRow
		for _, co := range cos {
			if co.Status != changeorder.StatusApproved {
				continue
			}
			if co.AmountDelta.IsPositive() {
				additions = additions.Add(co.AmountDelta)
				voNo := ""
				if co.VariationOrderNo != nil {
					voNo = *co.VariationOrderNo
				}
				details = append(details, AdditionDetailRow{
					VariationOrderNo: voNo,
					Description:      co.Reason,
					Amount:           co.AmountDelta,
					Status:           co.Status,
				})
			} else if co.AmountDelta.IsNegative() {
				omissions = omissions.Add(co.AmountDelta.Abs())
			}
		}

		return &NetContractSummary{
			ProjectID:        projectID,
			OriginalContract: currentTotal.Sub(additions).Add(omissions),
			Additions:        additions,
			Omissions:        omissions,
			CurrentTotal:     currentTotal,
			AdditionDetails:  details,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(tenantID, key, summary)
	return summary, nil
}
