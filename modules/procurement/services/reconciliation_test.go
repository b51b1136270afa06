package services

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/InfradynAB/procure-sdk/modules/procurement/changeset"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/changeorder"
)

func deScopeRequestFor(f *fixture, itemID uuid.UUID, reduction decimal.Decimal) changeset.OmissionRequest {
	return changeset.OmissionRequest{
		PurchaseOrderID: f.po.ID,
		Items: []changeset.OmissionItem{
			{BOQItemID: itemID, ReductionQuantity: reduction},
		},
	}
}

func TestCreateVariationOrderInsertsNewItems(t *testing.T) {
	existing := &boqitem.BOQItem{
		ItemNumber: "BOQ-001",
		Quantity:   dec("10"),
		UnitPrice:  dec("100"),
		TotalPrice: dec("1000"),
	}
	f := newFixture(dec("100000"), existing)
	ctx := f.ctx()

	co, err := f.svc.CreateVariationOrder(ctx, VariationOrderInput{
		Request: changeset.AdditionRequest{
			PurchaseOrderID: f.po.ID,
			Items: []changeset.AdditionItem{
				{BOQItemID: &existing.ID, AdditionalQuantity: dec("5")},
				{
					ItemNumber:  "BOQ-100",
					Description: "Fire-rated door set",
					Unit:        "pcs",
					Quantity:    dec("8"),
					UnitPrice:   dec("750"),
				},
			},
		},
		Reason: "Client instruction SI-014",
	})
	require.NoError(t, err)

	require.Equal(t, changeorder.TypeAddition, co.Type)
	require.Equal(t, "VO-001", *co.VariationOrderNo)
	require.Equal(t, "PO-1001-CO1", co.ChangeNumber)
	// 5 x 100 on the existing line plus 8 x 750 of new scope.
	require.True(t, co.AmountDelta.Equal(dec("6500")))
	require.True(t, co.NewTotalValue.Equal(dec("106500")))

	// The new line exists immediately, tagged as variation scope.
	items, err := f.items.ListByPurchaseOrder(ctx, f.po.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	var added *boqitem.BOQItem
	for _, item := range items {
		if item.ItemNumber == "BOQ-100" {
			added = item
		}
	}
	require.NotNil(t, added)
	require.True(t, added.IsVariation)
	require.Equal(t, "VO-001", *added.VariationOrderNo)
	require.True(t, added.TotalPrice.Equal(dec("6000")))

	// The existing line is untouched until approval.
	require.True(t, existing.Quantity.Equal(dec("10")))
	require.True(t, f.po.TotalValue.Equal(dec("100000")))
	require.Equal(t, []string{ActionVariationOrderCreated}, f.audit.actions())

	// Approval applies the recorded quantity increase and the money.
	_, err = f.svc.ApproveChangeOrder(ctx, ApproveChangeOrderInput{ChangeOrderID: co.ID})
	require.NoError(t, err)
	require.True(t, existing.Quantity.Equal(dec("15")))
	require.True(t, existing.TotalPrice.Equal(dec("1500")))
	require.True(t, f.po.TotalValue.Equal(dec("106500")))
}

func TestCreateVariationOrderSequencesPerProject(t *testing.T) {
	f := newFixture(dec("100000"))
	ctx := f.ctx()

	for i, want := range []string{"VO-001", "VO-002", "VO-003"} {
		co, err := f.svc.CreateVariationOrder(ctx, VariationOrderInput{
			Request: changeset.AdditionRequest{
				PurchaseOrderID: f.po.ID,
				Items: []changeset.AdditionItem{
					{
						ItemNumber:  "BOQ-10" + string(rune('0'+i)),
						Description: "Additional works",
						Unit:        "ls",
						Quantity:    dec("1"),
						UnitPrice:   dec("1000"),
					},
				},
			},
		})
		require.NoError(t, err)
		require.Equal(t, want, *co.VariationOrderNo)
	}
}

func TestCreateVariationOrderValidation(t *testing.T) {
	f := newFixture(dec("100000"))
	ctx := f.ctx()

	_, err := f.svc.CreateVariationOrder(ctx, VariationOrderInput{
		Request: changeset.AdditionRequest{PurchaseOrderID: f.po.ID},
	})
	requireServiceError(t, err, http.StatusBadRequest, "PROC_INVALID_BODY")

	_, err = f.svc.CreateVariationOrder(ctx, VariationOrderInput{
		Request: changeset.AdditionRequest{
			PurchaseOrderID: f.po.ID,
			Items:           []changeset.AdditionItem{{Description: "no number"}},
		},
	})
	requireServiceError(t, err, http.StatusBadRequest, "PROC_INVALID_BODY")
}

func TestCreateDeScopeBatchIsAtomic(t *testing.T) {
	goodItem := &boqitem.BOQItem{
		ItemNumber: "BOQ-001",
		Quantity:   dec("100"),
		UnitPrice:  dec("10"),
		TotalPrice: dec("1000"),
	}
	certifiedItem := &boqitem.BOQItem{
		ItemNumber:        "BOQ-002",
		Quantity:          dec("50"),
		UnitPrice:         dec("20"),
		TotalPrice:        dec("1000"),
		QuantityDelivered: dec("45"),
		QuantityInstalled: dec("45"),
		QuantityCertified: dec("45"),
		LockedForDeScope:  true,
	}
	f := newFixture(dec("100000"), goodItem, certifiedItem)
	ctx := f.ctx()

	_, err := f.svc.CreateDeScope(ctx, DeScopeInput{
		Request: changeset.OmissionRequest{
			PurchaseOrderID: f.po.ID,
			Items: []changeset.OmissionItem{
				{BOQItemID: goodItem.ID, ReductionQuantity: dec("30")},
				// 50 - 10 = 40 < 45 certified: the whole batch must fail.
				{BOQItemID: certifiedItem.ID, ReductionQuantity: dec("10")},
			},
		},
		Reason: "Scope cut round two",
	})
	requireServiceError(t, err, http.StatusUnprocessableEntity, "PROC_DESCOPE_BELOW_CERTIFIED")

	require.Empty(t, f.changeOrders.orders)
	require.Empty(t, f.audit.entries)
	require.True(t, goodItem.Quantity.Equal(dec("100")))
	require.True(t, certifiedItem.Quantity.Equal(dec("50")))
}

func TestCreateDeScopeAppliesAtApproval(t *testing.T) {
	item := &boqitem.BOQItem{
		ItemNumber:        "BOQ-001",
		Quantity:          dec("100"),
		UnitPrice:         dec("10"),
		TotalPrice:        dec("1000"),
		QuantityDelivered: dec("20"),
		QuantityInstalled: dec("20"),
		QuantityCertified: dec("20"),
	}
	f := newFixture(dec("100000"), item)
	ctx := f.ctx()

	co, err := f.svc.CreateDeScope(ctx, DeScopeInput{
		Request: deScopeRequestFor(f, item.ID, dec("40")),
		Reason:  "East wing removed",
	})
	require.NoError(t, err)

	require.Equal(t, changeorder.TypeOmission, co.Type)
	require.True(t, co.AmountDelta.Equal(dec("-400")))
	require.True(t, co.NewTotalValue.Equal(dec("99600")))
	// Nothing applied yet.
	require.True(t, item.Quantity.Equal(dec("100")))

	_, err = f.svc.ApproveChangeOrder(ctx, ApproveChangeOrderInput{ChangeOrderID: co.ID})
	require.NoError(t, err)

	require.True(t, item.Quantity.Equal(dec("60")))
	require.True(t, item.OriginalQuantity.Equal(dec("100")))
	require.True(t, item.RevisedQuantity.Equal(dec("60")))
	require.True(t, item.TotalPrice.Equal(dec("600")))
	require.True(t, f.po.TotalValue.Equal(dec("99600")))
}

func TestCreateDeScopeUnknownItem(t *testing.T) {
	f := newFixture(dec("100000"))
	_, err := f.svc.CreateDeScope(f.ctx(), DeScopeInput{
		Request: deScopeRequestFor(f, uuid.New(), dec("10")),
	})
	requireServiceError(t, err, http.StatusNotFound, "PROC_NOT_FOUND")
}

func TestCreatePriceAmendment(t *testing.T) {
	item := &boqitem.BOQItem{
		ItemNumber: "BOQ-001",
		Quantity:   dec("100"),
		UnitPrice:  dec("10"),
		TotalPrice: dec("1000"),
	}
	f := newFixture(dec("100000"), item)
	ctx := f.ctx()

	co, err := f.svc.CreatePriceAmendment(ctx, PriceAmendmentInput{
		Request: changeset.AmendmentRequest{
			PurchaseOrderID: f.po.ID,
			Items: []changeset.AmendmentItem{
				{BOQItemID: item.ID, NewUnitPrice: dec("12.50")},
			},
		},
		Reason: "Indexed steel price",
	})
	require.NoError(t, err)

	require.Equal(t, changeorder.TypeGeneral, co.Type)
	// 100 x (12.50 - 10).
	require.True(t, co.AmountDelta.Equal(dec("250")))
	require.True(t, item.UnitPrice.Equal(dec("10")))

	_, err = f.svc.ApproveChangeOrder(ctx, ApproveChangeOrderInput{ChangeOrderID: co.ID})
	require.NoError(t, err)
	require.True(t, item.UnitPrice.Equal(dec("12.50")))
	require.True(t, item.TotalPrice.Equal(dec("1250")))
	require.True(t, f.po.TotalValue.Equal(dec("100250")))
}

func TestCreatePriceAmendmentRejectsNonPositivePrice(t *testing.T) {
	item := &boqitem.BOQItem{ItemNumber: "BOQ-001", Quantity: dec("10"), UnitPrice: dec("10")}
	f := newFixture(dec("100000"), item)

	_, err := f.svc.CreatePriceAmendment(f.ctx(), PriceAmendmentInput{
		Request: changeset.AmendmentRequest{
			PurchaseOrderID: f.po.ID,
			Items: []changeset.AmendmentItem{
				{BOQItemID: item.ID, NewUnitPrice: decimal.Zero},
			},
		},
	})
	requireServiceError(t, err, http.StatusBadRequest, "PROC_INVALID_BODY")
}
