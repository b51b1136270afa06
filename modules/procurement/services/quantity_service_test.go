package services

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
)

func newQuantityFixture(t *testing.T) (*QuantityService, *boqitem.BOQItem, *mockAuditRecorder, uuid.UUID, uuid.UUID) {
	t.Helper()
	tenantID := uuid.New()
	actorID := uuid.New()
	item := &boqitem.BOQItem{
		TenantID:   tenantID,
		ID:         uuid.New(),
		ItemNumber: "BOQ-001",
		Quantity:   dec("100"),
		UnitPrice:  dec("10"),
	}
	audit := &mockAuditRecorder{}
	svc := NewQuantityService(newMockBOQItemRepo(item), audit, nil)
	return svc, item, audit, tenantID, actorID
}

func TestQuantityPipelineHappyPath(t *testing.T) {
	svc, item, audit, tenantID, actorID := newQuantityFixture(t)
	ctx := testContext(tenantID, actorID)

	_, err := svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("80")})
	require.NoError(t, err)
	_, err = svc.UpdateQuantityInstalled(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("60")})
	require.NoError(t, err)
	updated, err := svc.CertifyQuantity(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("50")})
	require.NoError(t, err)

	require.True(t, updated.QuantityDelivered.Equal(dec("80")))
	require.True(t, updated.QuantityInstalled.Equal(dec("60")))
	require.True(t, updated.QuantityCertified.Equal(dec("50")))
	require.True(t, updated.LockedForDeScope)
	require.Equal(t, []string{
		ActionQuantityDeliveredUpdated,
		ActionQuantityInstalledUpdated,
		ActionQuantityCertified,
	}, audit.actions())
}

func TestQuantityPipelineBounds(t *testing.T) {
	svc, item, _, tenantID, actorID := newQuantityFixture(t)
	ctx := testContext(tenantID, actorID)

	// Delivered cannot exceed the contracted quantity.
	_, err := svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("101")})
	requireServiceError(t, err, http.StatusUnprocessableEntity, "PROC_INVALID_STATE")

	_, err = svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("80")})
	require.NoError(t, err)

	// Installed cannot exceed delivered.
	_, err = svc.UpdateQuantityInstalled(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("90")})
	requireServiceError(t, err, http.StatusUnprocessableEntity, "PROC_INVALID_STATE")

	_, err = svc.UpdateQuantityInstalled(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("70")})
	require.NoError(t, err)

	// Certified cannot exceed installed.
	_, err = svc.CertifyQuantity(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("75")})
	requireServiceError(t, err, http.StatusUnprocessableEntity, "PROC_INVALID_STATE")

	_, err = svc.CertifyQuantity(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("40")})
	require.NoError(t, err)

	// Delivered cannot later drop below installed, nor installed below
	// certified.
	_, err = svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("60")})
	requireServiceError(t, err, http.StatusUnprocessableEntity, "PROC_INVALID_STATE")
	_, err = svc.UpdateQuantityInstalled(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("30")})
	requireServiceError(t, err, http.StatusUnprocessableEntity, "PROC_INVALID_STATE")

	// A rejected mutation leaves every stage value unchanged.
	require.True(t, item.QuantityDelivered.Equal(dec("80")))
	require.True(t, item.QuantityInstalled.Equal(dec("70")))
	require.True(t, item.QuantityCertified.Equal(dec("40")))
}

func TestCertifyZeroUnlocksDeScope(t *testing.T) {
	svc, item, _, tenantID, actorID := newQuantityFixture(t)
	ctx := testContext(tenantID, actorID)

	_, err := svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("50")})
	require.NoError(t, err)
	_, err = svc.UpdateQuantityInstalled(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("50")})
	require.NoError(t, err)

	_, err = svc.CertifyQuantity(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("10")})
	require.NoError(t, err)
	require.True(t, item.LockedForDeScope)

	_, err = svc.CertifyQuantity(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("0")})
	require.NoError(t, err)
	require.False(t, item.LockedForDeScope)
}

func TestQuantityUpdateValidation(t *testing.T) {
	svc, item, _, tenantID, actorID := newQuantityFixture(t)

	_, err := svc.UpdateQuantityDelivered(testContext(tenantID, uuid.Nil), QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("10")})
	requireServiceError(t, err, http.StatusUnauthorized, "PROC_NO_ACTOR")

	ctx := testContext(tenantID, actorID)
	_, err = svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{Quantity: dec("10")})
	requireServiceError(t, err, http.StatusBadRequest, "PROC_INVALID_BODY")

	_, err = svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{BOQItemID: item.ID, Quantity: dec("-1")})
	requireServiceError(t, err, http.StatusBadRequest, "PROC_INVALID_BODY")

	_, err = svc.UpdateQuantityDelivered(ctx, QuantityUpdateInput{BOQItemID: uuid.New(), Quantity: dec("1")})
	requireServiceError(t, err, http.StatusNotFound, "PROC_NOT_FOUND")
}
