package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/changeorder"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/instruction"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/ledger"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/milestone"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/purchaseorder"
	"github.com/InfradynAB/procure-sdk/modules/procurement/services"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

// stubTx keeps the transaction composable from reaching for a real pool.
type stubTx struct{}

func (stubTx) Begin(ctx context.Context) (pgx.Tx, error) { return stubTx{}, nil }
func (stubTx) Commit(ctx context.Context) error          { return nil }
func (stubTx) Rollback(ctx context.Context) error        { return nil }
func (stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (stubTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (stubTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (stubTx) Conn() *pgx.Conn                                               { return nil }

type memChangeOrders struct {
	orders map[uuid.UUID]*changeorder.ChangeOrder
}

func (m *memChangeOrders) Insert(ctx context.Context, co *changeorder.ChangeOrder) (*changeorder.ChangeOrder, error) {
	co.ID = uuid.New()
	m.orders[co.ID] = co
	return co, nil
}

func (m *memChangeOrders) GetByID(ctx context.Context, id uuid.UUID) (*changeorder.ChangeOrder, error) {
	co, ok := m.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return co, nil
}

func (m *memChangeOrders) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*changeorder.ChangeOrder, error) {
	return m.GetByID(ctx, id)
}

func (m *memChangeOrders) Update(ctx context.Context, co *changeorder.ChangeOrder) error {
	m.orders[co.ID] = co
	return nil
}

func (m *memChangeOrders) ListPending(ctx context.Context, purchaseOrderID *uuid.UUID) ([]*changeorder.PendingView, error) {
	var out []*changeorder.PendingView
	for _, co := range m.orders {
		if !changeorder.IsTerminal(co.Status) {
			out = append(out, &changeorder.PendingView{ChangeOrder: *co, PONumber: "PO-1001"})
		}
	}
	return out, nil
}

func (m *memChangeOrders) ListByPurchaseOrders(ctx context.Context, purchaseOrderIDs []uuid.UUID) ([]*changeorder.ChangeOrder, error) {
	var out []*changeorder.ChangeOrder
	for _, co := range m.orders {
		out = append(out, co)
	}
	return out, nil
}

type memPurchaseOrders struct {
	po *purchaseorder.PurchaseOrder
}

func (m *memPurchaseOrders) GetByID(ctx context.Context, id uuid.UUID) (*purchaseorder.PurchaseOrder, error) {
	if id != m.po.ID {
		return nil, pgx.ErrNoRows
	}
	return m.po, nil
}

func (m *memPurchaseOrders) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*purchaseorder.PurchaseOrder, error) {
	return m.GetByID(ctx, id)
}

func (m *memPurchaseOrders) NextCOSequence(ctx context.Context, id uuid.UUID) (int, error) {
	m.po.COSequence++
	return m.po.COSequence, nil
}

func (m *memPurchaseOrders) AddToTotalValue(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	m.po.TotalValue = m.po.TotalValue.Add(delta)
	return m.po.TotalValue, nil
}

func (m *memPurchaseOrders) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*purchaseorder.PurchaseOrder, error) {
	return []*purchaseorder.PurchaseOrder{m.po}, nil
}

type noopLedger struct{}

func (noopLedger) Insert(ctx context.Context, entry *ledger.Entry) (*ledger.Entry, error) {
	entry.ID = uuid.New()
	return entry, nil
}

func (noopLedger) ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*ledger.Entry, error) {
	return nil, nil
}

type noopMilestones struct{}

func (noopMilestones) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*milestone.Milestone, error) {
	return nil, nil
}

func (noopMilestones) ShiftExpectedDates(ctx context.Context, ids []uuid.UUID, days int) (int, error) {
	return len(ids), nil
}

type noopInstructions struct{}

func (noopInstructions) Insert(ctx context.Context, ci *instruction.ClientInstruction) (*instruction.ClientInstruction, error) {
	ci.ID = uuid.New()
	return ci, nil
}

func (noopInstructions) GetByID(ctx context.Context, id uuid.UUID) (*instruction.ClientInstruction, error) {
	return nil, pgx.ErrNoRows
}

func (noopInstructions) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return nil
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, entry services.AuditLogInsert) error { return nil }

func newTestRouter(t *testing.T) (*mux.Router, *purchaseorder.PurchaseOrder, uuid.UUID) {
	t.Helper()
	tenantID := uuid.New()
	po := &purchaseorder.PurchaseOrder{
		TenantID:   tenantID,
		ID:         uuid.New(),
		ProjectID:  uuid.New(),
		PONumber:   "PO-1001",
		TotalValue: decimal.NewFromInt(100000),
	}

	changeOrderService := services.NewChangeOrderService(services.ChangeOrderServiceDeps{
		ChangeOrders:   &memChangeOrders{orders: make(map[uuid.UUID]*changeorder.ChangeOrder)},
		PurchaseOrders: &memPurchaseOrders{po: po},
		Ledger:         noopLedger{},
		Milestones:     noopMilestones{},
		Instructions:   noopInstructions{},
		Audit:          noopAudit{},
	})
	instructionService := services.NewInstructionService(noopInstructions{}, noopAudit{})

	controller := NewProcurementAPIController(changeOrderService, nil, instructionService)
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := composables.WithTx(r.Context(), stubTx{})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	controller.Register(router)
	return router, po, tenantID
}

func doJSON(t *testing.T, router *mux.Router, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func identityHeaders(tenantID uuid.UUID) map[string]string {
	return map[string]string{
		"X-Actor-Id":  uuid.NewString(),
		"X-Tenant-Id": tenantID.String(),
	}
}

func TestSubmitChangeOrderEndpoint(t *testing.T) {
	router, po, tenantID := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/procurement/api/change-orders", identityHeaders(tenantID), map[string]any{
		"purchase_order_id": po.ID,
		"reason":            "Steel escalation",
		"amount_delta":      "5000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var co changeorder.ChangeOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &co))
	require.Equal(t, "PO-1001-CO1", co.ChangeNumber)
	require.Equal(t, changeorder.StatusSubmitted, co.Status)
}

func TestSubmitChangeOrderEndpointRequiresIdentity(t *testing.T) {
	router, po, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/procurement/api/change-orders", nil, map[string]any{
		"purchase_order_id": po.ID,
		"reason":            "no identity headers",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "PROC_NO_ACTOR", envelope["code"])
}

func TestSubmitChangeOrderEndpointRejectsUnknownFields(t *testing.T) {
	router, po, tenantID := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/procurement/api/change-orders", identityHeaders(tenantID), map[string]any{
		"purchase_order_id": po.ID,
		"reason":            "typo field below",
		"amount_deltas":     "5000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveEndpointLifecycle(t *testing.T) {
	router, po, tenantID := newTestRouter(t)
	headers := identityHeaders(tenantID)

	rec := doJSON(t, router, http.MethodPost, "/procurement/api/change-orders", headers, map[string]any{
		"purchase_order_id": po.ID,
		"reason":            "Added piling",
		"amount_delta":      "15000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var co changeorder.ChangeOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &co))

	path := fmt.Sprintf("/procurement/api/change-orders/%s:approve", co.ID)
	rec = doJSON(t, router, http.MethodPost, path, headers, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, po.TotalValue.Equal(decimal.NewFromInt(115000)))

	// Approving twice reports the terminal state.
	rec = doJSON(t, router, http.MethodPost, path, headers, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "PROC_ALREADY_APPROVED", envelope["code"])
}

func TestPendingEndpointInvalidQuery(t *testing.T) {
	router, _, tenantID := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/procurement/api/change-orders/pending?purchase_order_id=not-a-uuid", identityHeaders(tenantID), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
