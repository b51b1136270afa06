package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/boqitem"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/changeorder"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/instruction"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/ledger"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/milestone"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/project"
	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/purchaseorder"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

// stubTx satisfies pgx.Tx so the transaction composable reuses it instead of
// opening a real connection. The mock repositories never touch it.
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

func testContext(tenantID, actorID uuid.UUID) context.Context {
	ctx := composables.WithTx(context.Background(), stubTx{})
	if tenantID != uuid.Nil {
		ctx = composables.WithTenantID(ctx, tenantID)
	}
	if actorID != uuid.Nil {
		ctx = composables.WithActorID(ctx, actorID)
	}
	return ctx
}

type mockChangeOrderRepo struct {
	orders map[uuid.UUID]*changeorder.ChangeOrder
}

func newMockChangeOrderRepo() *mockChangeOrderRepo {
	return &mockChangeOrderRepo{orders: make(map[uuid.UUID]*changeorder.ChangeOrder)}
}

func (m *mockChangeOrderRepo) Insert(ctx context.Context, co *changeorder.ChangeOrder) (*changeorder.ChangeOrder, error) {
	for _, existing := range m.orders {
		if existing.TenantID == co.TenantID && existing.ChangeNumber == co.ChangeNumber {
			return nil, fmt.Errorf("duplicate change number %s", co.ChangeNumber)
		}
	}
	co.ID = uuid.New()
	m.orders[co.ID] = co
	return co, nil
}

func (m *mockChangeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*changeorder.ChangeOrder, error) {
	co, ok := m.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return co, nil
}

func (m *mockChangeOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*changeorder.ChangeOrder, error) {
	return m.GetByID(ctx, id)
}

func (m *mockChangeOrderRepo) Update(ctx context.Context, co *changeorder.ChangeOrder) error {
	if _, ok := m.orders[co.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.orders[co.ID] = co
	return nil
}

func (m *mockChangeOrderRepo) ListPending(ctx context.Context, purchaseOrderID *uuid.UUID) ([]*changeorder.PendingView, error) {
	var out []*changeorder.PendingView
	for _, co := range m.orders {
		if changeorder.IsTerminal(co.Status) {
			continue
		}
		if purchaseOrderID != nil && co.PurchaseOrderID != *purchaseOrderID {
			continue
		}
		out = append(out, &changeorder.PendingView{ChangeOrder: *co})
	}
	return out, nil
}

func (m *mockChangeOrderRepo) ListByPurchaseOrders(ctx context.Context, purchaseOrderIDs []uuid.UUID) ([]*changeorder.ChangeOrder, error) {
	ids := make(map[uuid.UUID]struct{}, len(purchaseOrderIDs))
	for _, id := range purchaseOrderIDs {
		ids[id] = struct{}{}
	}
	var out []*changeorder.ChangeOrder
	for _, co := range m.orders {
		if _, ok := ids[co.PurchaseOrderID]; ok {
			out = append(out, co)
		}
	}
	return out, nil
}

type mockPurchaseOrderRepo struct {
	orders map[uuid.UUID]*purchaseorder.PurchaseOrder
}

func newMockPurchaseOrderRepo(orders ...*purchaseorder.PurchaseOrder) *mockPurchaseOrderRepo {
	m := &mockPurchaseOrderRepo{orders: make(map[uuid.UUID]*purchaseorder.PurchaseOrder)}
	for _, po := range orders {
		m.orders[po.ID] = po
	}
	return m
}

func (m *mockPurchaseOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*purchaseorder.PurchaseOrder, error) {
	po, ok := m.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return po, nil
}

func (m *mockPurchaseOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*purchaseorder.PurchaseOrder, error) {
	return m.GetByID(ctx, id)
}

func (m *mockPurchaseOrderRepo) NextCOSequence(ctx context.Context, id uuid.UUID) (int, error) {
	po, ok := m.orders[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	po.COSequence++
	return po.COSequence, nil
}

func (m *mockPurchaseOrderRepo) AddToTotalValue(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	po, ok := m.orders[id]
	if !ok {
		return decimal.Zero, pgx.ErrNoRows
	}
	po.TotalValue = po.TotalValue.Add(delta)
	return po.TotalValue, nil
}

func (m *mockPurchaseOrderRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*purchaseorder.PurchaseOrder, error) {
	var out []*purchaseorder.PurchaseOrder
	for _, po := range m.orders {
		if po.ProjectID == projectID {
			out = append(out, po)
		}
	}
	return out, nil
}

type mockBOQItemRepo struct {
	items map[uuid.UUID]*boqitem.BOQItem
}

func newMockBOQItemRepo(items ...*boqitem.BOQItem) *mockBOQItemRepo {
	m := &mockBOQItemRepo{items: make(map[uuid.UUID]*boqitem.BOQItem)}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *mockBOQItemRepo) Insert(ctx context.Context, item *boqitem.BOQItem) (*boqitem.BOQItem, error) {
	item.ID = uuid.New()
	m.items[item.ID] = item
	return item, nil
}

func (m *mockBOQItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*boqitem.BOQItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return item, nil
}

func (m *mockBOQItemRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*boqitem.BOQItem, error) {
	return m.GetByID(ctx, id)
}

func (m *mockBOQItemRepo) GetByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*boqitem.BOQItem, error) {
	var out []*boqitem.BOQItem
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockBOQItemRepo) Update(ctx context.Context, item *boqitem.BOQItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockBOQItemRepo) ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*boqitem.BOQItem, error) {
	var out []*boqitem.BOQItem
	for _, item := range m.items {
		if item.PurchaseOrderID == purchaseOrderID {
			out = append(out, item)
		}
	}
	return out, nil
}

type mockProjectRepo struct {
	projects map[uuid.UUID]*project.Project
}

func newMockProjectRepo(projects ...*project.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: make(map[uuid.UUID]*project.Project)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockProjectRepo) NextVOSequence(ctx context.Context, id uuid.UUID) (int, error) {
	p, ok := m.projects[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	p.VOSequence++
	return p.VOSequence, nil
}

type mockLedgerRepo struct {
	entries []*ledger.Entry
}

func (m *mockLedgerRepo) Insert(ctx context.Context, entry *ledger.Entry) (*ledger.Entry, error) {
	entry.ID = uuid.New()
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *mockLedgerRepo) ListByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*ledger.Entry, error) {
	var out []*ledger.Entry
	for _, e := range m.entries {
		if e.PurchaseOrderID == purchaseOrderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockMilestoneRepo struct {
	shifted map[uuid.UUID]int
}

func newMockMilestoneRepo() *mockMilestoneRepo {
	return &mockMilestoneRepo{shifted: make(map[uuid.UUID]int)}
}

func (m *mockMilestoneRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*milestone.Milestone, error) {
	return nil, nil
}

func (m *mockMilestoneRepo) ShiftExpectedDates(ctx context.Context, ids []uuid.UUID, days int) (int, error) {
	for _, id := range ids {
		m.shifted[id] += days
	}
	return len(ids), nil
}

type mockInstructionRepo struct {
	instructions map[uuid.UUID]*instruction.ClientInstruction
}

func newMockInstructionRepo(instructions ...*instruction.ClientInstruction) *mockInstructionRepo {
	m := &mockInstructionRepo{instructions: make(map[uuid.UUID]*instruction.ClientInstruction)}
	for _, ci := range instructions {
		m.instructions[ci.ID] = ci
	}
	return m
}

func (m *mockInstructionRepo) Insert(ctx context.Context, ci *instruction.ClientInstruction) (*instruction.ClientInstruction, error) {
	ci.ID = uuid.New()
	m.instructions[ci.ID] = ci
	return ci, nil
}

func (m *mockInstructionRepo) GetByID(ctx context.Context, id uuid.UUID) (*instruction.ClientInstruction, error) {
	ci, ok := m.instructions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ci, nil
}

func (m *mockInstructionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	ci, ok := m.instructions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ci.Status = status
	return nil
}

type mockAuditRecorder struct {
	entries []AuditLogInsert
}

func (m *mockAuditRecorder) Record(ctx context.Context, entry AuditLogInsert) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRecorder) actions() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

// fixture bundles one purchase order with its collaborators and the service
// wired over mocks.
type fixture struct {
	tenantID uuid.UUID
	actorID  uuid.UUID
	project  *project.Project
	po       *purchaseorder.PurchaseOrder

	changeOrders *mockChangeOrderRepo
	pos          *mockPurchaseOrderRepo
	items        *mockBOQItemRepo
	projects     *mockProjectRepo
	ledger       *mockLedgerRepo
	milestones   *mockMilestoneRepo
	instructions *mockInstructionRepo
	audit        *mockAuditRecorder

	svc *ChangeOrderService
}

func newFixture(totalValue decimal.Decimal, items ...*boqitem.BOQItem) *fixture {
	tenantID := uuid.New()
	proj := &project.Project{TenantID: tenantID, ID: uuid.New(), Name: "Harbor Expansion"}
	po := &purchaseorder.PurchaseOrder{
		TenantID:     tenantID,
		ID:           uuid.New(),
		ProjectID:    proj.ID,
		PONumber:     "PO-1001",
		SupplierName: "Nordic Steel AB",
		TotalValue:   totalValue,
	}
	for _, item := range items {
		item.TenantID = tenantID
		item.PurchaseOrderID = po.ID
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
	}

	f := &fixture{
		tenantID:     tenantID,
		actorID:      uuid.New(),
		project:      proj,
		po:           po,
		changeOrders: newMockChangeOrderRepo(),
		pos:          newMockPurchaseOrderRepo(po),
		items:        newMockBOQItemRepo(items...),
		projects:     newMockProjectRepo(proj),
		ledger:       &mockLedgerRepo{},
		milestones:   newMockMilestoneRepo(),
		instructions: newMockInstructionRepo(),
		audit:        &mockAuditRecorder{},
	}
	f.svc = NewChangeOrderService(ChangeOrderServiceDeps{
		ChangeOrders:   f.changeOrders,
		PurchaseOrders: f.pos,
		BOQItems:       f.items,
		Projects:       f.projects,
		Ledger:         f.ledger,
		Milestones:     f.milestones,
		Instructions:   f.instructions,
		Audit:          f.audit,
	})
	return f
}

func (f *fixture) ctx() context.Context {
	return testContext(f.tenantID, f.actorID)
}
