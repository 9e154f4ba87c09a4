package purchasing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/msa-suite/msa-suite/internal/billing"
	"github.com/msa-suite/msa-suite/internal/inventory"
	"github.com/msa-suite/msa-suite/internal/shared"
)

type memoryState struct {
	orders       map[int64]PurchaseOrder
	items        map[int64]OrderItem
	parts        map[int64]inventory.Part
	ledger       []inventory.LedgerEntry
	priceHistory []inventory.PriceChange
	invoices     map[int64]billing.SupplierInvoice
	nextID       int64
}

func (s *memoryState) clone() *memoryState {
	cp := &memoryState{
		orders:   make(map[int64]PurchaseOrder, len(s.orders)),
		items:    make(map[int64]OrderItem, len(s.items)),
		parts:    make(map[int64]inventory.Part, len(s.parts)),
		invoices: make(map[int64]billing.SupplierInvoice, len(s.invoices)),
		nextID:   s.nextID,
	}
	for k, v := range s.orders {
		cp.orders[k] = v
	}
	for k, v := range s.items {
		cp.items[k] = v
	}
	for k, v := range s.parts {
		cp.parts[k] = v
	}
	for k, v := range s.invoices {
		cp.invoices[k] = v
	}
	cp.ledger = append([]inventory.LedgerEntry(nil), s.ledger...)
	cp.priceHistory = append([]inventory.PriceChange(nil), s.priceHistory...)
	return cp
}

// memoryRepo implements RepositoryPort with copy-on-begin transactions so a
// failed transaction leaves the prior state untouched.
type memoryRepo struct {
	state  *memoryState
	failOn string
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		orders:   make(map[int64]PurchaseOrder),
		items:    make(map[int64]OrderItem),
		parts:    make(map[int64]inventory.Part),
		invoices: make(map[int64]billing.SupplierInvoice),
	}}
}

func (r *memoryRepo) nextID() int64 {
	r.state.nextID++
	return r.state.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, ok := r.state.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return order, nil
}

func (r *memoryRepo) GetOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	var items []OrderItem
	for _, item := range r.state.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r *memoryRepo) GetItem(ctx context.Context, itemID int64) (OrderItem, error) {
	item, ok := r.state.items[itemID]
	if !ok {
		return OrderItem{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]OrderListItem, int, error) {
	var rows []OrderListItem
	for _, order := range r.state.orders {
		if filters.Status != "" && string(order.Status) != filters.Status {
			continue
		}
		if filters.SupplierID != 0 && order.SupplierID != filters.SupplierID {
			continue
		}
		rows = append(rows, OrderListItem{
			ID:          order.ID,
			Number:      order.Number,
			SupplierID:  order.SupplierID,
			BranchID:    order.BranchID,
			Status:      order.Status,
			TotalAmount: order.TotalAmount,
		})
	}
	return rows, len(rows), nil
}

func (r *memoryRepo) ListSupplierOrders(ctx context.Context, supplierID int64) ([]PurchaseOrder, error) {
	var orders []PurchaseOrder
	for _, order := range r.state.orders {
		if order.SupplierID == supplierID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (r *memoryRepo) CountByStatus(ctx context.Context) (map[OrderStatus]int, error) {
	counts := make(map[OrderStatus]int)
	for _, order := range r.state.orders {
		counts[order.Status]++
	}
	return counts, nil
}

func (r *memoryRepo) OutstandingTotal(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, order := range r.state.orders {
		if order.Status == StatusDraft || order.Status == StatusSent {
			total = total.Add(order.TotalAmount)
		}
	}
	return total, nil
}

func (t *memoryTx) fail(op string) error {
	if t.repo.failOn == op {
		return fmt.Errorf("injected failure at %s", op)
	}
	return nil
}

func (t *memoryTx) NextOrderSequence(ctx context.Context, branchID int64, date time.Time) (int, error) {
	day := date.Format("20060102")
	max := 0
	for _, order := range t.repo.state.orders {
		if order.BranchID != branchID || !strings.Contains(order.Number, day) {
			continue
		}
		parts := strings.Split(order.Number, "-")
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (t *memoryTx) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	order.ID = t.repo.nextID()
	order.CreatedAt = time.Now()
	t.repo.state.orders[order.ID] = order
	return order.ID, nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	item.ID = t.repo.nextID()
	t.repo.state.items[item.ID] = item
	return item.ID, nil
}

func (t *memoryTx) UpdateItem(ctx context.Context, item OrderItem) error {
	if _, ok := t.repo.state.items[item.ID]; !ok {
		return ErrNotFound
	}
	t.repo.state.items[item.ID] = item
	return nil
}

func (t *memoryTx) DeleteItem(ctx context.Context, itemID int64) error {
	delete(t.repo.state.items, itemID)
	return nil
}

func (t *memoryTx) OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return t.repo.GetOrderItems(ctx, orderID)
}

func (t *memoryTx) SetOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	order, ok := t.repo.state.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.TotalAmount = total
	t.repo.state.orders[orderID] = order
	return nil
}

func (t *memoryTx) SetOrderStatus(ctx context.Context, orderID int64, from, to OrderStatus, receivedDate *time.Time) error {
	order, ok := t.repo.state.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if order.Status != from {
		return fmt.Errorf("%w: order is no longer %s", ErrInvalidTransition, from)
	}
	order.Status = to
	order.ReceivedDate = receivedDate
	t.repo.state.orders[orderID] = order
	return nil
}

func (t *memoryTx) SetItemReceivedQty(ctx context.Context, itemID, qty int64) error {
	if err := t.fail("SetItemReceivedQty"); err != nil {
		return err
	}
	item, ok := t.repo.state.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.ReceivedQty = qty
	t.repo.state.items[itemID] = item
	return nil
}

func (t *memoryTx) DeleteOrder(ctx context.Context, orderID int64) error {
	order, ok := t.repo.state.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if order.Status != StatusDraft {
		return fmt.Errorf("%w: order is no longer a draft", ErrInvalidTransition)
	}
	delete(t.repo.state.orders, orderID)
	for id, item := range t.repo.state.items {
		if item.OrderID == orderID {
			delete(t.repo.state.items, id)
		}
	}
	return nil
}

func (t *memoryTx) GetPartForUpdate(ctx context.Context, partID int64) (inventory.Part, error) {
	part, ok := t.repo.state.parts[partID]
	if !ok {
		return inventory.Part{}, inventory.ErrPartNotFound
	}
	return part, nil
}

func (t *memoryTx) IncrementStock(ctx context.Context, entry inventory.LedgerEntry) error {
	part, ok := t.repo.state.parts[entry.PartID]
	if !ok {
		return inventory.ErrPartNotFound
	}
	part.Stock += entry.Delta
	t.repo.state.parts[entry.PartID] = part
	t.repo.state.ledger = append(t.repo.state.ledger, entry)
	return nil
}

func (t *memoryTx) UpdatePartCost(ctx context.Context, partID int64, cost decimal.Decimal) error {
	part, ok := t.repo.state.parts[partID]
	if !ok {
		return inventory.ErrPartNotFound
	}
	part.Cost = cost
	t.repo.state.parts[partID] = part
	return nil
}

func (t *memoryTx) AppendPriceHistory(ctx context.Context, change inventory.PriceChange) error {
	if err := t.fail("AppendPriceHistory"); err != nil {
		return err
	}
	t.repo.state.priceHistory = append(t.repo.state.priceHistory, change)
	return nil
}

func (t *memoryTx) InvoiceExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	for _, inv := range t.repo.state.invoices {
		if inv.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) CreateInvoice(ctx context.Context, inv billing.SupplierInvoice) (int64, error) {
	inv.ID = t.repo.nextID()
	t.repo.state.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *memoryTx) OrderInvoices(ctx context.Context, orderID int64) ([]billing.SupplierInvoice, error) {
	var invoices []billing.SupplierInvoice
	for _, inv := range t.repo.state.invoices {
		if inv.OrderID == orderID {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

func (t *memoryTx) SetInvoiceStatus(ctx context.Context, invoiceID int64, status billing.InvoiceStatus) error {
	inv, ok := t.repo.state.invoices[invoiceID]
	if !ok {
		return billing.ErrNotFound
	}
	inv.Status = status
	t.repo.state.invoices[invoiceID] = inv
	return nil
}

type memoryAudit struct {
	entries []shared.AuditEntry
}

func (a *memoryAudit) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func (a *memoryAudit) actions() []string {
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func newTestService(repo *memoryRepo) (*Service, *memoryAudit) {
	audit := &memoryAudit{}
	svc := NewService(repo, audit, nil, nil, ServiceConfig{})
	return svc, audit
}

func seedPart(repo *memoryRepo, id int64, cost string, stock int64) {
	repo.state.parts[id] = inventory.Part{
		ID:    id,
		SKU:   fmt.Sprintf("SKU-%d", id),
		Name:  fmt.Sprintf("Part %d", id),
		Cost:  decimal.RequireFromString(cost),
		Stock: stock,
	}
}

func mustCreateOrder(t *testing.T, svc *Service, items ...ItemInput) PurchaseOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 7,
		BranchID:   1,
		Items:      items,
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderComputesTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	order := mustCreateOrder(t, svc,
		ItemInput{PartID: 1, Qty: 3, UnitCost: decimal.RequireFromString("10.00")},
		ItemInput{PartID: 2, Qty: 1, UnitCost: decimal.RequireFromString("25.00")},
	)

	require.Equal(t, StatusDraft, order.Status)
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("55.00")),
		"got total %s", order.TotalAmount)
	require.Equal(t, FormatOrderNumber("PO", 1, time.Now().UTC(), 1), order.Number)
}

func TestCreateOrderSequencePerBranchAndDay(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	first := mustCreateOrder(t, svc)
	second := mustCreateOrder(t, svc)
	require.NotEqual(t, first.Number, second.Number)

	other, err := svc.CreateOrder(context.Background(), CreateOrderInput{SupplierID: 7, BranchID: 2})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(other.Number, "PO2-"), "got %s", other.Number)
	require.True(t, strings.HasSuffix(other.Number, "-0001"), "got %s", other.Number)
}

func TestOrderNumbersNotReusedAfterDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	first := mustCreateOrder(t, svc)
	second := mustCreateOrder(t, svc)
	require.NoError(t, svc.DeleteOrder(context.Background(), first.ID))

	// The freed slot must not be handed out again while 0002 is live.
	third := mustCreateOrder(t, svc)
	require.True(t, strings.HasSuffix(second.Number, "-0002"), "got %s", second.Number)
	require.True(t, strings.HasSuffix(third.Number, "-0003"), "got %s", third.Number)
	require.NotEqual(t, second.Number, third.Number)
}

func TestCreateOrderRequiresSupplierAndBranch(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{BranchID: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{SupplierID: 7})
	require.ErrorIs(t, err, ErrValidation)
}

func TestItemMutationsRecalculateTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	order := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 2, UnitCost: decimal.RequireFromString("5.00")})

	item, err := svc.AddItem(context.Background(), order.ID, ItemInput{PartID: 2, Qty: 4, UnitCost: decimal.RequireFromString("2.50")})
	require.NoError(t, err)
	got, _ := repo.GetOrder(context.Background(), order.ID)
	require.True(t, got.TotalAmount.Equal(decimal.RequireFromString("20.00")), "got %s", got.TotalAmount)

	_, err = svc.UpdateItem(context.Background(), item.ID, ItemInput{PartID: 2, Qty: 1, UnitCost: decimal.RequireFromString("2.50")})
	require.NoError(t, err)
	got, _ = repo.GetOrder(context.Background(), order.ID)
	require.True(t, got.TotalAmount.Equal(decimal.RequireFromString("12.50")), "got %s", got.TotalAmount)

	require.NoError(t, svc.RemoveItem(context.Background(), item.ID))
	got, _ = repo.GetOrder(context.Background(), order.ID)
	require.True(t, got.TotalAmount.Equal(decimal.RequireFromString("10.00")), "got %s", got.TotalAmount)
}

func TestItemMutationsRejectedOutsideDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	order := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("9.99")})
	require.NoError(t, svc.SendOrder(context.Background(), order.ID))

	_, err := svc.AddItem(context.Background(), order.ID, ItemInput{PartID: 2, Qty: 1, UnitCost: decimal.RequireFromString("1.00")})
	require.ErrorIs(t, err, ErrOrderNotEditable)

	items, err := repo.GetOrderItems(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.UpdateItem(context.Background(), items[0].ID, ItemInput{PartID: 1, Qty: 5, UnitCost: decimal.RequireFromString("9.99")})
	require.ErrorIs(t, err, ErrOrderNotEditable)
	require.ErrorIs(t, svc.RemoveItem(context.Background(), items[0].ID), ErrOrderNotEditable)
}

func TestSendOrderCreatesPendingInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit := newTestService(repo)

	order := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 2, UnitCost: decimal.RequireFromString("30.00")})
	require.NoError(t, svc.SendOrder(context.Background(), order.ID))

	got, _ := repo.GetOrder(context.Background(), order.ID)
	require.Equal(t, StatusSent, got.Status)

	require.Len(t, repo.state.invoices, 1)
	for _, inv := range repo.state.invoices {
		require.Equal(t, billing.InvoicePending, inv.Status)
		require.Equal(t, "INV-"+order.Number, inv.Number)
		require.Equal(t, order.ID, inv.OrderID)
		require.True(t, inv.Subtotal.Equal(decimal.RequireFromString("60.00")))
		require.True(t, inv.DueAt.After(inv.IssuedAt))
	}
	require.Contains(t, audit.actions(), "PO_STATUS")
}

func TestSendOrderDoesNotDuplicateInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	order := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("10.00")})
	// Invoice already present, for instance from a retried send.
	repo.state.invoices[999] = billing.SupplierInvoice{ID: 999, OrderID: order.ID, SupplierID: order.SupplierID, Status: billing.InvoicePending}

	require.NoError(t, svc.SendOrder(context.Background(), order.ID))
	require.Len(t, repo.state.invoices, 1)

	require.ErrorIs(t, svc.SendOrder(context.Background(), order.ID), ErrInvalidTransition)
}

func TestReceiveOrderAppliesInventorySideEffects(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	seedPart(repo, 1, "8.00", 5)
	seedPart(repo, 2, "25.00", 0)

	ctx := shared.ContextWithActor(context.Background(), shared.Actor{Name: "jess", IP: "10.0.0.9"})
	order := mustCreateOrder(t, svc,
		ItemInput{PartID: 1, Qty: 3, UnitCost: decimal.RequireFromString("10.00")},
		ItemInput{PartID: 2, Qty: 1, UnitCost: decimal.RequireFromString("25.00")},
	)
	require.NoError(t, svc.SendOrder(ctx, order.ID))
	require.NoError(t, svc.ReceiveOrder(ctx, order.ID))

	got, _ := repo.GetOrder(ctx, order.ID)
	require.Equal(t, StatusReceived, got.Status)
	require.NotNil(t, got.ReceivedDate)

	// Stock incremented for both parts.
	require.Equal(t, int64(8), repo.state.parts[1].Stock)
	require.Equal(t, int64(1), repo.state.parts[2].Stock)

	// Cost changed only for part 1, with one history row.
	require.True(t, repo.state.parts[1].Cost.Equal(decimal.RequireFromString("10.00")))
	require.True(t, repo.state.parts[2].Cost.Equal(decimal.RequireFromString("25.00")))
	require.Len(t, repo.state.priceHistory, 1)
	require.Equal(t, int64(1), repo.state.priceHistory[0].PartID)
	require.True(t, repo.state.priceHistory[0].OldCost.Equal(decimal.RequireFromString("8.00")))

	// Ledger entries reference the order and carry the actor.
	require.Len(t, repo.state.ledger, 2)
	for _, entry := range repo.state.ledger {
		require.Equal(t, inventory.RefPurchaseOrder, entry.RefType)
		require.Equal(t, "jess", entry.Actor)
		require.Contains(t, entry.Note, order.Number)
	}

	// Received quantities match ordered quantities.
	items, _ := repo.GetOrderItems(ctx, order.ID)
	for _, item := range items {
		require.Equal(t, item.Qty, item.ReceivedQty)
	}
}

func TestReceiveOrderRollsBackAtomically(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	seedPart(repo, 1, "8.00", 5)

	order := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 3, UnitCost: decimal.RequireFromString("10.00")})
	require.NoError(t, svc.SendOrder(context.Background(), order.ID))

	repo.failOn = "SetItemReceivedQty"
	err := svc.ReceiveOrder(context.Background(), order.ID)
	require.Error(t, err)

	// Nothing from the failed transaction may stick: status, stock, cost,
	// price history, ledger.
	got, _ := repo.GetOrder(context.Background(), order.ID)
	require.Equal(t, StatusSent, got.Status)
	require.Nil(t, got.ReceivedDate)
	require.Equal(t, int64(5), repo.state.parts[1].Stock)
	require.True(t, repo.state.parts[1].Cost.Equal(decimal.RequireFromString("8.00")))
	require.Empty(t, repo.state.priceHistory)
	require.Empty(t, repo.state.ledger)
}

func TestReceiveOrderFailsWhenPartMissing(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	order := mustCreateOrder(t, svc, ItemInput{PartID: 42, Qty: 1, UnitCost: decimal.RequireFromString("10.00")})
	require.NoError(t, svc.SendOrder(context.Background(), order.ID))

	err := svc.ReceiveOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, inventory.ErrPartNotFound)

	got, _ := repo.GetOrder(context.Background(), order.ID)
	require.Equal(t, StatusSent, got.Status)
}

// staleReadRepo serves one caller a snapshot of an order taken before another
// caller transitioned it, reproducing two requests passing the pre-transaction
// status check with the same observed status.
type staleReadRepo struct {
	*memoryRepo
	stale *PurchaseOrder
}

func (r *staleReadRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	if r.stale != nil && r.stale.ID == id {
		return *r.stale, nil
	}
	return r.memoryRepo.GetOrder(ctx, id)
}

func TestReceiveOrderRacingTransitionAppliesOnce(t *testing.T) {
	mem := newMemoryRepo()
	repo := &staleReadRepo{memoryRepo: mem}
	svc := NewService(repo, &memoryAudit{}, nil, nil, ServiceConfig{})
	seedPart(mem, 1, "10.00", 0)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID: 7,
		BranchID:   1,
		Items:      []ItemInput{{PartID: 1, Qty: 3, UnitCost: decimal.RequireFromString("10.00")}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.SendOrder(context.Background(), order.ID))

	sent, err := mem.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ReceiveOrder(context.Background(), order.ID))
	require.Equal(t, int64(3), mem.state.parts[1].Stock)

	// The second caller still sees SENT when it checks, so the conditional
	// status update inside the transaction must reject it instead of letting
	// the inventory side effects run twice.
	repo.stale = &sent
	require.ErrorIs(t, svc.ReceiveOrder(context.Background(), order.ID), ErrInvalidTransition)
	require.Equal(t, int64(3), mem.state.parts[1].Stock)
	require.Len(t, mem.state.ledger, 1)
}

func TestCancelOrderCancelsOpenInvoices(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit := newTestService(repo)

	order := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("15.00")})
	require.NoError(t, svc.SendOrder(context.Background(), order.ID))

	// A second, already paid invoice must stay untouched.
	repo.state.invoices[500] = billing.SupplierInvoice{ID: 500, OrderID: order.ID, SupplierID: order.SupplierID, Status: billing.InvoicePaid}

	require.NoError(t, svc.CancelOrder(context.Background(), order.ID))

	got, _ := repo.GetOrder(context.Background(), order.ID)
	require.Equal(t, StatusCancelled, got.Status)

	var pending, cancelled, paid int
	for _, inv := range repo.state.invoices {
		switch inv.Status {
		case billing.InvoicePending:
			pending++
		case billing.InvoiceCancelled:
			cancelled++
		case billing.InvoicePaid:
			paid++
		}
	}
	require.Zero(t, pending)
	require.Equal(t, 1, cancelled)
	require.Equal(t, 1, paid)
	require.Contains(t, audit.actions(), "INVOICE_CANCEL")
}

func TestInvalidTransitionsRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	draft := mustCreateOrder(t, svc)
	require.ErrorIs(t, svc.ReceiveOrder(context.Background(), draft.ID), ErrInvalidTransition)

	received := mustCreateOrder(t, svc)
	require.NoError(t, svc.SendOrder(context.Background(), received.ID))
	require.NoError(t, svc.ReceiveOrder(context.Background(), received.ID))
	require.ErrorIs(t, svc.SendOrder(context.Background(), received.ID), ErrInvalidTransition)
	require.ErrorIs(t, svc.CancelOrder(context.Background(), received.ID), ErrInvalidTransition)

	cancelled := mustCreateOrder(t, svc)
	require.NoError(t, svc.CancelOrder(context.Background(), cancelled.ID))
	require.ErrorIs(t, svc.SendOrder(context.Background(), cancelled.ID), ErrInvalidTransition)
	require.ErrorIs(t, svc.ReceiveOrder(context.Background(), cancelled.ID), ErrInvalidTransition)
	require.ErrorIs(t, svc.CancelOrder(context.Background(), cancelled.ID), ErrInvalidTransition)
}

func TestDeleteOrderOnlyDraftWithoutLiveInvoices(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	sent := mustCreateOrder(t, svc)
	require.NoError(t, svc.SendOrder(context.Background(), sent.ID))
	require.ErrorIs(t, svc.DeleteOrder(context.Background(), sent.ID), ErrInvalidTransition)

	draft := mustCreateOrder(t, svc)
	repo.state.invoices[600] = billing.SupplierInvoice{ID: 600, OrderID: draft.ID, Status: billing.InvoicePending}
	require.ErrorIs(t, svc.DeleteOrder(context.Background(), draft.ID), ErrOrderHasInvoices)

	inv := repo.state.invoices[600]
	inv.Status = billing.InvoiceCancelled
	repo.state.invoices[600] = inv
	require.NoError(t, svc.DeleteOrder(context.Background(), draft.ID))
	_, err := repo.GetOrder(context.Background(), draft.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSupplierBalanceConvention(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	draft := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("100.00")})
	_ = draft

	sent := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("40.00")})
	require.NoError(t, svc.SendOrder(context.Background(), sent.ID))

	seedPart(repo, 1, "30.00", 0)
	received := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("30.00")})
	require.NoError(t, svc.SendOrder(context.Background(), received.ID))
	require.NoError(t, svc.ReceiveOrder(context.Background(), received.ID))

	balance, err := svc.SupplierBalance(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, balance.TotalOwed.Equal(decimal.RequireFromString("140.00")), "owed %s", balance.TotalOwed)
	require.True(t, balance.TotalPaid.Equal(decimal.RequireFromString("30.00")), "paid %s", balance.TotalPaid)
	require.True(t, balance.Balance.Equal(decimal.RequireFromString("110.00")), "balance %s", balance.Balance)

	_, err = svc.SupplierBalance(context.Background(), 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDashboardSummary(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	_ = mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("10.00")})
	sent := mustCreateOrder(t, svc, ItemInput{PartID: 1, Qty: 1, UnitCost: decimal.RequireFromString("20.00")})
	require.NoError(t, svc.SendOrder(context.Background(), sent.ID))
	cancelled := mustCreateOrder(t, svc)
	require.NoError(t, svc.CancelOrder(context.Background(), cancelled.ID))

	summary, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.DraftCount)
	require.Equal(t, 1, summary.SentCount)
	require.Equal(t, 1, summary.CancelledCount)
	require.Zero(t, summary.ReceivedCount)
	require.True(t, summary.Outstanding.Equal(decimal.RequireFromString("30.00")), "got %s", summary.Outstanding)
}

func TestAuditEntriesCarryActor(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit := newTestService(repo)

	ctx := shared.ContextWithActor(context.Background(), shared.Actor{Name: "sam", IP: "192.168.1.4"})
	order := mustCreateOrder(t, svc)
	require.NoError(t, svc.SendOrder(ctx, order.ID))

	var found bool
	for _, entry := range audit.entries {
		if entry.Action == "PO_STATUS" {
			found = true
			require.Equal(t, "sam", entry.Actor)
			require.Equal(t, "192.168.1.4", entry.IP)
			require.Equal(t, "purchase_orders", entry.Entity)
		}
	}
	require.True(t, found)
}

func TestGetOrderReturnsItems(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	order := mustCreateOrder(t, svc,
		ItemInput{PartID: 1, Qty: 2, UnitCost: decimal.RequireFromString("3.00")},
		ItemInput{PartID: 2, Qty: 1, UnitCost: decimal.RequireFromString("4.00")},
	)

	got, items, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
	require.Len(t, items, 2)

	_, _, err = svc.GetOrder(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionGuardTable(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusReceived, false},
		{StatusSent, StatusReceived, true},
		{StatusSent, StatusCancelled, true},
		{StatusSent, StatusDraft, false},
		{StatusReceived, StatusCancelled, false},
		{StatusCancelled, StatusSent, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	require.True(t, StatusReceived.IsTerminal())
	require.True(t, StatusCancelled.IsTerminal())
	require.False(t, StatusDraft.IsTerminal())
	require.False(t, StatusSent.IsTerminal())
}
