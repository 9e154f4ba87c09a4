package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msa-suite/msa-suite/internal/billing"
	"github.com/msa-suite/msa-suite/internal/inventory"
	"github.com/msa-suite/msa-suite/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	GetItem(ctx context.Context, itemID int64) (OrderItem, error)
	ListOrders(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]OrderListItem, int, error)
	ListSupplierOrders(ctx context.Context, supplierID int64) ([]PurchaseOrder, error)
	CountByStatus(ctx context.Context) (map[OrderStatus]int, error)
	OutstandingTotal(ctx context.Context) (decimal.Decimal, error)
}

// TxRepository exposes the transactional operations of a status transition,
// including its inventory and invoice side effects. Everything invoked through
// one TxRepository commits or rolls back as a unit.
type TxRepository interface {
	NextOrderSequence(ctx context.Context, branchID int64, date time.Time) (int, error)
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	UpdateItem(ctx context.Context, item OrderItem) error
	DeleteItem(ctx context.Context, itemID int64) error
	OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	SetOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	SetOrderStatus(ctx context.Context, orderID int64, from, to OrderStatus, receivedDate *time.Time) error
	SetItemReceivedQty(ctx context.Context, itemID, qty int64) error
	DeleteOrder(ctx context.Context, orderID int64) error

	GetPartForUpdate(ctx context.Context, partID int64) (inventory.Part, error)
	IncrementStock(ctx context.Context, entry inventory.LedgerEntry) error
	UpdatePartCost(ctx context.Context, partID int64, cost decimal.Decimal) error
	AppendPriceHistory(ctx context.Context, change inventory.PriceChange) error

	InvoiceExistsForOrder(ctx context.Context, orderID int64) (bool, error)
	CreateInvoice(ctx context.Context, inv billing.SupplierInvoice) (int64, error)
	OrderInvoices(ctx context.Context, orderID int64) ([]billing.SupplierInvoice, error)
	SetInvoiceStatus(ctx context.Context, invoiceID int64, status billing.InvoiceStatus) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo         RepositoryPort
	audit        AuditPort
	integration  IntegrationHandler
	balances     *BalanceCalculator
	numberPrefix string
	invoiceTerm  time.Duration
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	NumberPrefix   string
	InvoiceDueTerm time.Duration
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, audit AuditPort, balances *BalanceCalculator, integration IntegrationHandler, cfg ServiceConfig) *Service {
	prefix := cfg.NumberPrefix
	if prefix == "" {
		prefix = "PO"
	}
	term := cfg.InvoiceDueTerm
	if term <= 0 {
		term = 30 * 24 * time.Hour
	}
	return &Service{repo: repo, audit: audit, balances: balances, integration: integration, numberPrefix: prefix, invoiceTerm: term}
}

// ItemInput describes one order line payload.
type ItemInput struct {
	PartID   int64           `json:"part_id"`
	Qty      int64           `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

func (in ItemInput) validate() error {
	if in.PartID == 0 || in.Qty <= 0 {
		return ErrValidation
	}
	if in.UnitCost.IsNegative() {
		return ErrValidation
	}
	return nil
}

// CreateOrderInput describes the order creation payload.
type CreateOrderInput struct {
	SupplierID   int64
	BranchID     int64
	ExpectedDate *time.Time
	Notes        string
	Items        []ItemInput
}

// CreateOrder persists a new draft order, numbering it from the branch's
// daily sequence. Items are optional at creation time.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if input.SupplierID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier required", ErrValidation)
	}
	if input.BranchID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: branch required", ErrValidation)
	}
	for _, item := range input.Items {
		if err := item.validate(); err != nil {
			return PurchaseOrder{}, err
		}
	}
	now := time.Now().UTC()
	order := PurchaseOrder{
		SupplierID:   input.SupplierID,
		BranchID:     input.BranchID,
		Status:       StatusDraft,
		TotalAmount:  decimal.Zero,
		ExpectedDate: input.ExpectedDate,
		Notes:        input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextOrderSequence(ctx, input.BranchID, now)
		if err != nil {
			return err
		}
		order.Number = FormatOrderNumber(s.numberPrefix, input.BranchID, now, seq)
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for _, item := range input.Items {
			if _, err := tx.InsertItem(ctx, OrderItem{OrderID: orderID, PartID: item.PartID, Qty: item.Qty, UnitCost: item.UnitCost}); err != nil {
				return err
			}
		}
		total, err := s.recalcTotal(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order.TotalAmount = total
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", order.ID, nil, orderSnapshot(order))
	s.invalidateBalance(ctx, order.SupplierID)
	return order, nil
}

// AddItem appends a line to a draft order and recomputes the total.
func (s *Service) AddItem(ctx context.Context, orderID int64, input ItemInput) (OrderItem, error) {
	if err := input.validate(); err != nil {
		return OrderItem{}, err
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return OrderItem{}, err
	}
	if order.Status != StatusDraft {
		return OrderItem{}, ErrOrderNotEditable
	}
	item := OrderItem{OrderID: orderID, PartID: input.PartID, Qty: input.Qty, UnitCost: input.UnitCost}
	var total decimal.Decimal
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		total, err = s.recalcTotal(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return OrderItem{}, err
	}
	s.recordAudit(ctx, "PO_ITEM_ADD", orderID,
		map[string]any{"total_amount": order.TotalAmount.StringFixed(2)},
		map[string]any{"part_id": item.PartID, "qty": item.Qty, "unit_cost": item.UnitCost.StringFixed(2), "total_amount": total.StringFixed(2)})
	s.invalidateBalance(ctx, order.SupplierID)
	return item, nil
}

// UpdateItem changes quantity or unit cost of a draft order line.
func (s *Service) UpdateItem(ctx context.Context, itemID int64, input ItemInput) (OrderItem, error) {
	if err := input.validate(); err != nil {
		return OrderItem{}, err
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return OrderItem{}, err
	}
	order, err := s.repo.GetOrder(ctx, item.OrderID)
	if err != nil {
		return OrderItem{}, err
	}
	if order.Status != StatusDraft {
		return OrderItem{}, ErrOrderNotEditable
	}
	old := item
	item.PartID = input.PartID
	item.Qty = input.Qty
	item.UnitCost = input.UnitCost
	var total decimal.Decimal
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		total, err = s.recalcTotal(ctx, tx, item.OrderID)
		return err
	})
	if err != nil {
		return OrderItem{}, err
	}
	s.recordAudit(ctx, "PO_ITEM_UPDATE", item.OrderID,
		map[string]any{"qty": old.Qty, "unit_cost": old.UnitCost.StringFixed(2)},
		map[string]any{"qty": item.Qty, "unit_cost": item.UnitCost.StringFixed(2), "total_amount": total.StringFixed(2)})
	s.invalidateBalance(ctx, order.SupplierID)
	return item, nil
}

// RemoveItem deletes a draft order line and recomputes the total.
func (s *Service) RemoveItem(ctx context.Context, itemID int64) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	order, err := s.repo.GetOrder(ctx, item.OrderID)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft {
		return ErrOrderNotEditable
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		_, err := s.recalcTotal(ctx, tx, item.OrderID)
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_ITEM_REMOVE", item.OrderID,
		map[string]any{"part_id": item.PartID, "qty": item.Qty, "unit_cost": item.UnitCost.StringFixed(2)}, nil)
	s.invalidateBalance(ctx, order.SupplierID)
	return nil
}

// SendOrder transitions a draft order to SENT and ensures exactly one
// supplier invoice exists for it.
func (s *Service) SendOrder(ctx context.Context, orderID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(order.Status, StatusSent) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, StatusSent)
	}
	now := time.Now().UTC()
	invoiceNumber := InvoiceNumberFor(order.Number)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SetOrderStatus(ctx, orderID, order.Status, StatusSent, nil); err != nil {
			return err
		}
		exists, err := tx.InvoiceExistsForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		_, err = tx.CreateInvoice(ctx, billing.SupplierInvoice{
			Number:     invoiceNumber,
			OrderID:    orderID,
			SupplierID: order.SupplierID,
			Status:     billing.InvoicePending,
			Subtotal:   order.TotalAmount,
			Discount:   decimal.Zero,
			Shipping:   decimal.Zero,
			IssuedAt:   now,
			DueAt:      now.Add(s.invoiceTerm),
		})
		return err
	})
	if err != nil {
		return err
	}
	s.recordStatusAudit(ctx, orderID, order.Status, StatusSent)
	s.invalidateBalance(ctx, order.SupplierID)
	if s.integration != nil {
		_ = s.integration.HandleOrderSent(ctx, OrderSentEvent{
			OrderID:       orderID,
			Number:        order.Number,
			SupplierID:    order.SupplierID,
			Total:         order.TotalAmount,
			InvoiceNumber: invoiceNumber,
			SentAt:        now,
		})
	}
	return nil
}

// ReceiveOrder transitions a sent order to RECEIVED. All inventory side
// effects run in the same transaction: stock increments per line, part cost
// updates with price history when the cost changed, and received quantities.
func (s *Service) ReceiveOrder(ctx context.Context, orderID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(order.Status, StatusReceived) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, StatusReceived)
	}
	actor := shared.ActorFromContext(ctx)
	now := time.Now().UTC()
	var received []OrderItem
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SetOrderStatus(ctx, orderID, order.Status, StatusReceived, &now); err != nil {
			return err
		}
		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			part, err := tx.GetPartForUpdate(ctx, item.PartID)
			if err != nil {
				return err
			}
			refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PO:%d:%d", orderID, item.PartID)))
			if err := tx.IncrementStock(ctx, inventory.LedgerEntry{
				PartID:   item.PartID,
				Delta:    item.Qty,
				RefType:  inventory.RefPurchaseOrder,
				RefID:    refID.String(),
				Note:     fmt.Sprintf("PO %s received", order.Number),
				Actor:    actor.Name,
				PostedAt: now,
			}); err != nil {
				return err
			}
			if !item.UnitCost.Equal(part.Cost) {
				if err := tx.UpdatePartCost(ctx, item.PartID, item.UnitCost); err != nil {
					return err
				}
				if err := tx.AppendPriceHistory(ctx, inventory.PriceChange{
					PartID:    item.PartID,
					OldCost:   part.Cost,
					NewCost:   item.UnitCost,
					Reason:    fmt.Sprintf("purchase order %s receipt", order.Number),
					ChangedAt: now,
				}); err != nil {
					return err
				}
			}
			if err := tx.SetItemReceivedQty(ctx, item.ID, item.Qty); err != nil {
				return err
			}
		}
		received = items
		return nil
	})
	if err != nil {
		return err
	}
	s.recordStatusAudit(ctx, orderID, order.Status, StatusReceived)
	s.invalidateBalance(ctx, order.SupplierID)
	if s.integration != nil {
		evt := OrderReceivedEvent{OrderID: orderID, Number: order.Number, SupplierID: order.SupplierID, ReceivedAt: now}
		for _, item := range received {
			evt.Items = append(evt.Items, ItemEvent{PartID: item.PartID, Qty: item.Qty, UnitCost: item.UnitCost})
		}
		_ = s.integration.HandleOrderReceived(ctx, evt)
	}
	return nil
}

// CancelOrder transitions a draft or sent order to CANCELLED, clearing the
// received date and forcing every non-terminal supplier invoice of the order
// to CANCELLED.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(order.Status, StatusCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, StatusCancelled)
	}
	var cancelledInvoices []billing.SupplierInvoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SetOrderStatus(ctx, orderID, order.Status, StatusCancelled, nil); err != nil {
			return err
		}
		invoices, err := tx.OrderInvoices(ctx, orderID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.Status.IsTerminal() {
				continue
			}
			if err := tx.SetInvoiceStatus(ctx, inv.ID, billing.InvoiceCancelled); err != nil {
				return err
			}
			cancelledInvoices = append(cancelledInvoices, inv)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordStatusAudit(ctx, orderID, order.Status, StatusCancelled)
	for _, inv := range cancelledInvoices {
		s.recordAudit(ctx, "INVOICE_CANCEL", inv.ID,
			map[string]any{"status": string(inv.Status)},
			map[string]any{"status": string(billing.InvoiceCancelled), "number": inv.Number})
	}
	s.invalidateBalance(ctx, order.SupplierID)
	if s.integration != nil {
		_ = s.integration.HandleOrderCancelled(ctx, OrderCancelledEvent{
			OrderID:     orderID,
			Number:      order.Number,
			SupplierID:  order.SupplierID,
			CancelledAt: time.Now().UTC(),
		})
	}
	return nil
}

// DeleteOrder removes a draft order and its items. Orders with live supplier
// invoices cannot be deleted.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusDraft {
		return fmt.Errorf("%w: only draft orders can be deleted", ErrInvalidTransition)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoices, err := tx.OrderInvoices(ctx, orderID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if inv.Status != billing.InvoiceCancelled {
				return ErrOrderHasInvoices
			}
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_DELETE", orderID, orderSnapshot(order), nil)
	s.invalidateBalance(ctx, order.SupplierID)
	return nil
}

// GetOrder returns the order header with its items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (PurchaseOrder, []OrderItem, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	items, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return order, items, nil
}

// ListOrders returns a filtered page of orders.
func (s *Service) ListOrders(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]OrderListItem, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListOrders(ctx, limit, offset, filters)
}

// recalcTotal sums qty * unit cost over the order's current items and
// persists the result as the order total.
func (s *Service) recalcTotal(ctx context.Context, tx TxRepository, orderID int64) (decimal.Decimal, error) {
	items, err := tx.OrderItems(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	if err := tx.SetOrderTotal(ctx, orderID, total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Service) recordStatusAudit(ctx context.Context, orderID int64, from, to OrderStatus) {
	s.recordAudit(ctx, "PO_STATUS", orderID,
		map[string]any{"status": string(from)},
		map[string]any{"status": string(to)})
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, oldData, newData map[string]any) {
	if s.audit == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditEntry{
		Actor:    actor.Name,
		Action:   action,
		Entity:   "purchase_orders",
		EntityID: fmt.Sprintf("%d", entityID),
		OldData:  oldData,
		NewData:  newData,
		IP:       actor.IP,
	})
}

func (s *Service) invalidateBalance(ctx context.Context, supplierID int64) {
	if s.balances == nil {
		return
	}
	s.balances.Invalidate(ctx, supplierID)
}

func orderSnapshot(order PurchaseOrder) map[string]any {
	return map[string]any{
		"number":       order.Number,
		"supplier_id":  order.SupplierID,
		"branch_id":    order.BranchID,
		"status":       string(order.Status),
		"total_amount": order.TotalAmount.StringFixed(2),
	}
}
