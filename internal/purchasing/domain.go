package purchasing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates purchase order lifecycle statuses.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "DRAFT"
	StatusSent      OrderStatus = "SENT"
	StatusReceived  OrderStatus = "RECEIVED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// transitions defines the legal status adjacency set. RECEIVED and CANCELLED
// are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusDraft: {StatusSent, StatusCancelled},
	StatusSent:  {StatusReceived, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status accepts no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// PurchaseOrder is the order header. TotalAmount is derived from the items
// and recomputed after every item mutation.
type PurchaseOrder struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	SupplierID   int64           `json:"supplier_id"`
	BranchID     int64           `json:"branch_id"`
	Status       OrderStatus     `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ExpectedDate *time.Time      `json:"expected_date,omitempty"`
	ReceivedDate *time.Time      `json:"received_date,omitempty"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderItem is one (part, quantity, unit cost) row attached to an order.
// ReceivedQty stays zero until the order is received, then equals Qty.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	PartID      int64           `json:"part_id"`
	Qty         int64           `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	ReceivedQty int64           `json:"received_qty"`
}

// LineTotal returns qty * unit cost.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(i.Qty))
}

// SupplierBalance summarises a supplier's order totals by lifecycle stage.
// Open (draft or sent) orders count as owed, received orders as paid.
type SupplierBalance struct {
	SupplierID int64           `json:"supplier_id"`
	TotalOwed  decimal.Decimal `json:"total_owed"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
	Balance    decimal.Decimal `json:"balance"`
}

// DashboardSummary aggregates order counts and outstanding totals.
type DashboardSummary struct {
	DraftCount     int             `json:"draft_count"`
	SentCount      int             `json:"sent_count"`
	ReceivedCount  int             `json:"received_count"`
	CancelledCount int             `json:"cancelled_count"`
	Outstanding    decimal.Decimal `json:"outstanding"`
}

var (
	// ErrNotFound indicates a missing order or item.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchasing: invalid input")
	// ErrInvalidTransition occurs when a status change violates the adjacency set.
	ErrInvalidTransition = errors.New("purchasing: invalid status transition")
	// ErrOrderNotEditable occurs when items are mutated outside DRAFT.
	ErrOrderNotEditable = errors.New("purchasing: order items editable only in draft")
	// ErrOrderHasInvoices blocks deletion of orders with live supplier invoices.
	ErrOrderHasInvoices = errors.New("purchasing: order has supplier invoices")
)
