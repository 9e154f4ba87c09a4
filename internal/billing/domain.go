package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates supplier invoice statuses. PAID and CANCELLED are
// terminal.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "PENDING"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// IsTerminal reports whether an invoice accepts no further status changes.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

// SupplierInvoice is a billing record owed to a supplier, created when the
// originating purchase order is sent.
type SupplierInvoice struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	OrderID    int64           `json:"order_id"`
	SupplierID int64           `json:"supplier_id"`
	Status     InvoiceStatus   `json:"status"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Shipping   decimal.Decimal `json:"shipping"`
	IssuedAt   time.Time       `json:"issued_at"`
	DueAt      time.Time       `json:"due_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Total returns subtotal minus discount plus shipping.
func (i SupplierInvoice) Total() decimal.Decimal {
	return i.Subtotal.Sub(i.Discount).Add(i.Shipping)
}

// SupplierPayment records money actually paid against an invoice.
type SupplierPayment struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Note      string          `json:"note"`
	PaidAt    time.Time       `json:"paid_at"`
}

var (
	// ErrNotFound indicates a missing invoice or payment.
	ErrNotFound = errors.New("billing: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("billing: invalid input")
	// ErrInvoiceClosed occurs when paying a terminal invoice.
	ErrInvoiceClosed = errors.New("billing: invoice already paid or cancelled")
)
