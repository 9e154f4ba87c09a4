package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/msa-suite/msa-suite/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (SupplierInvoice, error)
	ListInvoices(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]SupplierInvoice, int, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]SupplierPayment, error)
}

// TxRepository exposes transactional invoice operations.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (SupplierInvoice, error)
	SetInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error
	InsertPayment(ctx context.Context, payment SupplierPayment) (int64, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service coordinates supplier invoice reads and payment recording.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds the billing service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// GetInvoice returns an invoice with its payments.
func (s *Service) GetInvoice(ctx context.Context, id int64) (SupplierInvoice, []SupplierPayment, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return SupplierInvoice{}, nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return SupplierInvoice{}, nil, err
	}
	return invoice, payments, nil
}

// ListInvoices returns a page of invoices.
func (s *Service) ListInvoices(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]SupplierInvoice, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListInvoices(ctx, limit, offset, filters)
}

// MarkPaidInput describes a payment against an invoice.
type MarkPaidInput struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Method    string
	Note      string
}

// MarkPaid records a payment and closes the invoice. Terminal invoices are
// rejected. A zero amount defaults to the invoice total.
func (s *Service) MarkPaid(ctx context.Context, input MarkPaidInput) (SupplierInvoice, error) {
	if input.InvoiceID == 0 {
		return SupplierInvoice{}, ErrNotFound
	}
	if input.Amount.IsNegative() {
		return SupplierInvoice{}, fmt.Errorf("%w: amount must be >= 0", ErrValidation)
	}
	actor := shared.ActorFromContext(ctx)
	var invoice SupplierInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return ErrInvoiceClosed
		}
		amount := input.Amount
		if amount.IsZero() {
			amount = current.Total()
		}
		if _, err := tx.InsertPayment(ctx, SupplierPayment{
			InvoiceID: current.ID,
			Amount:    amount,
			Method:    input.Method,
			Note:      input.Note,
			PaidAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := tx.SetInvoiceStatus(ctx, current.ID, InvoicePaid); err != nil {
			return err
		}
		invoice = current
		invoice.Status = InvoicePaid
		return nil
	})
	if err != nil {
		return SupplierInvoice{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditEntry{
			Actor:    actor.Name,
			Action:   "INVOICE_PAID",
			Entity:   "supplier_invoices",
			EntityID: fmt.Sprintf("%d", invoice.ID),
			OldData:  map[string]any{"status": string(InvoicePending)},
			NewData:  map[string]any{"status": string(InvoicePaid), "number": invoice.Number},
			IP:       actor.IP,
		})
	}
	return invoice, nil
}

// ListPayments returns payments recorded against an invoice.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]SupplierPayment, error) {
	if invoiceID == 0 {
		return nil, ErrNotFound
	}
	return s.repo.ListPayments(ctx, invoiceID)
}
