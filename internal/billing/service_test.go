package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/msa-suite/msa-suite/internal/shared"
)

type memoryBillingRepo struct {
	invoices map[int64]SupplierInvoice
	payments map[int64][]SupplierPayment
	nextID   int64
}

type memoryBillingTx struct {
	repo *memoryBillingRepo
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{
		invoices: make(map[int64]SupplierInvoice),
		payments: make(map[int64][]SupplierPayment),
	}
}

func (r *memoryBillingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryBillingTx{repo: r})
}

func (r *memoryBillingRepo) GetInvoice(ctx context.Context, id int64) (SupplierInvoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return SupplierInvoice{}, ErrNotFound
	}
	return inv, nil
}

func (r *memoryBillingRepo) ListInvoices(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]SupplierInvoice, int, error) {
	var invoices []SupplierInvoice
	for _, inv := range r.invoices {
		if filters.Status != "" && string(inv.Status) != filters.Status {
			continue
		}
		if filters.SupplierID != 0 && inv.SupplierID != filters.SupplierID {
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices, len(invoices), nil
}

func (r *memoryBillingRepo) ListPayments(ctx context.Context, invoiceID int64) ([]SupplierPayment, error) {
	return append([]SupplierPayment(nil), r.payments[invoiceID]...), nil
}

func (t *memoryBillingTx) GetInvoiceForUpdate(ctx context.Context, id int64) (SupplierInvoice, error) {
	return t.repo.GetInvoice(ctx, id)
}

func (t *memoryBillingTx) SetInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	inv, ok := t.repo.invoices[invoiceID]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	t.repo.invoices[invoiceID] = inv
	return nil
}

func (t *memoryBillingTx) InsertPayment(ctx context.Context, payment SupplierPayment) (int64, error) {
	t.repo.nextID++
	payment.ID = t.repo.nextID
	t.repo.payments[payment.InvoiceID] = append(t.repo.payments[payment.InvoiceID], payment)
	return payment.ID, nil
}

type billingAudit struct {
	entries []shared.AuditEntry
}

func (a *billingAudit) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func seedInvoice(repo *memoryBillingRepo, id int64, status InvoiceStatus, subtotal string) {
	now := time.Now()
	repo.invoices[id] = SupplierInvoice{
		ID:         id,
		Number:     "INV-PO1-20260314-0001",
		OrderID:    1,
		SupplierID: 7,
		Status:     status,
		Subtotal:   decimal.RequireFromString(subtotal),
		IssuedAt:   now,
		DueAt:      now.Add(30 * 24 * time.Hour),
	}
}

func TestMarkPaidRecordsPaymentAndClosesInvoice(t *testing.T) {
	repo := newMemoryBillingRepo()
	audit := &billingAudit{}
	svc := NewService(repo, audit)
	seedInvoice(repo, 1, InvoicePending, "55.00")

	inv, err := svc.MarkPaid(context.Background(), MarkPaidInput{InvoiceID: 1, Method: "bank transfer"})
	require.NoError(t, err)
	require.Equal(t, InvoicePaid, inv.Status)

	payments, err := svc.ListPayments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	// Zero amount defaults to the invoice total.
	require.True(t, payments[0].Amount.Equal(decimal.RequireFromString("55.00")))
	require.Equal(t, "bank transfer", payments[0].Method)

	require.Len(t, audit.entries, 1)
	require.Equal(t, "INVOICE_PAID", audit.entries[0].Action)
}

func TestMarkPaidExplicitAmount(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := NewService(repo, nil)
	seedInvoice(repo, 1, InvoicePending, "55.00")

	_, err := svc.MarkPaid(context.Background(), MarkPaidInput{InvoiceID: 1, Amount: decimal.RequireFromString("20.00")})
	require.NoError(t, err)

	payments, _ := svc.ListPayments(context.Background(), 1)
	require.Len(t, payments, 1)
	require.True(t, payments[0].Amount.Equal(decimal.RequireFromString("20.00")))
}

func TestMarkPaidRejectsTerminalInvoices(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := NewService(repo, nil)
	seedInvoice(repo, 1, InvoicePaid, "10.00")
	seedInvoice(repo, 2, InvoiceCancelled, "10.00")

	_, err := svc.MarkPaid(context.Background(), MarkPaidInput{InvoiceID: 1})
	require.ErrorIs(t, err, ErrInvoiceClosed)
	_, err = svc.MarkPaid(context.Background(), MarkPaidInput{InvoiceID: 2})
	require.ErrorIs(t, err, ErrInvoiceClosed)

	require.Empty(t, repo.payments[1])
	require.Empty(t, repo.payments[2])
}

func TestMarkPaidValidation(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := NewService(repo, nil)

	_, err := svc.MarkPaid(context.Background(), MarkPaidInput{})
	require.ErrorIs(t, err, ErrNotFound)

	seedInvoice(repo, 1, InvoicePending, "10.00")
	_, err = svc.MarkPaid(context.Background(), MarkPaidInput{InvoiceID: 1, Amount: decimal.RequireFromString("-5.00")})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.MarkPaid(context.Background(), MarkPaidInput{InvoiceID: 404})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInvoiceTotal(t *testing.T) {
	inv := SupplierInvoice{
		Subtotal: decimal.RequireFromString("100.00"),
		Discount: decimal.RequireFromString("10.00"),
		Shipping: decimal.RequireFromString("5.50"),
	}
	require.True(t, inv.Total().Equal(decimal.RequireFromString("95.50")))
}

func TestListInvoicesFilters(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := NewService(repo, nil)
	seedInvoice(repo, 1, InvoicePending, "10.00")
	seedInvoice(repo, 2, InvoicePaid, "20.00")

	pending, total, err := svc.ListInvoices(context.Background(), 10, 0, shared.ListFilters{Status: string(InvoicePending)})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, pending, 1)
	require.Equal(t, InvoicePending, pending[0].Status)
}
