package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msa-suite/msa-suite/internal/platform/db"
	"github.com/msa-suite/msa-suite/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const invoiceColumns = `id, number, order_id, supplier_id, status, subtotal, discount, shipping, issued_at, due_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (SupplierInvoice, error) {
	var inv SupplierInvoice
	var status string
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.SupplierID, &status,
		&inv.Subtotal, &inv.Discount, &inv.Shipping, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierInvoice{}, ErrNotFound
		}
		return SupplierInvoice{}, err
	}
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

// GetInvoice returns an invoice by id.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (SupplierInvoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM supplier_invoices WHERE id = $1`, id))
}

// ListInvoices returns a page of invoices matching the filters.
func (r *Repository) ListInvoices(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]SupplierInvoice, int, error) {
	countSQL := `SELECT COUNT(*) FROM supplier_invoices WHERE 1=1`
	dataSQL := `SELECT ` + invoiceColumns + ` FROM supplier_invoices WHERE 1=1`
	countArgs := []any{}
	argNum := 1
	if filters.Status != "" {
		countSQL += fmt.Sprintf(` AND status = $%d`, argNum)
		countArgs = append(countArgs, filters.Status)
		argNum++
	}
	if filters.SupplierID != 0 {
		countSQL += fmt.Sprintf(` AND supplier_id = $%d`, argNum)
		countArgs = append(countArgs, filters.SupplierID)
		argNum++
	}
	if filters.Search != "" {
		countSQL += fmt.Sprintf(` AND number ILIKE $%d`, argNum)
		countArgs = append(countArgs, "%"+filters.Search+"%")
		argNum++
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataArgs := []any{}
	argNum2 := 1
	if filters.Status != "" {
		dataSQL += fmt.Sprintf(` AND status = $%d`, argNum2)
		dataArgs = append(dataArgs, filters.Status)
		argNum2++
	}
	if filters.SupplierID != 0 {
		dataSQL += fmt.Sprintf(` AND supplier_id = $%d`, argNum2)
		dataArgs = append(dataArgs, filters.SupplierID)
		argNum2++
	}
	if filters.Search != "" {
		dataSQL += fmt.Sprintf(` AND number ILIKE $%d`, argNum2)
		dataArgs = append(dataArgs, "%"+filters.Search+"%")
		argNum2++
	}
	dataSQL += fmt.Sprintf(` ORDER BY issued_at DESC, id DESC LIMIT $%d OFFSET $%d`, argNum2, argNum2+1)
	dataArgs = append(dataArgs, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var invoices []SupplierInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// ListPayments returns payments for an invoice, newest first.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]SupplierPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, amount, method, note, paid_at
FROM supplier_payments WHERE invoice_id = $1 ORDER BY paid_at DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []SupplierPayment
	for rows.Next() {
		var payment SupplierPayment
		if err := rows.Scan(&payment.ID, &payment.InvoiceID, &payment.Amount, &payment.Method, &payment.Note, &payment.PaidAt); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// Transactional operations

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (SupplierInvoice, error) {
	return scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM supplier_invoices WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) SetInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE supplier_invoices SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, payment SupplierPayment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO supplier_payments (invoice_id, amount, method, note, paid_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		payment.InvoiceID, payment.Amount, payment.Method, payment.Note, payment.PaidAt).Scan(&id)
	return id, err
}
