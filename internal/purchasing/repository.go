package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/msa-suite/msa-suite/internal/billing"
	"github.com/msa-suite/msa-suite/internal/inventory"
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

const orderColumns = `id, number, supplier_id, branch_id, status, total_amount, expected_date, received_date, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var order PurchaseOrder
	var status string
	err := row.Scan(&order.ID, &order.Number, &order.SupplierID, &order.BranchID, &status,
		&order.TotalAmount, &order.ExpectedDate, &order.ReceivedDate, &order.Notes,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	order.Status = OrderStatus(status)
	return order, nil
}

// GetOrder returns the order header.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrderItems returns the order's line items.
func (r *Repository) GetOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, part_id, qty, unit_cost, received_qty
FROM purchase_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// GetItem returns a single line item.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (OrderItem, error) {
	var item OrderItem
	err := r.pool.QueryRow(ctx, `SELECT id, order_id, part_id, qty, unit_cost, received_qty
FROM purchase_order_items WHERE id = $1`, itemID).
		Scan(&item.ID, &item.OrderID, &item.PartID, &item.Qty, &item.UnitCost, &item.ReceivedQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderItem{}, ErrNotFound
		}
		return OrderItem{}, err
	}
	return item, nil
}

func scanItems(rows pgx.Rows) ([]OrderItem, error) {
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.PartID, &item.Qty, &item.UnitCost, &item.ReceivedQty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListSupplierOrders returns every order of a supplier.
func (r *Repository) ListSupplierOrders(ctx context.Context, supplierID int64) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE supplier_id = $1 ORDER BY created_at`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// CountByStatus returns order counts grouped by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[OrderStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM purchase_orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[OrderStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[OrderStatus(status)] = count
	}
	return counts, rows.Err()
}

// OutstandingTotal sums totals of draft and sent orders.
func (r *Repository) OutstandingTotal(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM purchase_orders WHERE status IN ($1, $2)`,
		string(StatusDraft), string(StatusSent)).Scan(&total)
	return total, err
}

// ListOrders returns orders with supplier names, filtered and paginated.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int, filters shared.ListFilters) ([]OrderListItem, int, error) {
	countSQL := `SELECT COUNT(*) FROM purchase_orders o WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		countSQL += fmt.Sprintf(` AND o.status = $%d`, argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.SupplierID > 0 {
		countSQL += fmt.Sprintf(` AND o.supplier_id = $%d`, argNum)
		args = append(args, filters.SupplierID)
		argNum++
	}
	if filters.BranchID > 0 {
		countSQL += fmt.Sprintf(` AND o.branch_id = $%d`, argNum)
		args = append(args, filters.BranchID)
		argNum++
	}
	if filters.Search != "" {
		countSQL += fmt.Sprintf(` AND o.number ILIKE $%d`, argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT o.id, o.number, o.supplier_id, COALESCE(s.name, '') AS supplier_name,
	o.branch_id, o.status, o.total_amount, o.expected_date, o.created_at
FROM purchase_orders o
LEFT JOIN suppliers s ON s.id = o.supplier_id
WHERE 1=1`

	args2 := []any{}
	argNum2 := 1
	if filters.Status != "" {
		dataSQL += fmt.Sprintf(` AND o.status = $%d`, argNum2)
		args2 = append(args2, filters.Status)
		argNum2++
	}
	if filters.SupplierID > 0 {
		dataSQL += fmt.Sprintf(` AND o.supplier_id = $%d`, argNum2)
		args2 = append(args2, filters.SupplierID)
		argNum2++
	}
	if filters.BranchID > 0 {
		dataSQL += fmt.Sprintf(` AND o.branch_id = $%d`, argNum2)
		args2 = append(args2, filters.BranchID)
		argNum2++
	}
	if filters.Search != "" {
		dataSQL += fmt.Sprintf(` AND o.number ILIKE $%d`, argNum2)
		args2 = append(args2, "%"+filters.Search+"%")
		argNum2++
	}

	dataSQL += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argNum2, argNum2+1)
	args2 = append(args2, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args2...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []OrderListItem
	for rows.Next() {
		var item OrderListItem
		var status string
		if err := rows.Scan(&item.ID, &item.Number, &item.SupplierID, &item.SupplierName,
			&item.BranchID, &status, &item.TotalAmount, &item.ExpectedDate, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		item.Status = OrderStatus(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// sortOrder returns a safe ORDER BY clause for order queries.
func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "o.number " + dir
	case "supplier":
		return "supplier_name " + dir
	case "expected_date":
		return "o.expected_date " + dir
	case "total":
		return "o.total_amount " + dir
	case "status":
		return "o.status " + dir
	default:
		return "o.created_at DESC"
	}
}

// Transactional operations

// NextOrderSequence returns max existing suffix + 1 for the branch and day.
// A count would regenerate a live number after a draft deletion.
func (t *txRepo) NextOrderSequence(ctx context.Context, branchID int64, date time.Time) (int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	var seq int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(split_part(number, '-', 3)::int), 0) + 1
FROM purchase_orders WHERE branch_id = $1 AND created_at >= $2 AND created_at < $3`,
		branchID, dayStart, dayStart.Add(24*time.Hour)).Scan(&seq)
	return seq, err
}

func (t *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, supplier_id, branch_id, status, total_amount, expected_date, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		order.Number, order.SupplierID, order.BranchID, string(order.Status), order.TotalAmount, order.ExpectedDate, order.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (order_id, part_id, qty, unit_cost, received_qty)
VALUES ($1, $2, $3, $4, 0) RETURNING id`,
		item.OrderID, item.PartID, item.Qty, item.UnitCost).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateItem(ctx context.Context, item OrderItem) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET part_id = $1, qty = $2, unit_cost = $3 WHERE id = $4`,
		item.PartID, item.Qty, item.UnitCost, item.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, order_id, part_id, qty, unit_cost, received_qty
FROM purchase_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (t *txRepo) SetOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET total_amount = $1, updated_at = NOW() WHERE id = $2`, total, orderID)
	return err
}

// SetOrderStatus flips the order status only when the row still holds the
// status the caller observed, so a racing transition loses cleanly instead of
// re-running side effects.
func (t *txRepo) SetOrderStatus(ctx context.Context, orderID int64, from, to OrderStatus, receivedDate *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, received_date = $2, updated_at = NOW() WHERE id = $3 AND status = $4`,
		string(to), receivedDate, orderID, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order is no longer %s", ErrInvalidTransition, from)
	}
	return nil
}

func (t *txRepo) SetItemReceivedQty(ctx context.Context, itemID, qty int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET received_qty = $1 WHERE id = $2`, qty, itemID)
	return err
}

func (t *txRepo) DeleteOrder(ctx context.Context, orderID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1 AND status = $2`, orderID, string(StatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order is no longer a draft", ErrInvalidTransition)
	}
	return nil
}

func (t *txRepo) GetPartForUpdate(ctx context.Context, partID int64) (inventory.Part, error) {
	var part inventory.Part
	err := t.tx.QueryRow(ctx, `SELECT id, sku, name, cost, stock, created_at, updated_at FROM parts WHERE id = $1 FOR UPDATE`, partID).
		Scan(&part.ID, &part.SKU, &part.Name, &part.Cost, &part.Stock, &part.CreatedAt, &part.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return inventory.Part{}, inventory.ErrPartNotFound
		}
		return inventory.Part{}, err
	}
	return part, nil
}

func (t *txRepo) IncrementStock(ctx context.Context, entry inventory.LedgerEntry) error {
	if _, err := t.tx.Exec(ctx, `UPDATE parts SET stock = stock + $1, updated_at = NOW() WHERE id = $2`, entry.Delta, entry.PartID); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_ledger (part_id, delta, ref_type, ref_id, note, actor, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.PartID, entry.Delta, string(entry.RefType), entry.RefID, entry.Note, entry.Actor, entry.PostedAt)
	return err
}

func (t *txRepo) UpdatePartCost(ctx context.Context, partID int64, cost decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE parts SET cost = $1, updated_at = NOW() WHERE id = $2`, cost, partID)
	return err
}

func (t *txRepo) AppendPriceHistory(ctx context.Context, change inventory.PriceChange) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO price_history (part_id, old_cost, new_cost, reason, changed_at)
VALUES ($1, $2, $3, $4, $5)`,
		change.PartID, change.OldCost, change.NewCost, change.Reason, change.ChangedAt)
	return err
}

func (t *txRepo) InvoiceExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM supplier_invoices WHERE order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

func (t *txRepo) CreateInvoice(ctx context.Context, inv billing.SupplierInvoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO supplier_invoices (number, order_id, supplier_id, status, subtotal, discount, shipping, issued_at, due_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		inv.Number, inv.OrderID, inv.SupplierID, string(inv.Status), inv.Subtotal, inv.Discount, inv.Shipping, inv.IssuedAt, inv.DueAt).Scan(&id)
	return id, err
}

func (t *txRepo) OrderInvoices(ctx context.Context, orderID int64) ([]billing.SupplierInvoice, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, number, order_id, supplier_id, status, subtotal, discount, shipping, issued_at, due_at, created_at, updated_at
FROM supplier_invoices WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []billing.SupplierInvoice
	for rows.Next() {
		var inv billing.SupplierInvoice
		var status string
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.SupplierID, &status,
			&inv.Subtotal, &inv.Discount, &inv.Shipping, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		inv.Status = billing.InvoiceStatus(status)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (t *txRepo) SetInvoiceStatus(ctx context.Context, invoiceID int64, status billing.InvoiceStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE supplier_invoices SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrNotFound
	}
	return nil
}
