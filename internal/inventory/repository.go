package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msa-suite/msa-suite/internal/platform/db"
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

const partColumns = `id, sku, name, cost, stock, created_at, updated_at`

func scanPart(row pgx.Row) (Part, error) {
	var part Part
	err := row.Scan(&part.ID, &part.SKU, &part.Name, &part.Cost, &part.Stock, &part.CreatedAt, &part.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Part{}, ErrPartNotFound
		}
		return Part{}, err
	}
	return part, nil
}

// GetPart returns a part by id.
func (r *Repository) GetPart(ctx context.Context, id int64) (Part, error) {
	return scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id = $1`, id))
}

// ListParts returns a page of parts matching the search term.
func (r *Repository) ListParts(ctx context.Context, limit, offset int, search string) ([]Part, int, error) {
	countSQL := `SELECT COUNT(*) FROM parts`
	dataSQL := `SELECT ` + partColumns + ` FROM parts`
	args := []any{}
	if search != "" {
		countSQL += ` WHERE sku ILIKE $1 OR name ILIKE $1`
		dataSQL += ` WHERE sku ILIKE $1 OR name ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	dataSQL += ` ORDER BY sku`
	if search != "" {
		dataSQL += ` LIMIT $2 OFFSET $3`
	} else {
		dataSQL += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var parts []Part
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, 0, err
		}
		parts = append(parts, part)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return parts, total, nil
}

// StockLedger lists movements for a part, newest first.
func (r *Repository) StockLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	sql := `SELECT id, part_id, delta, ref_type, ref_id, note, actor, posted_at FROM stock_ledger WHERE part_id = $1`
	args := []any{filter.PartID}
	argNum := 2
	if filter.RefType != "" {
		sql += ` AND ref_type = $2`
		args = append(args, string(filter.RefType))
		argNum++
	}
	if !filter.From.IsZero() {
		sql += fmt.Sprintf(` AND posted_at >= $%d`, argNum)
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		sql += fmt.Sprintf(` AND posted_at < $%d`, argNum)
		args = append(args, filter.To)
		argNum++
	}
	sql += fmt.Sprintf(` ORDER BY posted_at DESC LIMIT $%d`, argNum)
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []LedgerEntry
	for rows.Next() {
		var entry LedgerEntry
		var refType string
		if err := rows.Scan(&entry.ID, &entry.PartID, &entry.Delta, &refType, &entry.RefID, &entry.Note, &entry.Actor, &entry.PostedAt); err != nil {
			return nil, err
		}
		entry.RefType = ReferenceType(refType)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PriceHistory lists cost changes for a part, newest first.
func (r *Repository) PriceHistory(ctx context.Context, partID int64, limit int) ([]PriceChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, part_id, old_cost, new_cost, reason, changed_at
FROM price_history WHERE part_id = $1 ORDER BY changed_at DESC LIMIT $2`, partID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var changes []PriceChange
	for rows.Next() {
		var change PriceChange
		if err := rows.Scan(&change.ID, &change.PartID, &change.OldCost, &change.NewCost, &change.Reason, &change.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

// Transactional operations

func (t *txRepo) CreatePart(ctx context.Context, part Part) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO parts (sku, name, cost, stock) VALUES ($1, $2, $3, 0) RETURNING id`,
		part.SKU, part.Name, part.Cost).Scan(&id)
	return id, err
}

func (t *txRepo) UpdatePart(ctx context.Context, part Part) error {
	tag, err := t.tx.Exec(ctx, `UPDATE parts SET sku = $1, name = $2, cost = $3, updated_at = NOW() WHERE id = $4`,
		part.SKU, part.Name, part.Cost, part.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPartNotFound
	}
	return nil
}

func (t *txRepo) GetPartForUpdate(ctx context.Context, id int64) (Part, error) {
	return scanPart(t.tx.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) ApplyStockDelta(ctx context.Context, partID, delta int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE parts SET stock = stock + $1, updated_at = NOW() WHERE id = $2`, delta, partID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPartNotFound
	}
	return nil
}

func (t *txRepo) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_ledger (part_id, delta, ref_type, ref_id, note, actor, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.PartID, entry.Delta, string(entry.RefType), entry.RefID, entry.Note, entry.Actor, entry.PostedAt)
	return err
}

func (t *txRepo) AppendPriceHistory(ctx context.Context, change PriceChange) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO price_history (part_id, old_cost, new_cost, reason, changed_at)
VALUES ($1, $2, $3, $4, $5)`,
		change.PartID, change.OldCost, change.NewCost, change.Reason, change.ChangedAt)
	return err
}
