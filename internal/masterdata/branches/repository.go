package branches

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates a missing branch.
var ErrNotFound = errors.New("branches: not found")

// ErrInUse indicates the branch is referenced by purchase orders.
var ErrInUse = errors.New("branches: referenced by purchase orders")

type Repository interface {
	List(ctx context.Context) ([]Branch, error)
	Get(ctx context.Context, id int64) (Branch, error)
	Create(ctx context.Context, branch Branch) (Branch, error)
	Update(ctx context.Context, id int64, branch Branch) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, code, name, address, phone, created_at, updated_at`

func scan(row pgx.Row) (Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.Phone, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, ErrNotFound
		}
		return Branch{}, err
	}
	return b, nil
}

func (r *repository) List(ctx context.Context) ([]Branch, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM branches ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Branch, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM branches WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, branch Branch) (Branch, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO branches (code, name, address, phone, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		branch.Code, branch.Name, branch.Address, branch.Phone, now, now).Scan(&branch.ID)
	if err != nil {
		return Branch{}, err
	}
	branch.CreatedAt = now
	branch.UpdatedAt = now
	return branch, nil
}

func (r *repository) Update(ctx context.Context, id int64, branch Branch) error {
	tag, err := r.db.Exec(ctx, `UPDATE branches SET code = $1, name = $2, address = $3, phone = $4, updated_at = $5 WHERE id = $6`,
		branch.Code, branch.Name, branch.Address, branch.Phone, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	var referenced bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE branch_id = $1)`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return ErrInUse
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM branches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
