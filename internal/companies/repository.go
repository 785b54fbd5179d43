package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

const companyNameKey = "company_names_name_key"

// RowQuerier is satisfied by pgx.Tx and *pgxpool.Pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists companies in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertCompany(ctx context.Context, name string) (Company, error)
	LockCompany(ctx context.Context, id int64) (Company, error)
	CountApproved(ctx context.Context, id int64) (int64, error)
	DeleteCompany(ctx context.Context, id int64) error
	ResolveOrCreate(ctx context.Context, name string) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// List returns all companies ordered by name.
func (r *Repository) List(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM company_names ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get loads a company by id.
func (r *Repository) Get(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM company_names WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if db.IsNoRows(err) {
		return Company{}, shared.ErrNotFound
	}
	return c, err
}

func (t *txRepo) InsertCompany(ctx context.Context, name string) (Company, error) {
	var c Company
	err := t.tx.QueryRow(ctx, `INSERT INTO company_names (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if db.IsUniqueViolation(err, companyNameKey) {
		return Company{}, shared.DuplicateError{Entity: "company", Name: name}
	}
	return c, err
}

func (t *txRepo) LockCompany(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := t.tx.QueryRow(ctx, `SELECT id, name, created_at FROM company_names WHERE id = $1 FOR UPDATE`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if db.IsNoRows(err) {
		return Company{}, shared.ErrNotFound
	}
	return c, err
}

func (t *txRepo) CountApproved(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM stock_transactions WHERE company_id = $1 AND status = 'approved'`, id).Scan(&n)
	return n, err
}

func (t *txRepo) DeleteCompany(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM company_names WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) ResolveOrCreate(ctx context.Context, name string) (int64, error) {
	return ResolveOrCreate(ctx, t.tx, name)
}

// ResolveOrCreate returns the id of the company called name, inserting it
// when absent. name must already be normalised. Callers running inside a
// transaction pass the pgx.Tx so the insert commits with their work.
func ResolveOrCreate(ctx context.Context, q RowQuerier, name string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO company_names (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = q.QueryRow(ctx, `SELECT id FROM company_names WHERE name = $1`, name).Scan(&id)
	return id, err
}
