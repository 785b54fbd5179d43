package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/companies"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/pricing"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	// ShareItem reads an item and blocks concurrent deletes until commit.
	ShareItem(ctx context.Context, id int64) (ItemSnapshot, error)
	// LockItem reads an item and serialises stock checks on it.
	LockItem(ctx context.Context, id int64) (ItemSnapshot, error)
	Movements(ctx context.Context, itemID int64) ([]pricing.Movement, error)
	CompanyName(ctx context.Context, id int64) (string, error)
	ResolveCompany(ctx context.Context, name string) (int64, error)
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	TransactionItem(ctx context.Context, id int64) (int64, error)
	LockTransaction(ctx context.Context, id int64) (Transaction, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	DeleteApproved(ctx context.Context) (int64, error)
	RecordApproval(ctx context.Context, log shared.ApprovalLog) error
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

const movementsQuery = `SELECT type, status, COALESCE(SUM(quantity), 0)
FROM stock_transactions
WHERE item_id = $1
GROUP BY type, status`

// Movements returns an item's quantities grouped by type and status.
func (r *Repository) Movements(ctx context.Context, itemID int64) ([]pricing.Movement, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, itemID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.ErrNotFound
	}
	return scanMovements(r.pool.Query(ctx, movementsQuery, itemID))
}

func scanMovements(rows pgx.Rows, err error) ([]pricing.Movement, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pricing.Movement
	for rows.Next() {
		var txType, status string
		var qty int64
		if err := rows.Scan(&txType, &status, &qty); err != nil {
			return nil, err
		}
		out = append(out, pricing.Movement{
			Inbound:  TxType(txType) == TypeIn,
			Approved: Status(status) == StatusApproved,
			Quantity: qty,
		})
	}
	return out, rows.Err()
}

const entryQuery = `SELECT st.id, st.item_id, st.type, st.quantity, st.user_id, st.company_id, st.transaction_price, st.status, st.created_at,
    i.item_name, COALESCE(u.username, ''), cn.name
FROM stock_transactions st
JOIN items i ON i.id = st.item_id
JOIN company_names cn ON cn.id = st.company_id
LEFT JOIN users u ON u.id = st.user_id
`

// ListPending returns pending proposals, optionally only those of userID.
func (r *Repository) ListPending(ctx context.Context, userID *int64) ([]Entry, error) {
	return scanEntries(r.pool.Query(ctx, entryQuery+`WHERE st.status = 'pending' AND ($1::BIGINT IS NULL OR st.user_id = $1)
ORDER BY st.created_at ASC, st.id ASC`, userID))
}

// ListApproved returns the most recent approved transactions.
func (r *Repository) ListApproved(ctx context.Context, limit int) ([]Entry, error) {
	return scanEntries(r.pool.Query(ctx, entryQuery+`WHERE st.status = 'approved'
ORDER BY st.created_at DESC, st.id DESC
LIMIT $1`, limit))
}

func scanEntries(rows pgx.Rows, err error) ([]Entry, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var txType, status string
		if err := rows.Scan(&e.ID, &e.ItemID, &txType, &e.Quantity, &e.UserID, &e.CompanyID, &e.UnitPrice, &status, &e.CreatedAt,
			&e.ItemName, &e.Username, &e.CompanyName); err != nil {
			return nil, err
		}
		e.Type = TxType(txType)
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *txRepo) item(ctx context.Context, id int64, lock string) (ItemSnapshot, error) {
	var it ItemSnapshot
	err := t.tx.QueryRow(ctx, `SELECT id, item_name, status, price, net_interest_percent FROM items WHERE id = $1 `+lock, id).
		Scan(&it.ID, &it.Name, &it.Status, &it.BasePrice, &it.MarkupPercent)
	if db.IsNoRows(err) {
		return ItemSnapshot{}, shared.ErrNotFound
	}
	return it, err
}

func (t *txRepo) ShareItem(ctx context.Context, id int64) (ItemSnapshot, error) {
	return t.item(ctx, id, "FOR SHARE")
}

func (t *txRepo) LockItem(ctx context.Context, id int64) (ItemSnapshot, error) {
	return t.item(ctx, id, "FOR UPDATE")
}

func (t *txRepo) Movements(ctx context.Context, itemID int64) ([]pricing.Movement, error) {
	return scanMovements(t.tx.Query(ctx, movementsQuery, itemID))
}

func (t *txRepo) CompanyName(ctx context.Context, id int64) (string, error) {
	var name string
	err := t.tx.QueryRow(ctx, `SELECT name FROM company_names WHERE id = $1 FOR SHARE`, id).Scan(&name)
	if db.IsNoRows(err) {
		return "", shared.Invalid("company_id", "unknown company")
	}
	return name, err
}

func (t *txRepo) ResolveCompany(ctx context.Context, name string) (int64, error) {
	return companies.ResolveOrCreate(ctx, t.tx, name)
}

func (t *txRepo) InsertTransaction(ctx context.Context, in Transaction) (Transaction, error) {
	out := in
	var txType, status string
	err := t.tx.QueryRow(ctx, `INSERT INTO stock_transactions (item_id, type, quantity, user_id, company_id, transaction_price, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, type, status, created_at`,
		in.ItemID, string(in.Type), in.Quantity, in.UserID, in.CompanyID, in.UnitPrice, string(in.Status)).
		Scan(&out.ID, &txType, &status, &out.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	out.Type, out.Status = TxType(txType), Status(status)
	return out, nil
}

func (t *txRepo) TransactionItem(ctx context.Context, id int64) (int64, error) {
	var itemID int64
	err := t.tx.QueryRow(ctx, `SELECT item_id FROM stock_transactions WHERE id = $1`, id).Scan(&itemID)
	if db.IsNoRows(err) {
		return 0, shared.ErrNotFound
	}
	return itemID, err
}

func (t *txRepo) LockTransaction(ctx context.Context, id int64) (Transaction, error) {
	var out Transaction
	var txType, status string
	err := t.tx.QueryRow(ctx, `SELECT id, item_id, type, quantity, user_id, company_id, transaction_price, status, created_at
FROM stock_transactions WHERE id = $1 FOR UPDATE`, id).
		Scan(&out.ID, &out.ItemID, &txType, &out.Quantity, &out.UserID, &out.CompanyID, &out.UnitPrice, &status, &out.CreatedAt)
	if db.IsNoRows(err) {
		return Transaction{}, shared.ErrNotFound
	}
	out.Type, out.Status = TxType(txType), Status(status)
	return out, err
}

func (t *txRepo) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_transactions SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

func (t *txRepo) DeleteApproved(ctx context.Context) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM stock_transactions WHERE status = 'approved'`)
	return tag.RowsAffected(), err
}

func (t *txRepo) RecordApproval(ctx context.Context, log shared.ApprovalLog) error {
	return shared.RecordApproval(ctx, t.tx, log)
}
