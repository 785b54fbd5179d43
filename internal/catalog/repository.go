package catalog

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

const itemNameKey = "items_item_name_key"

const itemColumns = `i.id, i.item_name, i.description, i.price, i.net_interest_percent, i.status, i.submitted_by, i.image_path, i.qr_code_path, i.created_at`

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertItem(ctx context.Context, item Item) (Item, error)
	LockItem(ctx context.Context, id int64) (Item, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	UpdateItem(ctx context.Context, id int64, values EditValues) error
	InsertEdit(ctx context.Context, edit ItemEdit) error
	DeleteTransactions(ctx context.Context, itemID int64) (int64, error)
	DeleteEdits(ctx context.Context, itemID int64) (int64, error)
	DeleteItem(ctx context.Context, id int64) error
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

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	var status string
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.BasePrice, &it.MarkupPercent, &status, &it.SubmittedBy, &it.ImagePath, &it.QRCodePath, &it.CreatedAt)
	if db.IsNoRows(err) {
		return Item{}, shared.ErrNotFound
	}
	it.Status = Status(status)
	return it, err
}

// GetItem loads an item in any status.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1`, id))
}

// StockTotals sums approved in and out quantities for one item.
func (r *Repository) StockTotals(ctx context.Context, itemID int64) (int64, int64, error) {
	var in, out int64
	err := r.pool.QueryRow(ctx, `SELECT
    COALESCE(SUM(quantity) FILTER (WHERE type = 'in'), 0),
    COALESCE(SUM(quantity) FILTER (WHERE type = 'out'), 0)
FROM stock_transactions
WHERE item_id = $1 AND status = 'approved'`, itemID).Scan(&in, &out)
	return in, out, err
}

// ListInventory returns approved items with approved totals and the
// supplier of the latest approved stock-in.
func (r *Repository) ListInventory(ctx context.Context) ([]InventoryRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+`,
    COALESCE(SUM(t.quantity) FILTER (WHERE t.type = 'in' AND t.status = 'approved'), 0),
    COALESCE(SUM(t.quantity) FILTER (WHERE t.type = 'out' AND t.status = 'approved'), 0),
    COALESCE((
        SELECT cn.name
        FROM stock_transactions st
        JOIN company_names cn ON cn.id = st.company_id
        WHERE st.item_id = i.id AND st.type = 'in' AND st.status = 'approved'
        ORDER BY st.created_at DESC, st.id DESC
        LIMIT 1
    ), '')
FROM items i
LEFT JOIN stock_transactions t ON t.item_id = i.id
WHERE i.status = 'approved'
GROUP BY i.id
ORDER BY i.item_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InventoryRow
	for rows.Next() {
		var row InventoryRow
		var status string
		if err := rows.Scan(&row.ID, &row.Name, &row.Description, &row.BasePrice, &row.MarkupPercent, &status, &row.SubmittedBy,
			&row.ImagePath, &row.QRCodePath, &row.CreatedAt, &row.TotalIn, &row.TotalOut, &row.LatestSupplier); err != nil {
			return nil, err
		}
		row.Status = Status(status)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListPending returns pending proposals with the submitter's username.
func (r *Repository) ListPending(ctx context.Context) ([]PendingItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+`, COALESCE(u.username, '')
FROM items i
LEFT JOIN users u ON u.id = i.submitted_by
WHERE i.status = 'pending'
ORDER BY i.created_at ASC, i.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PendingItem
	for rows.Next() {
		var p PendingItem
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.MarkupPercent, &status, &p.SubmittedBy,
			&p.ImagePath, &p.QRCodePath, &p.CreatedAt, &p.SubmitterName); err != nil {
			return nil, err
		}
		p.Status = Status(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListEdits returns an item's edit history, newest first.
func (r *Repository) ListEdits(ctx context.Context, itemID int64) ([]ItemEdit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, edited_by, old_values, new_values, edited_at
FROM item_edits WHERE item_id = $1 ORDER BY edited_at DESC, id DESC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemEdit
	for rows.Next() {
		var e ItemEdit
		var oldRaw, newRaw []byte
		if err := rows.Scan(&e.ID, &e.ItemID, &e.EditedBy, &oldRaw, &newRaw, &e.EditedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(oldRaw, &e.OldValues); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(newRaw, &e.NewValues); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetQRCodePath stores the path of a generated QR code image.
func (r *Repository) SetQRCodePath(ctx context.Context, id int64, path string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET qr_code_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	created, err := scanItem(t.tx.QueryRow(ctx, `INSERT INTO items AS i (item_name, description, price, net_interest_percent, status, submitted_by, image_path)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+itemColumns,
		item.Name, item.Description, item.BasePrice, item.MarkupPercent, string(item.Status), item.SubmittedBy, item.ImagePath))
	if db.IsUniqueViolation(err, itemNameKey) {
		return Item{}, shared.DuplicateError{Entity: "item", Name: item.Name}
	}
	return created, err
}

func (t *txRepo) LockItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1 FOR UPDATE`, id))
}

func (t *txRepo) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE items SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

func (t *txRepo) UpdateItem(ctx context.Context, id int64, v EditValues) error {
	_, err := t.tx.Exec(ctx, `UPDATE items SET item_name = $2, description = $3, price = $4, net_interest_percent = $5 WHERE id = $1`,
		id, v.Name, v.Description, v.BasePrice, v.MarkupPercent)
	if db.IsUniqueViolation(err, itemNameKey) {
		return shared.DuplicateError{Entity: "item", Name: v.Name}
	}
	return err
}

func (t *txRepo) InsertEdit(ctx context.Context, edit ItemEdit) error {
	oldRaw, err := json.Marshal(edit.OldValues)
	if err != nil {
		return err
	}
	newRaw, err := json.Marshal(edit.NewValues)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO item_edits (item_id, edited_by, old_values, new_values) VALUES ($1, $2, $3, $4)`,
		edit.ItemID, edit.EditedBy, oldRaw, newRaw)
	return err
}

func (t *txRepo) DeleteTransactions(ctx context.Context, itemID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM stock_transactions WHERE item_id = $1`, itemID)
	return tag.RowsAffected(), err
}

func (t *txRepo) DeleteEdits(ctx context.Context, itemID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM item_edits WHERE item_id = $1`, itemID)
	return tag.RowsAffected(), err
}

func (t *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) RecordApproval(ctx context.Context, log shared.ApprovalLog) error {
	return shared.RecordApproval(ctx, t.tx, log)
}
