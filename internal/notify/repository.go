package notify

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Repository persists notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertForAdmins fans msg out to every admin in one statement.
func (r *Repository) InsertForAdmins(ctx context.Context, msg string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO notifications (user_id, message) SELECT id, $1 FROM users WHERE role = 'admin'`, msg)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListForUser returns the newest notifications first.
func (r *Repository) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, message, is_read, created_at
FROM notifications
WHERE user_id = $1 AND ($2 = FALSE OR is_read = FALSE)
ORDER BY created_at DESC, id DESC
LIMIT 100`, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one notification owned by userID as read.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
