package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads approved ledger rows for reporting.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ApprovedRows returns approved transactions created within [from, to].
func (r *Repository) ApprovedRows(ctx context.Context, from, to time.Time) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `SELECT st.item_id, i.item_name, st.type = 'in', st.quantity, i.price, i.net_interest_percent, st.transaction_price
FROM stock_transactions st
JOIN items i ON i.id = st.item_id
WHERE st.status = 'approved' AND st.created_at >= $1 AND st.created_at <= $2
ORDER BY st.item_id, st.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ItemID, &row.ItemName, &row.Inbound, &row.Quantity, &row.BasePrice, &row.MarkupPercent, &row.CapturedPrice); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
