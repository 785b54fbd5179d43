package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// ClearConfirmation must be supplied verbatim to clear the approved log.
const ClearConfirmation = "CONFIRM DELETE"

// TxType is the direction of a stock movement.
type TxType string

const (
	// TypeIn adds stock.
	TypeIn TxType = "in"
	// TypeOut removes stock.
	TypeOut TxType = "out"
)

// ParseType validates a movement direction.
func ParseType(raw string) (TxType, error) {
	switch TxType(raw) {
	case TypeIn:
		return TypeIn, nil
	case TypeOut:
		return TypeOut, nil
	default:
		return "", shared.Invalid("type", "must be in or out")
	}
}

// Status is the review state of a stock transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Transaction is one row of the stock ledger.
type Transaction struct {
	ID        int64           `json:"id"`
	ItemID    int64           `json:"item_id"`
	Type      TxType          `json:"type"`
	Quantity  int64           `json:"quantity"`
	UserID    *int64          `json:"user_id,omitempty"`
	CompanyID int64           `json:"company_id"`
	UnitPrice decimal.Decimal `json:"transaction_price"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Entry is a transaction joined with display names.
type Entry struct {
	Transaction
	ItemName    string `json:"item_name"`
	Username    string `json:"username,omitempty"`
	CompanyName string `json:"company_name"`
}

// ItemSnapshot is the item state a ledger write depends on.
type ItemSnapshot struct {
	ID            int64
	Name          string
	Status        string
	BasePrice     decimal.Decimal
	MarkupPercent decimal.Decimal
}

// ProposeInput is a staff stock proposal. NewCompanyName, when set, wins
// over CompanyID and is created on demand.
type ProposeInput struct {
	ItemID         int64
	Type           TxType
	Quantity       int64
	CompanyID      int64
	NewCompanyName string
	IdempotencyKey string
}

// RecordInput is an admin stock movement that skips review.
type RecordInput struct {
	ItemID    int64
	Type      TxType
	Quantity  int64
	CompanyID int64
}
