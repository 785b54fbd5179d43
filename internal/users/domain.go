package users

import (
	"time"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// User represents an account that can act on the ledger.
type User struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Role      shared.Role `json:"role"`
	Email     string      `json:"email"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Username string
	Password string
	Role     string
	Email    string
}
