package companies

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Company is a supplier or buyer counterparty on stock transactions.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeName trims and NFC-normalises a company name. Comparison stays
// case-sensitive.
func NormalizeName(raw string) (string, error) {
	name := norm.NFC.String(strings.TrimSpace(raw))
	if name == "" {
		return "", shared.Invalid("name", "company name cannot be empty")
	}
	return name, nil
}
