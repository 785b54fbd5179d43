package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates item lifecycle states. Rejected items are deleted.
type Status string

const (
	// StatusPending marks a staff proposal awaiting review.
	StatusPending Status = "pending"
	// StatusApproved marks an item visible in inventory.
	StatusApproved Status = "approved"
)

// Item is a catalog entry.
type Item struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	BasePrice     decimal.Decimal `json:"base_price"`
	MarkupPercent decimal.Decimal `json:"markup_percent"`
	Status        Status          `json:"status"`
	SubmittedBy   *int64          `json:"submitted_by,omitempty"`
	ImagePath     string          `json:"image_path,omitempty"`
	QRCodePath    string          `json:"qr_code_path,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProposeItemInput carries a new item proposal.
type ProposeItemInput struct {
	Name        string
	Description string
	BasePrice   decimal.Decimal
	ImagePath   string
}

// EditItemInput replaces the editable attributes of an approved item.
type EditItemInput struct {
	Name          string
	Description   string
	BasePrice     decimal.Decimal
	MarkupPercent decimal.Decimal
}

// EditValues is the snapshot stored on each side of an edit record.
type EditValues struct {
	Name          string          `json:"item_name"`
	Description   string          `json:"description"`
	BasePrice     decimal.Decimal `json:"price"`
	MarkupPercent decimal.Decimal `json:"net_interest_percent"`
}

// ItemEdit is one row of an item's edit history.
type ItemEdit struct {
	ID        int64      `json:"id"`
	ItemID    int64      `json:"item_id"`
	EditedBy  *int64     `json:"edited_by,omitempty"`
	OldValues EditValues `json:"old_values"`
	NewValues EditValues `json:"new_values"`
	EditedAt  time.Time  `json:"edited_at"`
}

// InventoryRow is an approved item with its derived balance.
type InventoryRow struct {
	Item
	SellingPrice   decimal.Decimal `json:"selling_price"`
	Stock          int64           `json:"current_stock"`
	LatestSupplier string          `json:"supplier_name,omitempty"`
	TotalIn        int64           `json:"-"`
	TotalOut       int64           `json:"-"`
}

// PendingItem is a proposal shown in the admin review queue.
type PendingItem struct {
	Item
	SubmitterName string `json:"submitted_by_username,omitempty"`
}

func (i Item) editValues() EditValues {
	return EditValues{
		Name:          i.Name,
		Description:   i.Description,
		BasePrice:     i.BasePrice,
		MarkupPercent: i.MarkupPercent,
	}
}
