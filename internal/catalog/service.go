package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/notify"
	"github.com/odyssey-erp/stockledger/internal/pricing"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	StockTotals(ctx context.Context, itemID int64) (int64, int64, error)
	ListInventory(ctx context.Context) ([]InventoryRow, error)
	ListPending(ctx context.Context) ([]PendingItem, error)
	ListEdits(ctx context.Context, itemID int64) ([]ItemEdit, error)
	SetQRCodePath(ctx context.Context, id int64, path string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort delivers admin notifications.
type NotifierPort interface {
	NotifyAdmins(ctx context.Context, msg string) error
}

// CachePort invalidates cached reports after price changes.
type CachePort interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates the item catalog.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier NotifierPort
	cache    CachePort
	logger   *slog.Logger
}

// NewService builds Service. audit, notifier and cache are optional.
func NewService(repo RepositoryPort, audit AuditPort, notifier NotifierPort, cache CachePort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, cache: cache, logger: logger}
}

// ProposeItem stores a pending item and notifies admins.
func (s *Service) ProposeItem(ctx context.Context, actor shared.Actor, input ProposeItemInput) (Item, error) {
	if err := shared.RequireActor(actor); err != nil {
		return Item{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Item{}, shared.Invalid("name", "item name cannot be empty")
	}
	if input.BasePrice.IsNegative() {
		return Item{}, shared.Invalid("base_price", "must not be negative")
	}
	submitter := actor.ID
	var created Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.InsertItem(ctx, Item{
			Name:          name,
			Description:   strings.TrimSpace(input.Description),
			BasePrice:     input.BasePrice,
			MarkupPercent: decimal.Zero,
			Status:        StatusPending,
			SubmittedBy:   &submitter,
			ImagePath:     input.ImagePath,
		})
		if err != nil {
			return err
		}
		created = item
		return tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  shared.ApprovalModuleItem,
			RefID:   item.ID,
			ActorID: actor.ID,
			Action:  shared.ApprovalSubmit,
		})
	})
	if err != nil {
		return Item{}, shared.Store("propose item", err)
	}
	s.notifyAdmins(ctx, notify.ItemSubmitted(created.Name))
	return created, nil
}

// ApproveItem moves a pending item into inventory.
func (s *Service) ApproveItem(ctx context.Context, actor shared.Actor, id int64) (Item, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return Item{}, err
	}
	var approved Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if item.Status != StatusPending {
			return shared.StateError{Entity: "item", ID: id, Status: string(item.Status), Action: "approve"}
		}
		if err := tx.SetStatus(ctx, id, StatusApproved); err != nil {
			return err
		}
		item.Status = StatusApproved
		approved = item
		return tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  shared.ApprovalModuleItem,
			RefID:   id,
			ActorID: actor.ID,
			Action:  shared.ApprovalApprove,
		})
	})
	if err != nil {
		return Item{}, shared.Store("approve item", err)
	}
	return approved, nil
}

// RejectItem deletes a pending proposal.
func (s *Service) RejectItem(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireAdmin(actor); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if item.Status != StatusPending {
			return shared.StateError{Entity: "item", ID: id, Status: string(item.Status), Action: "reject"}
		}
		if err := tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  shared.ApprovalModuleItem,
			RefID:   id,
			ActorID: actor.ID,
			Action:  shared.ApprovalReject,
		}); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return shared.Store("reject item", err)
	}
	return nil
}

// EditItem updates an approved item and records the change.
func (s *Service) EditItem(ctx context.Context, actor shared.Actor, id int64, input EditItemInput) (Item, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return Item{}, err
	}
	next := EditValues{
		Name:          strings.TrimSpace(input.Name),
		Description:   strings.TrimSpace(input.Description),
		BasePrice:     input.BasePrice,
		MarkupPercent: input.MarkupPercent,
	}
	if next.Name == "" {
		return Item{}, shared.Invalid("name", "item name cannot be empty")
	}
	if next.BasePrice.IsNegative() {
		return Item{}, shared.Invalid("base_price", "must not be negative")
	}
	if next.MarkupPercent.IsNegative() {
		return Item{}, shared.Invalid("markup_percent", "must not be negative")
	}
	editor := actor.ID
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if item.Status != StatusApproved {
			return shared.StateError{Entity: "item", ID: id, Status: string(item.Status), Action: "edit"}
		}
		if err := tx.UpdateItem(ctx, id, next); err != nil {
			return err
		}
		if err := tx.InsertEdit(ctx, ItemEdit{ItemID: id, EditedBy: &editor, OldValues: item.editValues(), NewValues: next}); err != nil {
			return err
		}
		item.Name, item.Description, item.BasePrice, item.MarkupPercent = next.Name, next.Description, next.BasePrice, next.MarkupPercent
		updated = item
		return nil
	})
	if err != nil {
		return Item{}, shared.Store("edit item", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteItem removes an item together with its transactions and edits.
func (s *Service) DeleteItem(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireAdmin(actor); err != nil {
		return err
	}
	var name string
	var txCount, editCount int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		name = item.Name
		if txCount, err = tx.DeleteTransactions(ctx, id); err != nil {
			return err
		}
		if editCount, err = tx.DeleteEdits(ctx, id); err != nil {
			return err
		}
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return shared.Store("delete item", err)
	}
	s.record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "item:delete",
		Entity:   "item",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"name": name, "transactions": txCount, "edits": editCount},
	})
	s.invalidate(ctx)
	return nil
}

// SetQRCodePath records the QR code image generated for an item.
func (s *Service) SetQRCodePath(ctx context.Context, id int64, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return shared.Invalid("qr_code_path", "cannot be empty")
	}
	if err := s.repo.SetQRCodePath(ctx, id, path); err != nil {
		return shared.Store("set qr code path", err)
	}
	return nil
}

// ListInventory returns approved items with current stock and selling price.
func (s *Service) ListInventory(ctx context.Context) ([]InventoryRow, error) {
	rows, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, shared.Store("list inventory", err)
	}
	for i := range rows {
		rows[i].Stock = pricing.StockFromTotals(rows[i].TotalIn, rows[i].TotalOut)
		rows[i].SellingPrice = pricing.Round2(pricing.SellingPrice(rows[i].BasePrice, rows[i].MarkupPercent))
	}
	return rows, nil
}

// GetApproved returns the public card of an approved item. Pending items
// are reported as not found.
func (s *Service) GetApproved(ctx context.Context, id int64) (InventoryRow, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return InventoryRow{}, shared.Store("get item", err)
	}
	if item.Status != StatusApproved {
		return InventoryRow{}, shared.ErrNotFound
	}
	in, out, err := s.repo.StockTotals(ctx, id)
	if err != nil {
		return InventoryRow{}, shared.Store("item stock", err)
	}
	return InventoryRow{
		Item:         item,
		SellingPrice: pricing.Round2(pricing.SellingPrice(item.BasePrice, item.MarkupPercent)),
		Stock:        pricing.StockFromTotals(in, out),
		TotalIn:      in,
		TotalOut:     out,
	}, nil
}

// ListPending returns the item review queue.
func (s *Service) ListPending(ctx context.Context, actor shared.Actor) ([]PendingItem, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	out, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, shared.Store("list pending items", err)
	}
	return out, nil
}

// ListEdits returns the edit history of an item.
func (s *Service) ListEdits(ctx context.Context, actor shared.Actor, id int64) ([]ItemEdit, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	out, err := s.repo.ListEdits(ctx, id)
	if err != nil {
		return nil, shared.Store("list item edits", err)
	}
	return out, nil
}

func (s *Service) notifyAdmins(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAdmins(ctx, msg); err != nil {
		s.logger.Warn("notify admins", slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate report cache", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit", slog.String("action", log.Action), slog.Any("error", err))
	}
}
