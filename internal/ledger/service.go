package ledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/stockledger/internal/companies"
	"github.com/odyssey-erp/stockledger/internal/notify"
	"github.com/odyssey-erp/stockledger/internal/pricing"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

const idempotencyModule = "ledger"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Movements(ctx context.Context, itemID int64) ([]pricing.Movement, error)
	ListPending(ctx context.Context, userID *int64) ([]Entry, error)
	ListApproved(ctx context.Context, limit int) ([]Entry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort dedupes retried proposals.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// NotifierPort delivers admin notifications.
type NotifierPort interface {
	NotifyAdmins(ctx context.Context, msg string) error
}

// CachePort invalidates cached reports.
type CachePort interface {
	Invalidate(ctx context.Context) error
}

// MetricsPort counts ledger writes.
type MetricsPort interface {
	RecordTransition(kind, status string, n int)
}

// Deps groups optional collaborators of the service.
type Deps struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Notifier    NotifierPort
	Cache       CachePort
	Metrics     MetricsPort
	Logger      *slog.Logger
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// CheckStockOnApproval re-validates the balance when an out proposal is approved.
	CheckStockOnApproval bool
}

// Service coordinates the stock ledger.
type Service struct {
	repo            RepositoryPort
	audit           AuditPort
	idempotency     IdempotencyPort
	notifier        NotifierPort
	cache           CachePort
	metrics         MetricsPort
	logger          *slog.Logger
	checkOnApproval bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, deps Deps, cfg ServiceConfig) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:            repo,
		audit:           deps.Audit,
		idempotency:     deps.Idempotency,
		notifier:        deps.Notifier,
		cache:           deps.Cache,
		metrics:         deps.Metrics,
		logger:          logger,
		checkOnApproval: cfg.CheckStockOnApproval,
	}
}

func validateMovement(itemID int64, txType TxType, qty int64) error {
	if itemID <= 0 {
		return shared.Invalid("item_id", "required")
	}
	if _, err := ParseType(string(txType)); err != nil {
		return err
	}
	if qty <= 0 {
		return shared.Invalid("quantity", "must be greater than zero")
	}
	return nil
}

// ProposeTransaction stores a pending stock movement. Stock is not checked
// until an admin acts on it.
func (s *Service) ProposeTransaction(ctx context.Context, actor shared.Actor, input ProposeInput) (Transaction, error) {
	if err := shared.RequireActor(actor); err != nil {
		return Transaction{}, err
	}
	if err := validateMovement(input.ItemID, input.Type, input.Quantity); err != nil {
		return Transaction{}, err
	}
	var newCompany string
	if strings.TrimSpace(input.NewCompanyName) != "" {
		name, err := companies.NormalizeName(input.NewCompanyName)
		if err != nil {
			return Transaction{}, err
		}
		newCompany = name
	} else if input.CompanyID <= 0 {
		return Transaction{}, shared.Invalid("company_id", "select a company or enter a new company name")
	}
	key, err := shared.ParseIdempotencyKey(input.IdempotencyKey)
	if err != nil {
		return Transaction{}, err
	}
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Transaction{}, shared.Store("check idempotency key", err)
		}
	}

	var (
		created     Transaction
		itemName    string
		companyName string
	)
	userID := actor.ID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.ShareItem(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status != "approved" {
			return shared.StateError{Entity: "item", ID: item.ID, Status: item.Status, Action: "propose stock for"}
		}
		companyID := input.CompanyID
		if newCompany != "" {
			if companyID, err = tx.ResolveCompany(ctx, newCompany); err != nil {
				return err
			}
			companyName = newCompany
		} else if companyName, err = tx.CompanyName(ctx, companyID); err != nil {
			return err
		}
		created, err = tx.InsertTransaction(ctx, Transaction{
			ItemID:    item.ID,
			Type:      input.Type,
			Quantity:  input.Quantity,
			UserID:    &userID,
			CompanyID: companyID,
			UnitPrice: pricing.Round2(pricing.UnitPrice(input.Type == TypeIn, item.BasePrice, item.MarkupPercent)),
			Status:    StatusPending,
		})
		if err != nil {
			return err
		}
		itemName = item.Name
		return tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  shared.ApprovalModuleStock,
			RefID:   created.ID,
			ActorID: actor.ID,
			Action:  shared.ApprovalSubmit,
		})
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, key); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return Transaction{}, shared.Store("propose stock transaction", err)
	}
	s.count("propose", StatusPending, 1)
	s.notifyAdmins(ctx, notify.StockProposed(string(created.Type), companyName, itemName, created.Quantity, created.UnitPrice))
	return created, nil
}

// RecordApprovedTransaction writes an admin movement directly as approved.
// An out movement larger than the current stock is refused.
func (s *Service) RecordApprovedTransaction(ctx context.Context, actor shared.Actor, input RecordInput) (Transaction, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return Transaction{}, err
	}
	if err := validateMovement(input.ItemID, input.Type, input.Quantity); err != nil {
		return Transaction{}, err
	}
	if input.CompanyID <= 0 {
		return Transaction{}, shared.Invalid("company_id", "required")
	}
	var created Transaction
	userID := actor.ID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status != "approved" {
			return shared.StateError{Entity: "item", ID: item.ID, Status: item.Status, Action: "record stock for"}
		}
		if _, err := tx.CompanyName(ctx, input.CompanyID); err != nil {
			return err
		}
		if input.Type == TypeOut {
			if err := ensureAvailable(ctx, tx, item.ID, input.Quantity); err != nil {
				return err
			}
		}
		created, err = tx.InsertTransaction(ctx, Transaction{
			ItemID:    item.ID,
			Type:      input.Type,
			Quantity:  input.Quantity,
			UserID:    &userID,
			CompanyID: input.CompanyID,
			UnitPrice: pricing.Round2(pricing.UnitPrice(input.Type == TypeIn, item.BasePrice, item.MarkupPercent)),
			Status:    StatusApproved,
		})
		return err
	})
	if err != nil {
		return Transaction{}, shared.Store("record stock transaction", err)
	}
	s.count("record", StatusApproved, 1)
	s.invalidate(ctx)
	return created, nil
}

// ApproveTransaction moves a pending transaction to approved.
func (s *Service) ApproveTransaction(ctx context.Context, actor shared.Actor, id int64) (Transaction, error) {
	return s.review(ctx, actor, id, StatusApproved)
}

// RejectTransaction moves a pending transaction to rejected.
func (s *Service) RejectTransaction(ctx context.Context, actor shared.Actor, id int64) (Transaction, error) {
	return s.review(ctx, actor, id, StatusRejected)
}

func (s *Service) review(ctx context.Context, actor shared.Actor, id int64, to Status) (Transaction, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return Transaction{}, err
	}
	action, verb := shared.ApprovalApprove, "approve"
	if to == StatusRejected {
		action, verb = shared.ApprovalReject, "reject"
	}
	var reviewed Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		itemID, err := tx.TransactionItem(ctx, id)
		if err != nil {
			return err
		}
		// Item before transaction, the same order item deletion takes.
		if _, err := tx.LockItem(ctx, itemID); err != nil {
			return err
		}
		t, err := tx.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return shared.StateError{Entity: "stock transaction", ID: id, Status: string(t.Status), Action: verb}
		}
		if to == StatusApproved {
			if _, err := tx.CompanyName(ctx, t.CompanyID); err != nil {
				return err
			}
			if s.checkOnApproval && t.Type == TypeOut {
				if err := ensureAvailable(ctx, tx, itemID, t.Quantity); err != nil {
					return err
				}
			}
		}
		if err := tx.SetStatus(ctx, id, to); err != nil {
			return err
		}
		t.Status = to
		reviewed = t
		return tx.RecordApproval(ctx, shared.ApprovalLog{
			Module:  shared.ApprovalModuleStock,
			RefID:   id,
			ActorID: actor.ID,
			Action:  action,
		})
	})
	if err != nil {
		return Transaction{}, shared.Store(verb+" stock transaction", err)
	}
	s.count(verb, to, 1)
	s.invalidate(ctx)
	return reviewed, nil
}

func ensureAvailable(ctx context.Context, tx TxRepository, itemID, requested int64) error {
	moves, err := tx.Movements(ctx, itemID)
	if err != nil {
		return err
	}
	available := pricing.CurrentStock(moves)
	if requested > available {
		return shared.InsufficientStockError{ItemID: itemID, Available: available, Requested: requested}
	}
	return nil
}

// ClearAllApproved deletes every approved transaction and returns how many
// were removed. confirmation must equal ClearConfirmation exactly.
func (s *Service) ClearAllApproved(ctx context.Context, actor shared.Actor, confirmation string) (int64, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return 0, err
	}
	if confirmation != ClearConfirmation {
		return 0, shared.ConfirmationError{Phrase: ClearConfirmation}
	}
	var removed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.DeleteApproved(ctx)
		removed = n
		return err
	})
	if err != nil {
		return 0, shared.Store("clear approved transactions", err)
	}
	s.count("clear", "deleted", int(removed))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "ledger:clear",
			Entity:   "stock_transactions",
			EntityID: "approved",
			Meta:     map[string]any{"removed": removed},
		}); err != nil {
			s.logger.Warn("audit ledger clear", slog.Any("error", err))
		}
	}
	s.invalidate(ctx)
	return removed, nil
}

// CurrentStock returns approved in minus approved out for an item.
func (s *Service) CurrentStock(ctx context.Context, itemID int64) (int64, error) {
	moves, err := s.repo.Movements(ctx, itemID)
	if err != nil {
		return 0, shared.Store("current stock", err)
	}
	return pricing.CurrentStock(moves), nil
}

// ListPending returns pending proposals. Staff only ever see their own.
func (s *Service) ListPending(ctx context.Context, actor shared.Actor, mineOnly bool) ([]Entry, error) {
	if err := shared.RequireActor(actor); err != nil {
		return nil, err
	}
	var owner *int64
	if mineOnly || !actor.IsAdmin() {
		id := actor.ID
		owner = &id
	}
	out, err := s.repo.ListPending(ctx, owner)
	if err != nil {
		return nil, shared.Store("list pending transactions", err)
	}
	return out, nil
}

const (
	defaultApprovedLimit = 100
	maxApprovedLimit     = 500
)

// ListApproved returns the most recent approved transactions.
func (s *Service) ListApproved(ctx context.Context, actor shared.Actor, limit int) ([]Entry, error) {
	if err := shared.RequireActor(actor); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultApprovedLimit
	case limit > maxApprovedLimit:
		limit = maxApprovedLimit
	}
	out, err := s.repo.ListApproved(ctx, limit)
	if err != nil {
		return nil, shared.Store("list approved transactions", err)
	}
	return out, nil
}

func (s *Service) count(kind string, status Status, n int) {
	if s.metrics != nil {
		s.metrics.RecordTransition(kind, string(status), n)
	}
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
