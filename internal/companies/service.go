package companies

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Company, error)
	Get(ctx context.Context, id int64) (Company, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the company registry.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// AddCompany registers a new company name.
func (s *Service) AddCompany(ctx context.Context, actor shared.Actor, raw string) (Company, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return Company{}, err
	}
	name, err := NormalizeName(raw)
	if err != nil {
		return Company{}, err
	}
	var created Company
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.InsertCompany(ctx, name)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return Company{}, shared.Store("add company", err)
	}
	return created, nil
}

// DeleteCompany removes a company unless approved transactions reference it.
// Pending and rejected transactions go with it.
func (s *Service) DeleteCompany(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireAdmin(actor); err != nil {
		return err
	}
	var name string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.LockCompany(ctx, id)
		if err != nil {
			return err
		}
		count, err := tx.CountApproved(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return shared.ReferentialError{Entity: "company", ID: id, Count: count}
		}
		name = c.Name
		return tx.DeleteCompany(ctx, id)
	})
	if err != nil {
		return shared.Store("delete company", err)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "company:delete",
			Entity:   "company",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"name": name},
		}); err != nil {
			s.logger.Warn("audit company delete", slog.Int64("company_id", id), slog.Any("error", err))
		}
	}
	return nil
}

// ResolveOrCreate returns the id for name, creating the company if needed.
// Safe under concurrent calls for the same name.
func (s *Service) ResolveOrCreate(ctx context.Context, raw string) (int64, error) {
	name, err := NormalizeName(raw)
	if err != nil {
		return 0, err
	}
	const attempts = 3
	var id int64
	for i := 0; i < attempts; i++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			resolved, err := tx.ResolveOrCreate(ctx, name)
			if err != nil {
				return err
			}
			id = resolved
			return nil
		})
		if err == nil {
			return id, nil
		}
		if !db.IsUniqueViolation(err, companyNameKey) {
			break
		}
	}
	return 0, shared.Store("resolve company", err)
}

// List returns all companies ordered by name.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Store("list companies", err)
	}
	return out, nil
}

// Names returns company names for supplier autocomplete.
func (s *Service) Names(ctx context.Context) ([]string, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	return names, nil
}

// Get loads one company.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Company{}, shared.Store("get company", err)
	}
	return c, nil
}
