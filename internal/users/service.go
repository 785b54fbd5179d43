package users

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

const minPasswordLength = 8

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	InsertUser(ctx context.Context, u User, passwordHash string) (User, error)
	DeleteUser(ctx context.Context, id int64) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	cost   int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, cost: bcrypt.DefaultCost}
}

// ListUsers returns all users. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor shared.Actor) ([]User, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	out, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, shared.Store("list users", err)
	}
	return out, nil
}

// Create provisions an account. It is used by the seed script and has no
// actor; callers on the HTTP edge must not expose it.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, shared.Invalid("username", "is required")
	}
	if len(in.Password) < minPasswordLength {
		return User{}, shared.Invalid("password", "must be at least 8 characters")
	}
	role, err := shared.ParseRole(in.Role)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.InsertUser(ctx, User{
		Username: username,
		Role:     role,
		Email:    strings.TrimSpace(in.Email),
	}, string(hash))
	if err != nil {
		return User{}, shared.Store("create user", err)
	}
	return u, nil
}

// Delete removes another user's account. Admin only.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return shared.Invalid("id", "cannot delete your own account")
	}
	username, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return shared.Store("delete user", err)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user:delete",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"username": username},
		}); err != nil {
			s.logger.Warn("audit user delete", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	return nil
}
