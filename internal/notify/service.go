package notify

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// RepositoryPort abstracts notification storage.
type RepositoryPort interface {
	InsertForAdmins(ctx context.Context, msg string) (int64, error)
	ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
}

// Service delivers and lists notifications.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// NotifyAdmins sends msg to every admin.
func (s *Service) NotifyAdmins(ctx context.Context, msg string) error {
	n, err := s.repo.InsertForAdmins(ctx, msg)
	if err != nil {
		return shared.Store("notify admins", err)
	}
	s.logger.Debug("admins notified", slog.Int64("recipients", n))
	return nil
}

// List returns the actor's notifications.
func (s *Service) List(ctx context.Context, actor shared.Actor, unreadOnly bool) ([]Notification, error) {
	if err := shared.RequireActor(actor); err != nil {
		return nil, err
	}
	out, err := s.repo.ListForUser(ctx, actor.ID, unreadOnly)
	if err != nil {
		return nil, shared.Store("list notifications", err)
	}
	return out, nil
}

// MarkRead marks one of the actor's notifications as read.
func (s *Service) MarkRead(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireActor(actor); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, actor.ID, id); err != nil {
		return shared.Store("mark notification read", err)
	}
	return nil
}
