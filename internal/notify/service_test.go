package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

type memoryRepo struct {
	admins []int64
	items  []Notification
	nextID int64
}

func (r *memoryRepo) InsertForAdmins(ctx context.Context, msg string) (int64, error) {
	for _, id := range r.admins {
		r.nextID++
		r.items = append(r.items, Notification{ID: r.nextID, UserID: id, Message: msg, CreatedAt: time.Now()})
	}
	return int64(len(r.admins)), nil
}

func (r *memoryRepo) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	var out []Notification
	for _, n := range r.items {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *memoryRepo) MarkRead(ctx context.Context, userID, id int64) error {
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].UserID == userID {
			r.items[i].IsRead = true
			return nil
		}
	}
	return shared.ErrNotFound
}

func TestNotifyAdminsFansOut(t *testing.T) {
	repo := &memoryRepo{admins: []int64{1, 3}}
	svc := NewService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.NotifyAdmins(ctx, ItemSubmitted("Bolt")))
	require.Len(t, repo.items, 2)

	admin := shared.Actor{ID: 3, Role: shared.RoleAdmin}
	list, err := svc.List(ctx, admin, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "New item 'Bolt' submitted for admin approval.", list[0].Message)

	require.NoError(t, svc.MarkRead(ctx, admin, list[0].ID))
	list, err = svc.List(ctx, admin, true)
	require.NoError(t, err)
	require.Empty(t, list)

	other := shared.Actor{ID: 1, Role: shared.RoleAdmin}
	require.ErrorIs(t, svc.MarkRead(ctx, other, repo.items[1].ID), shared.ErrNotFound)

	_, err = svc.List(ctx, shared.Actor{}, false)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestStockProposedMessage(t *testing.T) {
	msg := StockProposed("in", "Acme", "Bolt", 3, decimal.RequireFromString("1234.5"))
	require.Equal(t, "New staff proposal: Stock IN from Acme for item 'Bolt' (Qty: 3, Price: 1,234.50), pending admin approval.", msg)

	msg = StockProposed("out", "BuyerCo", "Bolt", 2, decimal.RequireFromString("55"))
	require.Equal(t, "New staff proposal: Stock OUT to BuyerCo for item 'Bolt' (Qty: 2, Price: 55.00), pending admin approval.", msg)
}

func TestHandlerListsOwnNotifications(t *testing.T) {
	repo := &memoryRepo{admins: []int64{7}}
	svc := NewService(repo, nil)
	require.NoError(t, svc.NotifyAdmins(context.Background(), "hello"))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithActor(req.Context(), shared.Actor{ID: 7, Role: shared.RoleAdmin})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandler(svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?unread=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hello")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/99/read", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
