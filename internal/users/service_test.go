package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

var (
	admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}
	staff = shared.Actor{ID: 2, Role: shared.RoleStaff}
)

type memoryRepo struct {
	users  []User
	hashes map[int64]string
	nextID int64
	err    error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{hashes: map[int64]string{}, nextID: 1}
}

func (m *memoryRepo) ListUsers(context.Context) ([]User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]User(nil), m.users...), nil
}

func (m *memoryRepo) InsertUser(_ context.Context, u User, hash string) (User, error) {
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return User{}, shared.DuplicateError{Entity: "user", Name: u.Username}
		}
	}
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	m.nextID++
	m.users = append(m.users, u)
	m.hashes[u.ID] = hash
	return u, nil
}

func (m *memoryRepo) DeleteUser(_ context.Context, id int64) (string, error) {
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return u.Username, nil
		}
	}
	return "", shared.ErrNotFound
}

type auditSpy struct {
	logs []shared.AuditLog
	err  error
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func newTestService(repo *memoryRepo, audit *auditSpy) *Service {
	svc := NewService(repo, audit, nil)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &auditSpy{})

	u, err := svc.Create(context.Background(), CreateInput{Username: " alice ", Password: "correct horse", Role: "Admin"})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, shared.RoleAdmin, u.Role)
	require.NotEqual(t, "correct horse", repo.hashes[u.ID])
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[u.ID]), []byte("correct horse")))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &auditSpy{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Username: "", Password: "long enough", Role: "staff"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, CreateInput{Username: "bob", Password: "short", Role: "staff"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, CreateInput{Username: "bob", Password: "long enough", Role: "owner"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Username: "bob", Password: "long enough", Role: "staff"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Username: "bob", Password: "other pass", Role: "admin"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestListRequiresAdmin(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &auditSpy{})
	_, err := svc.ListUsers(context.Background(), staff)
	require.ErrorIs(t, err, shared.ErrForbidden)

	repo.err = errors.New("boom")
	_, err = svc.ListUsers(context.Background(), admin)
	require.ErrorIs(t, err, shared.ErrStore)
}

func TestDelete(t *testing.T) {
	repo := newMemoryRepo()
	audit := &auditSpy{}
	svc := newTestService(repo, audit)
	ctx := context.Background()
	root, err := svc.Create(ctx, CreateInput{Username: "root", Password: "password1", Role: "admin"})
	require.NoError(t, err)
	clerk, err := svc.Create(ctx, CreateInput{Username: "clerk", Password: "password2", Role: "staff"})
	require.NoError(t, err)
	me := shared.Actor{ID: root.ID, Role: shared.RoleAdmin}

	require.ErrorIs(t, svc.Delete(ctx, me, root.ID), shared.ErrValidation)
	require.ErrorIs(t, svc.Delete(ctx, shared.Actor{ID: clerk.ID, Role: shared.RoleStaff}, root.ID), shared.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, me, 99), shared.ErrNotFound)

	audit.err = errors.New("audit down")
	require.NoError(t, svc.Delete(ctx, me, clerk.ID))
	require.Len(t, audit.logs, 1)
	require.Equal(t, "user:delete", audit.logs[0].Action)
	require.Equal(t, "clerk", audit.logs[0].Meta["username"])

	list, err := svc.ListUsers(ctx, me)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestHandlerDeleteSelf(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &auditSpy{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), admin)))
		})
	})
	NewHandler(nil, svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/1", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}
