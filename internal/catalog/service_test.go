package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

type memoryTxn struct {
	itemID  int64
	inbound bool
	qty     int64
	status  string
}

type memoryRepo struct {
	items     map[int64]Item
	edits     []ItemEdit
	txns      []memoryTxn
	approvals []shared.ApprovalLog
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Item{}}
}

// WithTx applies fn to a copy and swaps it in on success.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.clone()
	if err := fn(ctx, &memoryTx{repo: snapshot}); err != nil {
		return err
	}
	*r = *snapshot
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	c := &memoryRepo{items: make(map[int64]Item, len(r.items)), nextID: r.nextID}
	for k, v := range r.items {
		c.items[k] = v
	}
	c.edits = append([]ItemEdit(nil), r.edits...)
	c.txns = append([]memoryTxn(nil), r.txns...)
	c.approvals = append([]shared.ApprovalLog(nil), r.approvals...)
	return c
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return it, nil
}

func (r *memoryRepo) StockTotals(ctx context.Context, itemID int64) (int64, int64, error) {
	var in, out int64
	for _, t := range r.txns {
		if t.itemID != itemID || t.status != "approved" {
			continue
		}
		if t.inbound {
			in += t.qty
		} else {
			out += t.qty
		}
	}
	return in, out, nil
}

func (r *memoryRepo) ListInventory(ctx context.Context) ([]InventoryRow, error) {
	var out []InventoryRow
	for _, it := range r.items {
		if it.Status != StatusApproved {
			continue
		}
		in, o, _ := r.StockTotals(ctx, it.ID)
		out = append(out, InventoryRow{Item: it, TotalIn: in, TotalOut: o})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) ListPending(ctx context.Context) ([]PendingItem, error) {
	var out []PendingItem
	for _, it := range r.items {
		if it.Status == StatusPending {
			out = append(out, PendingItem{Item: it})
		}
	}
	return out, nil
}

func (r *memoryRepo) ListEdits(ctx context.Context, itemID int64) ([]ItemEdit, error) {
	var out []ItemEdit
	for _, e := range r.edits {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) SetQRCodePath(ctx context.Context, id int64, path string) error {
	it, ok := r.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	it.QRCodePath = path
	r.items[id] = it
	return nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	for _, existing := range tx.repo.items {
		if existing.Name == item.Name {
			return Item{}, shared.DuplicateError{Entity: "item", Name: item.Name}
		}
	}
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	item.CreatedAt = time.Now()
	tx.repo.items[item.ID] = item
	return item, nil
}

func (tx *memoryTx) LockItem(ctx context.Context, id int64) (Item, error) {
	return tx.repo.GetItem(ctx, id)
}

func (tx *memoryTx) SetStatus(ctx context.Context, id int64, status Status) error {
	it := tx.repo.items[id]
	it.Status = status
	tx.repo.items[id] = it
	return nil
}

func (tx *memoryTx) UpdateItem(ctx context.Context, id int64, v EditValues) error {
	for _, existing := range tx.repo.items {
		if existing.ID != id && existing.Name == v.Name {
			return shared.DuplicateError{Entity: "item", Name: v.Name}
		}
	}
	it := tx.repo.items[id]
	it.Name, it.Description, it.BasePrice, it.MarkupPercent = v.Name, v.Description, v.BasePrice, v.MarkupPercent
	tx.repo.items[id] = it
	return nil
}

func (tx *memoryTx) InsertEdit(ctx context.Context, edit ItemEdit) error {
	edit.ID = int64(len(tx.repo.edits) + 1)
	tx.repo.edits = append(tx.repo.edits, edit)
	return nil
}

func (tx *memoryTx) DeleteTransactions(ctx context.Context, itemID int64) (int64, error) {
	kept := tx.repo.txns[:0]
	var n int64
	for _, t := range tx.repo.txns {
		if t.itemID == itemID {
			n++
			continue
		}
		kept = append(kept, t)
	}
	tx.repo.txns = kept
	return n, nil
}

func (tx *memoryTx) DeleteEdits(ctx context.Context, itemID int64) (int64, error) {
	kept := tx.repo.edits[:0]
	var n int64
	for _, e := range tx.repo.edits {
		if e.ItemID == itemID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	tx.repo.edits = kept
	return n, nil
}

func (tx *memoryTx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := tx.repo.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(tx.repo.items, id)
	return nil
}

func (tx *memoryTx) RecordApproval(ctx context.Context, log shared.ApprovalLog) error {
	tx.repo.approvals = append(tx.repo.approvals, log)
	return nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) NotifyAdmins(ctx context.Context, msg string) error {
	n.messages = append(n.messages, msg)
	return nil
}

type countingCache struct {
	bumps int
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.bumps++
	return nil
}

var (
	admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}
	staff = shared.Actor{ID: 2, Role: shared.RoleStaff}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProposeAndApproveItem(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, nil, notifier, nil, nil)
	ctx := context.Background()

	item, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: " Bolt ", BasePrice: dec("100.00")})
	require.NoError(t, err)
	require.Equal(t, "Bolt", item.Name)
	require.Equal(t, StatusPending, item.Status)
	require.True(t, item.MarkupPercent.IsZero())
	require.Equal(t, []string{"New item 'Bolt' submitted for admin approval."}, notifier.messages)

	_, err = svc.GetApproved(ctx, item.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.ApproveItem(ctx, staff, item.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	approved, err := svc.ApproveItem(ctx, admin, item.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	_, err = svc.ApproveItem(ctx, admin, item.ID)
	require.ErrorIs(t, err, shared.ErrState)
	require.ErrorIs(t, svc.RejectItem(ctx, admin, item.ID), shared.ErrState)

	_, err = svc.ApproveItem(ctx, admin, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.Len(t, repo.approvals, 2)
	require.Equal(t, shared.ApprovalSubmit, repo.approvals[0].Action)
	require.Equal(t, shared.ApprovalApprove, repo.approvals[1].Action)
}

func TestProposeItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "  ", BasePrice: dec("1")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Nut", BasePrice: dec("-0.01")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProposeItem(ctx, shared.Actor{}, ProposeItemInput{Name: "Nut"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Nut", BasePrice: dec("2")})
	require.NoError(t, err)
	_, err = svc.ProposeItem(ctx, admin, ProposeItemInput{Name: "Nut", BasePrice: dec("3")})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestRejectItemDeletesProposal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	item, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Washer", BasePrice: dec("1.50")})
	require.NoError(t, err)
	require.NoError(t, svc.RejectItem(ctx, admin, item.ID))
	require.NotContains(t, repo.items, item.ID)

	// The name is free again.
	_, err = svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Washer", BasePrice: dec("1.50")})
	require.NoError(t, err)
}

func TestEditItemRecordsHistory(t *testing.T) {
	repo := newMemoryRepo()
	cache := &countingCache{}
	svc := NewService(repo, nil, nil, cache, nil)
	ctx := context.Background()

	item, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Bolt", BasePrice: dec("100.00")})
	require.NoError(t, err)

	_, err = svc.EditItem(ctx, admin, item.ID, EditItemInput{Name: "Bolt", BasePrice: dec("100"), MarkupPercent: dec("20")})
	require.ErrorIs(t, err, shared.ErrState, "pending items cannot be edited")

	_, err = svc.ApproveItem(ctx, admin, item.ID)
	require.NoError(t, err)

	updated, err := svc.EditItem(ctx, admin, item.ID, EditItemInput{Name: "Bolt M8", Description: "zinc", BasePrice: dec("100.00"), MarkupPercent: dec("20")})
	require.NoError(t, err)
	require.Equal(t, "Bolt M8", updated.Name)
	require.Equal(t, 1, cache.bumps)

	edits, err := svc.ListEdits(ctx, admin, item.ID)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	require.Equal(t, "Bolt", edits[0].OldValues.Name)
	require.Equal(t, "Bolt M8", edits[0].NewValues.Name)
	require.True(t, edits[0].NewValues.MarkupPercent.Equal(dec("20")))

	card, err := svc.GetApproved(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "120.00", card.SellingPrice.StringFixed(2))

	_, err = svc.EditItem(ctx, admin, item.ID, EditItemInput{Name: "Bolt M8", BasePrice: dec("100"), MarkupPercent: dec("-1")})
	require.ErrorIs(t, err, shared.ErrValidation)

	other, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Nut", BasePrice: dec("1")})
	require.NoError(t, err)
	_, err = svc.ApproveItem(ctx, admin, other.ID)
	require.NoError(t, err)
	_, err = svc.EditItem(ctx, admin, other.ID, EditItemInput{Name: "Bolt M8", BasePrice: dec("1")})
	require.ErrorIs(t, err, shared.ErrDuplicate)
	edits, err = svc.ListEdits(ctx, admin, other.ID)
	require.NoError(t, err)
	require.Empty(t, edits)
}

func TestDeleteItemCascades(t *testing.T) {
	repo := newMemoryRepo()
	cache := &countingCache{}
	svc := NewService(repo, nil, nil, cache, nil)
	ctx := context.Background()

	item, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Bolt", BasePrice: dec("10")})
	require.NoError(t, err)
	_, err = svc.ApproveItem(ctx, admin, item.ID)
	require.NoError(t, err)
	_, err = svc.EditItem(ctx, admin, item.ID, EditItemInput{Name: "Bolt", BasePrice: dec("12")})
	require.NoError(t, err)
	repo.txns = append(repo.txns,
		memoryTxn{itemID: item.ID, inbound: true, qty: 5, status: "approved"},
		memoryTxn{itemID: item.ID, inbound: false, qty: 1, status: "pending"},
		memoryTxn{itemID: 77, inbound: true, qty: 9, status: "approved"},
	)

	require.ErrorIs(t, svc.DeleteItem(ctx, staff, item.ID), shared.ErrForbidden)
	require.NoError(t, svc.DeleteItem(ctx, admin, item.ID))

	_, err = svc.GetApproved(ctx, item.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, repo.txns, 1)
	require.Empty(t, repo.edits)
	require.Equal(t, 2, cache.bumps)

	require.ErrorIs(t, svc.DeleteItem(ctx, admin, item.ID), shared.ErrNotFound)
}

func TestListInventoryDerivesStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	item, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Bolt", BasePrice: dec("50")})
	require.NoError(t, err)
	_, err = svc.ApproveItem(ctx, admin, item.ID)
	require.NoError(t, err)
	_, err = svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Pending", BasePrice: dec("50")})
	require.NoError(t, err)
	repo.txns = append(repo.txns,
		memoryTxn{itemID: item.ID, inbound: true, qty: 10, status: "approved"},
		memoryTxn{itemID: item.ID, inbound: false, qty: 4, status: "approved"},
		memoryTxn{itemID: item.ID, inbound: false, qty: 100, status: "rejected"},
		memoryTxn{itemID: item.ID, inbound: true, qty: 100, status: "pending"},
	)

	rows, err := svc.ListInventory(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 6, rows[0].Stock)
	require.Equal(t, "50.00", rows[0].SellingPrice.StringFixed(2))
}

func TestSetQRCodePath(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	item, err := svc.ProposeItem(ctx, staff, ProposeItemInput{Name: "Bolt", BasePrice: dec("1")})
	require.NoError(t, err)
	require.ErrorIs(t, svc.SetQRCodePath(ctx, item.ID, " "), shared.ErrValidation)
	require.NoError(t, svc.SetQRCodePath(ctx, item.ID, "qrcodes/1.png"))
	require.Equal(t, "qrcodes/1.png", repo.items[item.ID].QRCodePath)
	require.ErrorIs(t, svc.SetQRCodePath(ctx, 404, "x"), shared.ErrNotFound)
}

func TestHandlerProposeAndReview(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	actor := staff
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	NewHandler(nil, svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Bolt","base_price":"100.00"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pending", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	actor = admin
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/1/approve", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/1/approve", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"current_stock":0`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
