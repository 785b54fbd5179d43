package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/stockledger/internal/pricing"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	items     map[int64]ItemSnapshot
	companies map[int64]string
	txns      []Transaction
	approvals []shared.ApprovalLog
	nextTxID  int64
	nextCoID  int64
	lastLimit int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]ItemSnapshot{}, companies: map[int64]string{}}
}

func (r *memoryRepo) addItem(it ItemSnapshot) {
	r.items[it.ID] = it
}

func (r *memoryRepo) addCompany(name string) int64 {
	r.nextCoID++
	r.companies[r.nextCoID] = name
	return r.nextCoID
}

// WithTx runs fn against a copy that replaces the repo only on success.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := &memoryRepo{
		items:     make(map[int64]ItemSnapshot, len(r.items)),
		companies: make(map[int64]string, len(r.companies)),
		txns:      append([]Transaction(nil), r.txns...),
		approvals: append([]shared.ApprovalLog(nil), r.approvals...),
		nextTxID:  r.nextTxID,
		nextCoID:  r.nextCoID,
	}
	for k, v := range r.items {
		work.items[k] = v
	}
	for k, v := range r.companies {
		work.companies[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: work}); err != nil {
		return err
	}
	r.items, r.companies, r.txns, r.approvals = work.items, work.companies, work.txns, work.approvals
	r.nextTxID, r.nextCoID = work.nextTxID, work.nextCoID
	return nil
}

func (r *memoryRepo) movements(itemID int64) []pricing.Movement {
	var out []pricing.Movement
	for _, t := range r.txns {
		if t.ItemID != itemID {
			continue
		}
		out = append(out, pricing.Movement{Inbound: t.Type == TypeIn, Approved: t.Status == StatusApproved, Quantity: t.Quantity})
	}
	return out
}

func (r *memoryRepo) Movements(ctx context.Context, itemID int64) ([]pricing.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[itemID]; !ok {
		return nil, shared.ErrNotFound
	}
	return r.movements(itemID), nil
}

func (r *memoryRepo) entries(filter func(Transaction) bool) []Entry {
	var out []Entry
	for _, t := range r.txns {
		if filter(t) {
			out = append(out, Entry{Transaction: t, ItemName: r.items[t.ItemID].Name, CompanyName: r.companies[t.CompanyID]})
		}
	}
	return out
}

func (r *memoryRepo) ListPending(ctx context.Context, userID *int64) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries(func(t Transaction) bool {
		return t.Status == StatusPending && (userID == nil || (t.UserID != nil && *t.UserID == *userID))
	}), nil
}

func (r *memoryRepo) ListApproved(ctx context.Context, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	out := r.entries(func(t Transaction) bool { return t.Status == StatusApproved })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (tx *memoryTx) ShareItem(ctx context.Context, id int64) (ItemSnapshot, error) {
	it, ok := tx.repo.items[id]
	if !ok {
		return ItemSnapshot{}, shared.ErrNotFound
	}
	return it, nil
}

func (tx *memoryTx) LockItem(ctx context.Context, id int64) (ItemSnapshot, error) {
	return tx.ShareItem(ctx, id)
}

func (tx *memoryTx) Movements(ctx context.Context, itemID int64) ([]pricing.Movement, error) {
	return tx.repo.movements(itemID), nil
}

func (tx *memoryTx) CompanyName(ctx context.Context, id int64) (string, error) {
	name, ok := tx.repo.companies[id]
	if !ok {
		return "", shared.Invalid("company_id", "unknown company")
	}
	return name, nil
}

func (tx *memoryTx) ResolveCompany(ctx context.Context, name string) (int64, error) {
	for id, existing := range tx.repo.companies {
		if existing == name {
			return id, nil
		}
	}
	return tx.repo.addCompany(name), nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	tx.repo.nextTxID++
	t.ID = tx.repo.nextTxID
	t.CreatedAt = time.Now()
	tx.repo.txns = append(tx.repo.txns, t)
	return t, nil
}

func (tx *memoryTx) find(id int64) (int, bool) {
	for i, t := range tx.repo.txns {
		if t.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (tx *memoryTx) TransactionItem(ctx context.Context, id int64) (int64, error) {
	i, ok := tx.find(id)
	if !ok {
		return 0, shared.ErrNotFound
	}
	return tx.repo.txns[i].ItemID, nil
}

func (tx *memoryTx) LockTransaction(ctx context.Context, id int64) (Transaction, error) {
	i, ok := tx.find(id)
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	return tx.repo.txns[i], nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, id int64, status Status) error {
	i, ok := tx.find(id)
	if !ok {
		return shared.ErrNotFound
	}
	tx.repo.txns[i].Status = status
	return nil
}

func (tx *memoryTx) DeleteApproved(ctx context.Context) (int64, error) {
	var kept []Transaction
	var n int64
	for _, t := range tx.repo.txns {
		if t.Status == StatusApproved {
			n++
			continue
		}
		kept = append(kept, t)
	}
	tx.repo.txns = kept
	return n, nil
}

func (tx *memoryTx) RecordApproval(ctx context.Context, log shared.ApprovalLog) error {
	tx.repo.approvals = append(tx.repo.approvals, log)
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return shared.IdempotencyConflict{Key: key}
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
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

type recordingMetrics struct {
	counts map[string]int
}

func (m *recordingMetrics) RecordTransition(kind, status string, n int) {
	m.counts[kind+":"+status] += n
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}
