package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

var (
	admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}
	staff = shared.Actor{ID: 2, Role: shared.RoleStaff}
)

type fixture struct {
	repo     *memoryRepo
	svc      *Service
	notifier *recordingNotifier
	cache    *countingCache
	metrics  *recordingMetrics
	audit    *recordingAudit
	idem     *memoryIdempotency
	acme     int64
}

const boltID = 10

func newFixture(cfg ServiceConfig) *fixture {
	f := &fixture{
		repo:     newMemoryRepo(),
		notifier: &recordingNotifier{},
		cache:    &countingCache{},
		metrics:  &recordingMetrics{counts: map[string]int{}},
		audit:    &recordingAudit{},
		idem:     &memoryIdempotency{keys: map[string]bool{}},
	}
	f.repo.addItem(ItemSnapshot{ID: boltID, Name: "Bolt", Status: "approved", BasePrice: decimal.RequireFromString("100.00"), MarkupPercent: decimal.RequireFromString("20")})
	f.repo.addItem(ItemSnapshot{ID: 11, Name: "Draft", Status: "pending", BasePrice: decimal.RequireFromString("5.00")})
	f.acme = f.repo.addCompany("Acme")
	f.svc = NewService(f.repo, Deps{
		Audit:       f.audit,
		Idempotency: f.idem,
		Notifier:    f.notifier,
		Cache:       f.cache,
		Metrics:     f.metrics,
	}, cfg)
	return f
}

func (f *fixture) stock(t *testing.T) int64 {
	t.Helper()
	n, err := f.svc.CurrentStock(context.Background(), boltID)
	require.NoError(t, err)
	return n
}

func (f *fixture) record(t *testing.T, txType TxType, qty int64) Transaction {
	t.Helper()
	tr, err := f.svc.RecordApprovedTransaction(context.Background(), admin, RecordInput{ItemID: boltID, Type: txType, Quantity: qty, CompanyID: f.acme})
	require.NoError(t, err)
	return tr
}

func TestProposeTransactionCapturesPrice(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()

	in, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 3, CompanyID: f.acme})
	require.NoError(t, err)
	require.Equal(t, StatusPending, in.Status)
	require.Equal(t, "100.00", in.UnitPrice.StringFixed(2))
	require.EqualValues(t, staff.ID, *in.UserID)

	out, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeOut, Quantity: 3, CompanyID: f.acme})
	require.NoError(t, err)
	require.Equal(t, "120.00", out.UnitPrice.StringFixed(2))
	require.Equal(t, "360.00", out.UnitPrice.Mul(decimal.NewFromInt(out.Quantity)).StringFixed(2))

	require.EqualValues(t, 0, f.stock(t), "pending rows never count")
	require.Len(t, f.notifier.messages, 2)
	require.Equal(t, "New staff proposal: Stock IN from Acme for item 'Bolt' (Qty: 3, Price: 100.00), pending admin approval.", f.notifier.messages[0])
	require.Equal(t, 2, f.metrics.counts["propose:pending"])
	require.Zero(t, f.cache.bumps)
}

func TestProposeTransactionValidation(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()

	cases := []ProposeInput{
		{ItemID: boltID, Type: TypeIn, Quantity: 0, CompanyID: f.acme},
		{ItemID: boltID, Type: "sideways", Quantity: 1, CompanyID: f.acme},
		{ItemID: 0, Type: TypeIn, Quantity: 1, CompanyID: f.acme},
		{ItemID: boltID, Type: TypeIn, Quantity: 1},
		{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: 999},
		{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme, IdempotencyKey: "not-a-uuid"},
	}
	for _, input := range cases {
		_, err := f.svc.ProposeTransaction(ctx, staff, input)
		require.ErrorIs(t, err, shared.ErrValidation, "%+v", input)
	}

	_, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: 404, Type: TypeIn, Quantity: 1, CompanyID: f.acme})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: 11, Type: TypeIn, Quantity: 1, CompanyID: f.acme})
	require.ErrorIs(t, err, shared.ErrState)

	_, err = f.svc.ProposeTransaction(ctx, shared.Actor{}, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme})
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.Empty(t, f.repo.txns)
}

func TestProposeTransactionResolvesNewCompany(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()

	first, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme, NewCompanyName: " Globex "})
	require.NoError(t, err)
	require.NotEqual(t, f.acme, first.CompanyID, "a new company name wins over the selected id")

	second, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, NewCompanyName: "Globex"})
	require.NoError(t, err)
	require.Equal(t, first.CompanyID, second.CompanyID)

	third, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, NewCompanyName: "Acme"})
	require.NoError(t, err)
	require.Equal(t, f.acme, third.CompanyID)
	require.Len(t, f.repo.companies, 2)
}

func TestProposeTransactionIdempotencyKey(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()
	key := "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f"

	_, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme, IdempotencyKey: key})
	require.NoError(t, err)
	_, err = f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme, IdempotencyKey: key})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.ErrorIs(t, err, shared.ErrDuplicate)
	require.Len(t, f.repo.txns, 1)

	// A failed proposal releases its key.
	other := "0f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f"
	_, err = f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: 404, Type: TypeIn, Quantity: 1, CompanyID: f.acme, IdempotencyKey: other})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.NotContains(t, f.idem.keys, other)
}

func TestApproveRejectStateMachine(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()

	p1, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 10, CompanyID: f.acme})
	require.NoError(t, err)
	p2, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 5, CompanyID: f.acme})
	require.NoError(t, err)

	_, err = f.svc.ApproveTransaction(ctx, staff, p1.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	approved, err := f.svc.ApproveTransaction(ctx, admin, p1.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.EqualValues(t, 10, f.stock(t))

	rejected, err := f.svc.RejectTransaction(ctx, admin, p2.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.EqualValues(t, 10, f.stock(t), "rejection never changes stock")

	for _, id := range []int64{p1.ID, p2.ID} {
		_, err = f.svc.ApproveTransaction(ctx, admin, id)
		require.ErrorIs(t, err, shared.ErrState)
		_, err = f.svc.RejectTransaction(ctx, admin, id)
		require.ErrorIs(t, err, shared.ErrState)
	}
	_, err = f.svc.ApproveTransaction(ctx, admin, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)

	var actions []shared.ApprovalAction
	for _, l := range f.repo.approvals {
		actions = append(actions, l.Action)
	}
	require.Equal(t, []shared.ApprovalAction{shared.ApprovalSubmit, shared.ApprovalSubmit, shared.ApprovalApprove, shared.ApprovalReject}, actions)
	require.Equal(t, 1, f.metrics.counts["approve:approved"])
	require.Equal(t, 1, f.metrics.counts["reject:rejected"])
	require.Equal(t, 2, f.cache.bumps)
}

func TestApprovalSkipsStockCheckByDefault(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()

	p, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeOut, Quantity: 4, CompanyID: f.acme})
	require.NoError(t, err)
	_, err = f.svc.ApproveTransaction(ctx, admin, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, -4, f.stock(t))
}

func TestApprovalStockCheckWhenEnabled(t *testing.T) {
	f := newFixture(ServiceConfig{CheckStockOnApproval: true})
	ctx := context.Background()
	f.record(t, TypeIn, 3)

	p, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeOut, Quantity: 4, CompanyID: f.acme})
	require.NoError(t, err)
	_, err = f.svc.ApproveTransaction(ctx, admin, p.ID)
	var insufficient shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.EqualValues(t, 3, insufficient.Available)
	require.EqualValues(t, 4, insufficient.Requested)

	pending, err := f.svc.ListPending(ctx, admin, false)
	require.NoError(t, err)
	require.Len(t, pending, 1, "the proposal stays pending")
	require.EqualValues(t, 3, f.stock(t))
}

func TestRecordApprovedOutChecksStock(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()
	f.record(t, TypeIn, 5)

	_, err := f.svc.RecordApprovedTransaction(ctx, admin, RecordInput{ItemID: boltID, Type: TypeOut, Quantity: 6, CompanyID: f.acme})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	var insufficient shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.EqualValues(t, 5, insufficient.Available)
	require.EqualValues(t, 6, insufficient.Requested)
	require.Len(t, f.repo.txns, 1, "nothing written")

	out := f.record(t, TypeOut, 5)
	require.Equal(t, StatusApproved, out.Status)
	require.Equal(t, "120.00", out.UnitPrice.StringFixed(2))
	require.EqualValues(t, 0, f.stock(t))

	_, err = f.svc.RecordApprovedTransaction(ctx, staff, RecordInput{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme})
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = f.svc.RecordApprovedTransaction(ctx, admin, RecordInput{ItemID: boltID, Type: TypeIn, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStockInvariantIgnoresPendingAndRejected(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()
	f.record(t, TypeIn, 10)
	f.record(t, TypeOut, 4)

	for i := 0; i < 3; i++ {
		p, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeOut, Quantity: 100, CompanyID: f.acme})
		require.NoError(t, err)
		if i == 0 {
			_, err = f.svc.RejectTransaction(ctx, admin, p.ID)
			require.NoError(t, err)
		}
	}
	require.EqualValues(t, 6, f.stock(t))

	_, err := f.svc.CurrentStock(ctx, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClearAllApprovedRequiresPhrase(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()
	f.record(t, TypeIn, 10)
	f.record(t, TypeOut, 2)
	_, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme})
	require.NoError(t, err)

	for _, phrase := range []string{"", "confirm delete", "CONFIRM DELETE ", "CONFIRM  DELETE"} {
		_, err := f.svc.ClearAllApproved(ctx, admin, phrase)
		require.ErrorIs(t, err, shared.ErrConfirmation, phrase)
	}
	require.Len(t, f.repo.txns, 3)
	require.EqualValues(t, 8, f.stock(t))

	_, err = f.svc.ClearAllApproved(ctx, staff, ClearConfirmation)
	require.ErrorIs(t, err, shared.ErrForbidden)

	n, err := f.svc.ClearAllApproved(ctx, admin, ClearConfirmation)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.Len(t, f.repo.txns, 1, "pending rows survive")
	require.EqualValues(t, 0, f.stock(t))
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, 2, f.metrics.counts["clear:deleted"])
}

func TestListPendingScopesStaff(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()
	other := shared.Actor{ID: 3, Role: shared.RoleStaff}

	_, err := f.svc.ProposeTransaction(ctx, staff, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 1, CompanyID: f.acme})
	require.NoError(t, err)
	_, err = f.svc.ProposeTransaction(ctx, other, ProposeInput{ItemID: boltID, Type: TypeIn, Quantity: 2, CompanyID: f.acme})
	require.NoError(t, err)

	all, err := f.svc.ListPending(ctx, admin, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	mine, err := f.svc.ListPending(ctx, staff, false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Bolt", mine[0].ItemName)
	require.Equal(t, "Acme", mine[0].CompanyName)

	adminOwn, err := f.svc.ListPending(ctx, admin, true)
	require.NoError(t, err)
	require.Empty(t, adminOwn)
}

func TestListApprovedLimit(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.record(t, TypeIn, int64(i+1))
	}
	out, err := f.svc.ListApproved(ctx, staff, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.EqualValues(t, 3, out[0].Quantity)
}

func TestListApprovedLimitBounds(t *testing.T) {
	f := newFixture(ServiceConfig{})
	ctx := context.Background()
	cases := []struct {
		in, want int
	}{
		{0, 100},
		{-5, 100},
		{250, 250},
		{500, 500},
		{1000, 500},
	}
	for _, tc := range cases {
		_, err := f.svc.ListApproved(ctx, staff, tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, f.repo.lastLimit, "limit %d", tc.in)
	}
}
