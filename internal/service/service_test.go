package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/storagetest"
)

func ref(id string) models.MemberRef {
	return models.MemberRef{ID: id, Name: "Name " + id}
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]models.GroupSummary
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]models.GroupSummary)}
}

func (c *fakeCache) Get(_ context.Context, userID string) (models.GroupSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[userID]
	return s, ok
}

func (c *fakeCache) Set(_ context.Context, userID string, s models.GroupSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = s
}

func (c *fakeCache) Invalidate(_ context.Context, userIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.entries, id)
		c.invalidated = append(c.invalidated, id)
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.LedgerEvent
}

func (p *fakePublisher) Publish(_ context.Context, e models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc   *LedgerService
	store storage.Store
	cache *fakeCache
	pub   *fakePublisher
	m     *metrics.Metrics
}

func newFixture(t *testing.T, store storage.Store, opts ...Option) *fixture {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	f := &fixture{store: store, cache: newFakeCache(), pub: &fakePublisher{}, m: metrics.New(prometheus.NewRegistry())}
	clock := time.Unix(1_700_000_000, 0)
	opts = append([]Option{
		WithSummaryCache(f.cache),
		WithEventPublisher(f.pub),
		WithMetrics(f.m),
		WithClock(func() time.Time { return clock }),
	}, opts...)
	f.svc = New(store, opts...)
	return f
}

// groupOf creates a group by the first id and joins the rest.
func (f *fixture) groupOf(t *testing.T, ids ...string) *models.Group {
	t.Helper()
	ctx := context.Background()
	g, err := f.svc.CreateGroup(ctx, ref(ids[0]), "Flat 3B", "")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	for _, id := range ids[1:] {
		if g, err = f.svc.JoinGroup(ctx, g.ID, ref(id)); err != nil {
			t.Fatalf("JoinGroup(%s): %v", id, err)
		}
	}
	return g
}

func balances(g *models.Group) map[string]money.Money {
	out := make(map[string]money.Money)
	for _, m := range g.Members {
		out[m.ID] = m.Balance
	}
	return out
}

func TestDinnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	g := f.groupOf(t, "a", "b", "c")

	e, err := f.svc.AddExpense(ctx, g.ID, "a", ledger.ExpenseDraft{
		Title:    "Dinner",
		Amount:   money.MustParse("30.00"),
		SharedBy: []string{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if e.PaidBy.ID != "a" || e.Date == 0 || e.ID == "" {
		t.Errorf("expense defaults not applied: %+v", e)
	}

	got, err := f.svc.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]money.Money{"a": 2000, "b": -1000, "c": -1000}
	for id, w := range want {
		if b := balances(got)[id]; b != w {
			t.Errorf("%s balance = %s, want %s", id, b, w)
		}
	}
	if got.TotalExpenses != 3000 || got.TotalBalance != 2000 {
		t.Errorf("totals = %s / %s", got.TotalExpenses, got.TotalBalance)
	}

	if err := f.svc.DeleteExpense(ctx, e.ID, "b"); !errors.Is(err, apperr.ErrNotPayer) {
		t.Fatalf("DeleteExpense by b = %v, want NotPayer", err)
	}
	unchanged, _ := f.svc.GetGroup(ctx, g.ID)
	if unchanged.Version != got.Version || balances(unchanged)["b"] != -1000 {
		t.Error("unauthorised delete changed the group")
	}

	if err := f.svc.DeleteExpense(ctx, e.ID, "a"); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	after, _ := f.svc.GetGroup(ctx, g.ID)
	for id, b := range balances(after) {
		if !b.IsZero() {
			t.Errorf("%s balance = %s after delete", id, b)
		}
	}
	if !after.TotalExpenses.IsZero() {
		t.Errorf("TotalExpenses = %s after delete", after.TotalExpenses)
	}
	if err := f.svc.DeleteExpense(ctx, e.ID, "a"); !errors.Is(err, apperr.ErrExpenseNotFound) {
		t.Errorf("second delete = %v, want ExpenseNotFound", err)
	}

	wantEvents := []models.EventType{
		models.EventGroupCreated, models.EventMemberJoined, models.EventMemberJoined,
		models.EventExpenseAdded, models.EventExpenseDeleted,
	}
	if got := f.pub.types(); fmt.Sprint(got) != fmt.Sprint(wantEvents) {
		t.Errorf("events = %v, want %v", got, wantEvents)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, WithMaxAmount(money.MustParse("100")))
	g := f.groupOf(t, "a", "b")

	tests := []struct {
		name     string
		actingID string
		draft    ledger.ExpenseDraft
		want     error
	}{
		{"outsider", "z", ledger.ExpenseDraft{Title: "x", Amount: 100, SharedBy: []string{"a"}}, apperr.ErrNotMember},
		{"unknown sharer", "a", ledger.ExpenseDraft{Title: "x", Amount: 100, SharedBy: []string{"a", "q"}}, apperr.ErrUnknownMember},
		{"no sharers", "a", ledger.ExpenseDraft{Title: "x", Amount: 100}, apperr.ErrNoParticipants},
		{"blank title", "a", ledger.ExpenseDraft{Title: " ", Amount: 100, SharedBy: []string{"a"}}, apperr.ErrInvalidTitle},
		{"over max", "a", ledger.ExpenseDraft{Title: "x", Amount: money.MustParse("100.01"), SharedBy: []string{"a"}}, apperr.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddExpense(ctx, g.ID, tt.actingID, tt.draft)
			if !errors.Is(err, tt.want) {
				t.Errorf("AddExpense() error = %v, want %v", err, tt.want)
			}
		})
	}

	after, _ := f.svc.GetGroup(ctx, g.ID)
	if after.Version != g.Version {
		t.Error("rejected expenses touched the group")
	}
	if _, err := f.svc.AddExpense(ctx, "missing", "a", ledger.ExpenseDraft{Title: "x", Amount: 1, SharedBy: []string{"a"}}); !errors.Is(err, apperr.ErrGroupNotFound) {
		t.Errorf("AddExpense(missing group) = %v", err)
	}
}

func TestJoinTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	g := f.groupOf(t, "a", "b")

	_, err := f.svc.JoinGroup(ctx, g.ID, ref("b"))
	if !errors.Is(err, apperr.ErrAlreadyMember) {
		t.Fatalf("JoinGroup twice = %v, want AlreadyMember", err)
	}
	got, _ := f.svc.GetGroup(ctx, g.ID)
	if len(got.Members) != 2 {
		t.Errorf("members = %v", got.MemberIDs)
	}
	if _, err := f.svc.JoinGroup(ctx, "missing", ref("c")); !errors.Is(err, apperr.ErrGroupNotFound) {
		t.Errorf("JoinGroup(missing) = %v", err)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateGroup(context.Background(), ref("a"), "ab", "")
	if !errors.Is(err, apperr.ErrInvalidName) {
		t.Errorf("CreateGroup(short name) = %v", err)
	}
	if groups, _ := f.svc.ListGroups(context.Background(), "a"); len(groups) != 0 {
		t.Errorf("rejected group was stored: %d groups", len(groups))
	}
}

func TestConcurrentExpensesNeverLoseUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, WithMaxCommitAttempts(1000))
	g := f.groupOf(t, "a", "b", "c")

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payer := []string{"a", "b", "c"}[i%3]
			_, err := f.svc.AddExpense(ctx, g.ID, payer, ledger.ExpenseDraft{
				Title:    fmt.Sprintf("item %d", i),
				Amount:   1000,
				SharedBy: []string{"a", "b", "c"},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
	}

	got, _ := f.svc.GetGroup(ctx, g.ID)
	if got.TotalExpenses != n*1000 {
		t.Errorf("TotalExpenses = %s, want %s", got.TotalExpenses, money.Money(n*1000))
	}
	if err := ledger.CheckInvariants(got); err != nil {
		t.Errorf("invariants after concurrent writes: %v", err)
	}
	expenses, _ := f.svc.ListExpenses(ctx, g.ID, "a")
	if len(expenses) != n {
		t.Errorf("expenses = %d, want %d", len(expenses), n)
	}
}

// flakyStore lets tests inject failures into selected store calls.
type flakyStore struct {
	storage.Store
	txErr       error
	txCalls     int
	deleteBatch error

	// listErr fails the next ListExpensesByGroup, then clears itself.
	listErr     error
	onList      func()
	groupDelErr error
	onGroupDel  func()
}

func (s *flakyStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	if s.onList != nil {
		hook := s.onList
		s.onList = nil
		hook()
	}
	if err := s.listErr; err != nil {
		s.listErr = nil
		return nil, err
	}
	return s.Store.ListExpensesByGroup(ctx, groupID)
}

func (s *flakyStore) DeleteGroup(ctx context.Context, groupID string) error {
	if s.onGroupDel != nil {
		s.onGroupDel()
	}
	if s.groupDelErr != nil {
		return s.groupDelErr
	}
	return s.Store.DeleteGroup(ctx, groupID)
}

func (s *flakyStore) RunInTx(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
	s.txCalls++
	if s.txErr != nil {
		return s.txErr
	}
	return s.Store.RunInTx(ctx, fn)
}

func (s *flakyStore) DeleteExpenses(ctx context.Context, groupID string, ids []string) error {
	if s.deleteBatch != nil {
		return s.deleteBatch
	}
	return s.Store.DeleteExpenses(ctx, groupID, ids)
}

func TestConflictRetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	f := newFixture(t, fs, WithMaxCommitAttempts(3))
	g := f.groupOf(t, "a")

	fs.txErr = storage.ErrConflict
	fs.txCalls = 0
	_, err := f.svc.JoinGroup(ctx, g.ID, ref("b"))
	if !errors.Is(err, apperr.ErrCommitConflict) {
		t.Fatalf("JoinGroup() = %v, want CommitConflict", err)
	}
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("kind = %s", apperr.KindOf(err))
	}
	if fs.txCalls != 3 {
		t.Errorf("attempts = %d, want 3", fs.txCalls)
	}
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	f := newFixture(t, fs)
	g := f.groupOf(t, "a")

	disk := errors.New("disk full")
	fs.txErr = disk
	_, err := f.svc.JoinGroup(ctx, g.ID, ref("b"))
	if apperr.CodeOf(err) != apperr.CodeStorage {
		t.Fatalf("JoinGroup() = %v, want storage error", err)
	}
	if !errors.Is(err, disk) {
		t.Error("cause lost")
	}
}

func TestDeleteGroupCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, WithCascadeBatchSize(3))
	g := f.groupOf(t, "a", "b")
	other := f.groupOf(t, "b", "a")

	for i := range 7 {
		if _, err := f.svc.AddExpense(ctx, g.ID, "a", ledger.ExpenseDraft{Title: fmt.Sprint(i), Amount: 500, SharedBy: []string{"a", "b"}}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.AddExpense(ctx, other.ID, "b", ledger.ExpenseDraft{Title: "keep", Amount: 500, SharedBy: []string{"a"}}); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.DeleteGroup(ctx, g.ID, "b"); !errors.Is(err, apperr.ErrNotCreator) {
		t.Fatalf("DeleteGroup by b = %v, want NotCreator", err)
	}
	if err := f.svc.DeleteGroup(ctx, g.ID, "a"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	if _, err := f.svc.GetGroup(ctx, g.ID); !errors.Is(err, apperr.ErrGroupNotFound) {
		t.Errorf("GetGroup after delete = %v", err)
	}
	left, _ := f.store.ListExpensesByGroup(ctx, g.ID)
	if len(left) != 0 {
		t.Errorf("%d expenses survived", len(left))
	}
	kept, _ := f.store.ListExpensesByGroup(ctx, other.ID)
	if len(kept) != 1 {
		t.Error("other group's expenses were touched")
	}
	groups, _ := f.svc.ListGroups(ctx, "b")
	if len(groups) != 1 || groups[0].ID != other.ID {
		t.Errorf("ListGroups(b) after delete = %d groups", len(groups))
	}
}

func TestDeleteGroupReportsIncompleteCascade(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	f := newFixture(t, fs)
	g := f.groupOf(t, "a", "b")
	if _, err := f.svc.AddExpense(ctx, g.ID, "a", ledger.ExpenseDraft{Title: "x", Amount: 100, SharedBy: []string{"b"}}); err != nil {
		t.Fatal(err)
	}

	fs.deleteBatch = errors.New("quota exceeded")
	err := f.svc.DeleteGroup(ctx, g.ID, "a")
	if !errors.Is(err, apperr.ErrCascadeIncomplete) {
		t.Fatalf("DeleteGroup() = %v, want CascadeIncomplete", err)
	}
	if _, err := f.svc.GetGroup(ctx, g.ID); err != nil {
		t.Errorf("group should survive a failed cascade: %v", err)
	}

	fs.deleteBatch = nil
	if err := f.svc.DeleteGroup(ctx, g.ID, "a"); err != nil {
		t.Fatalf("retry DeleteGroup: %v", err)
	}
}

func TestDeleteGroupFailureLateInCascadeIsResumable(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	f := newFixture(t, fs)
	g := f.groupOf(t, "a", "b")
	if _, err := f.svc.AddExpense(ctx, g.ID, "a", ledger.ExpenseDraft{Title: "Rent", Amount: 900, SharedBy: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}

	var lateErr error
	fs.onGroupDel = func() {
		_, lateErr = f.svc.AddExpense(ctx, g.ID, "b", ledger.ExpenseDraft{Title: "Late", Amount: 300, SharedBy: []string{"a"}})
	}
	fs.groupDelErr = errors.New("unavailable")

	err := f.svc.DeleteGroup(ctx, g.ID, "a")
	if !errors.Is(err, apperr.ErrCascadeIncomplete) {
		t.Fatalf("DeleteGroup() = %v, want CascadeIncomplete", err)
	}
	if !errors.Is(lateErr, apperr.ErrGroupDeleting) {
		t.Errorf("AddExpense during deletion = %v, want GroupDeleting", lateErr)
	}
	if _, err := f.svc.JoinGroup(ctx, g.ID, ref("c")); !errors.Is(err, apperr.ErrGroupDeleting) {
		t.Errorf("JoinGroup during deletion = %v, want GroupDeleting", err)
	}
	kept, err := f.svc.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("group must remain until the cascade finishes: %v", err)
	}
	if !kept.Deleting {
		t.Error("group left without its deleting mark")
	}

	if err := f.svc.DeleteGroup(ctx, g.ID, "b"); !errors.Is(err, apperr.ErrNotCreator) {
		t.Errorf("resume by non-creator = %v, want NotCreator", err)
	}

	fs.onGroupDel = nil
	fs.groupDelErr = nil
	fs.listErr = errors.New("unavailable")
	if err := f.svc.DeleteGroup(ctx, g.ID, "a"); !errors.Is(err, apperr.ErrCascadeIncomplete) {
		t.Fatalf("DeleteGroup with failing listing = %v, want CascadeIncomplete", err)
	}
	if err := f.svc.DeleteGroup(ctx, g.ID, "a"); err != nil {
		t.Fatalf("resumed DeleteGroup: %v", err)
	}
	if _, err := f.svc.GetGroup(ctx, g.ID); !errors.Is(err, apperr.ErrGroupNotFound) {
		t.Errorf("GetGroup after delete = %v", err)
	}
	left, _ := f.store.ListExpensesByGroup(ctx, g.ID)
	if len(left) != 0 {
		t.Errorf("%d expenses orphaned", len(left))
	}
}

func TestSummaryAcrossGroups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	g1 := f.groupOf(t, "u", "v")
	g2 := f.groupOf(t, "w", "u")

	if _, err := f.svc.AddExpense(ctx, g1.ID, "u", ledger.ExpenseDraft{Title: "Rent", Amount: 3000, SharedBy: []string{"u", "v"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddExpense(ctx, g2.ID, "w", ledger.ExpenseDraft{Title: "Cab", Amount: 1000, SharedBy: []string{"u", "w"}}); err != nil {
		t.Fatal(err)
	}

	s, err := f.svc.GetSummary(ctx, "u")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if s.TotalOwedToUser != 1500 || s.TotalUserOwes != 500 || s.NetBalance != 1000 {
		t.Errorf("summary = owed %s owes %s net %s, want 15.00/5.00/10.00", s.TotalOwedToUser, s.TotalUserOwes, s.NetBalance)
	}
	if s.PerCounterparty["v"] != 1500 || s.PerCounterparty["w"] != -500 {
		t.Errorf("PerCounterparty = %v", s.PerCounterparty)
	}
	if s.TotalPaid != 3000 || s.TotalShare != 2000 {
		t.Errorf("spending = paid %s share %s", s.TotalPaid, s.TotalShare)
	}

	if _, ok := f.cache.Get(ctx, "u"); !ok {
		t.Fatal("summary was not cached")
	}
	if _, err := f.svc.AddExpense(ctx, g1.ID, "v", ledger.ExpenseDraft{Title: "Gas", Amount: 200, SharedBy: []string{"u"}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.cache.Get(ctx, "u"); ok {
		t.Error("cache not invalidated by a commit in the user's group")
	}
	s, _ = f.svc.GetSummary(ctx, "u")
	if s.TotalOwedToUser != 1300 {
		t.Errorf("TotalOwedToUser after gas = %s, want 13.00", s.TotalOwedToUser)
	}
}

func TestSummaryNotCachedWhenCommitRacesRead(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	f := newFixture(t, fs)
	g := f.groupOf(t, "u", "v")

	var commitErr error
	fs.onList = func() {
		_, commitErr = f.svc.AddExpense(ctx, g.ID, "u", ledger.ExpenseDraft{Title: "Dinner", Amount: 3000, SharedBy: []string{"u", "v"}})
	}
	first, err := f.svc.GetSummary(ctx, "u")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if commitErr != nil {
		t.Fatalf("AddExpense during summary: %v", commitErr)
	}
	if !first.TotalOwedToUser.IsZero() {
		t.Fatalf("first summary owed = %s, want 0.00 from the earlier read", first.TotalOwedToUser)
	}
	if _, ok := f.cache.Get(ctx, "u"); ok {
		t.Error("summary computed across a commit was cached")
	}

	second, err := f.svc.GetSummary(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if second.TotalOwedToUser != money.MustParse("15.00") {
		t.Errorf("second summary owed = %s, want 15.00", second.TotalOwedToUser)
	}
	if _, ok := f.cache.Get(ctx, "u"); !ok {
		t.Error("fresh summary was not cached")
	}
}

func TestFillGuard(t *testing.T) {
	var g fillGuard
	gen := g.current("u")
	g.bump("u", "v")

	set := false
	if g.fill("u", gen, func() { set = true }) || set {
		t.Error("fill after bump must be dropped")
	}
	if !g.fill("u", g.current("u"), func() { set = true }) || !set {
		t.Error("fill at current generation must run")
	}
	if !g.fill("w", 0, func() {}) {
		t.Error("untouched user starts at generation zero")
	}
}

func TestGetGroupBalances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	g := f.groupOf(t, "a", "b", "c")
	if _, err := f.svc.AddExpense(ctx, g.ID, "a", ledger.ExpenseDraft{Title: "Dinner", Amount: 3000, SharedBy: []string{"a", "b", "c"}}); err != nil {
		t.Fatal(err)
	}

	gb, err := f.svc.GetGroupBalances(ctx, g.ID, "b")
	if err != nil {
		t.Fatalf("GetGroupBalances: %v", err)
	}
	if len(gb.Balances) != 3 || len(gb.Settlements) != 2 {
		t.Fatalf("balances=%d settlements=%d", len(gb.Balances), len(gb.Settlements))
	}
	var toA money.Money
	for _, d := range gb.Settlements {
		if d.To != "a" {
			t.Errorf("settlement to %s, want a", d.To)
		}
		toA += d.Amount
	}
	if toA != 2000 {
		t.Errorf("settled to a = %s, want 20.00", toA)
	}
	if _, err := f.svc.GetGroupBalances(ctx, g.ID, "z"); !errors.Is(err, apperr.ErrNotMember) {
		t.Errorf("outsider = %v, want NotMember", err)
	}
}

func TestWatchGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, nil)
	g := f.groupOf(t, "a", "b")

	ch, err := f.svc.WatchGroups(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	storagetest.Await(t, ch, func(s storage.GroupsSnapshot) bool { return len(s.Items) == 1 })

	if _, err := f.svc.AddExpense(ctx, g.ID, "a", ledger.ExpenseDraft{Title: "x", Amount: 800, SharedBy: []string{"b"}}); err != nil {
		t.Fatal(err)
	}
	storagetest.Await(t, ch, func(s storage.GroupsSnapshot) bool {
		return len(s.Items) == 1 && balances(s.Items[0])["b"] == -800
	})
}

func TestWatchExpensesRequiresMembership(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, nil)
	g := f.groupOf(t, "a", "b")

	if _, err := f.svc.WatchExpenses(ctx, g.ID, "z"); !errors.Is(err, apperr.ErrNotMember) {
		t.Fatalf("WatchExpenses(outsider) = %v", err)
	}
	ch, err := f.svc.WatchExpenses(ctx, g.ID, "a")
	if err != nil {
		t.Fatal(err)
	}
	storagetest.Await(t, ch, func(s storage.ExpensesSnapshot) bool { return len(s.Items) == 0 })
	e, err := f.svc.AddExpense(ctx, g.ID, "b", ledger.ExpenseDraft{Title: "x", Amount: 800, SharedBy: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	storagetest.Await(t, ch, func(s storage.ExpensesSnapshot) bool {
		return len(s.Items) == 1 && s.Items[0].ID == e.ID
	})
}
