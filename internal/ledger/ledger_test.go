package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func ref(id string) models.MemberRef {
	return models.MemberRef{ID: id, Name: strings.ToUpper(id)}
}

// groupABC builds a group created by a with b and c joined.
func groupABC(t *testing.T) *models.Group {
	t.Helper()
	g, err := NewGroup(ref("a"), "Flat 3B", "", 100)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	g.ID = "g1"
	for _, id := range []string{"b", "c"} {
		if err := Join(g, ref(id), 101); err != nil {
			t.Fatalf("Join(%s): %v", id, err)
		}
	}
	return g
}

func balanceOf(g *models.Group, id string) money.Money {
	m, _ := g.Member(id)
	return m.Balance
}

func TestNewGroup(t *testing.T) {
	tests := []struct {
		name        string
		groupName   string
		description string
		wantErr     error
	}{
		{"valid", "Roommates", "rent and bills", nil},
		{"trimmed to valid", "  abc  ", "", nil},
		{"too short after trim", "  ab  ", "", apperr.ErrInvalidName},
		{"empty", "", "", apperr.ErrInvalidName},
		{"fifty chars", strings.Repeat("x", 50), "", nil},
		{"fifty one chars", strings.Repeat("x", 51), "", apperr.ErrInvalidName},
		{"description at limit", "Trip", strings.Repeat("d", 200), nil},
		{"description too long", "Trip", strings.Repeat("d", 201), apperr.ErrInvalidDesc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGroup(ref("a"), tt.groupName, tt.description, 42)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewGroup() error = %v, want %v", err, tt.wantErr)
				}
				if !apperr.IsKind(err, apperr.KindValidation) {
					t.Errorf("expected validation kind, got %s", apperr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGroup() unexpected error: %v", err)
			}
			if g.CreatedBy != "a" || len(g.Members) != 1 || g.MemberIDs[0] != "a" {
				t.Errorf("creator should be sole member: %+v", g)
			}
			if !g.TotalExpenses.IsZero() || !g.Members[0].Balance.IsZero() {
				t.Error("new group should start at zero")
			}
			if g.Name != strings.TrimSpace(tt.groupName) {
				t.Errorf("Name = %q, want trimmed", g.Name)
			}
			if g.CreatedAt != 42 || g.UpdatedAt != 42 {
				t.Errorf("timestamps = %d/%d", g.CreatedAt, g.UpdatedAt)
			}
		})
	}
}

func TestJoinTwiceFails(t *testing.T) {
	g := groupABC(t)
	before := g.Clone()

	err := Join(g, ref("b"), 200)
	if !errors.Is(err, apperr.ErrAlreadyMember) {
		t.Fatalf("Join() error = %v, want AlreadyMember", err)
	}
	if len(g.Members) != 3 || len(g.MemberIDs) != 3 {
		t.Errorf("roster changed: %v", g.MemberIDs)
	}
	if g.UpdatedAt != before.UpdatedAt {
		t.Error("failed join must not touch the group")
	}
}

func TestDeletingGroupIsClosed(t *testing.T) {
	g := groupABC(t)
	MarkDeleting(g, 300)
	if !g.Deleting || g.UpdatedAt != 300 {
		t.Fatalf("MarkDeleting: %+v", g)
	}

	if err := Join(g, ref("d"), 301); !errors.Is(err, apperr.ErrGroupDeleting) {
		t.Errorf("Join() error = %v, want GroupDeleting", err)
	}
	if g.HasMember("d") {
		t.Error("member joined a deleting group")
	}
	_, err := NewExpense(g, ExpenseDraft{Title: "Late", Amount: 100, PaidBy: "a", SharedBy: []string{"b"}})
	if !errors.Is(err, apperr.ErrGroupDeleting) {
		t.Errorf("NewExpense() error = %v, want GroupDeleting", err)
	}
}

func TestJoinStartsNeutral(t *testing.T) {
	g := groupABC(t)
	e, err := NewExpense(g, ExpenseDraft{Title: "Dinner", Amount: money.MustParse("30.00"), PaidBy: "a", SharedBy: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(g, e, 300); err != nil {
		t.Fatal(err)
	}

	if err := Join(g, ref("d"), 301); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if balanceOf(g, "a") != 2000 || balanceOf(g, "b") != -1000 {
		t.Error("join redistributed existing balances")
	}
	if !balanceOf(g, "d").IsZero() {
		t.Errorf("new member balance = %s, want 0.00", balanceOf(g, "d"))
	}
}

func TestExpenseDraftValidate(t *testing.T) {
	g := groupABC(t)
	valid := ExpenseDraft{Title: "Taxi", Amount: 1000, PaidBy: "a", SharedBy: []string{"b"}}

	tests := []struct {
		name    string
		mutate  func(d *ExpenseDraft)
		wantErr error
	}{
		{"valid", func(d *ExpenseDraft) {}, nil},
		{"blank title", func(d *ExpenseDraft) { d.Title = "   " }, apperr.ErrInvalidTitle},
		{"zero amount", func(d *ExpenseDraft) { d.Amount = 0 }, apperr.ErrInvalidAmount},
		{"negative amount", func(d *ExpenseDraft) { d.Amount = -5 }, apperr.ErrInvalidAmount},
		{"nobody selected", func(d *ExpenseDraft) { d.SharedBy = nil }, apperr.ErrNoParticipants},
		{"outsider selected", func(d *ExpenseDraft) { d.SharedBy = []string{"b", "z"} }, apperr.ErrUnknownMember},
		{"outsider paid", func(d *ExpenseDraft) { d.PaidBy = "z" }, apperr.ErrUnknownMember},
		{"selected twice", func(d *ExpenseDraft) { d.SharedBy = []string{"b", "b"} }, apperr.New(apperr.CodeInvalidArgument, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			d.SharedBy = append([]string(nil), valid.SharedBy...)
			tt.mutate(&d)
			err := d.Validate(g)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDinnerScenario(t *testing.T) {
	g := groupABC(t)
	e, err := NewExpense(g, ExpenseDraft{
		Title:    " Dinner ",
		Amount:   money.MustParse("30.00"),
		PaidBy:   "a",
		SharedBy: []string{"a", "b", "c"},
		Date:     500,
	})
	if err != nil {
		t.Fatalf("NewExpense: %v", err)
	}
	if e.Title != "Dinner" || e.GroupID != "g1" || e.PaidBy.Name != "A" {
		t.Errorf("expense = %+v", e)
	}

	if err := Apply(g, e, 501); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if balanceOf(g, "a") != money.MustParse("20.00") ||
		balanceOf(g, "b") != -money.MustParse("10.00") ||
		balanceOf(g, "c") != -money.MustParse("10.00") {
		t.Errorf("balances after dinner: %+v", g.Members)
	}
	if g.TotalExpenses != money.MustParse("30.00") {
		t.Errorf("TotalExpenses = %s, want 30.00", g.TotalExpenses)
	}
	if g.TotalBalance != money.MustParse("20.00") {
		t.Errorf("TotalBalance = %s, want 20.00", g.TotalBalance)
	}
	if g.UpdatedAt != 501 {
		t.Errorf("UpdatedAt = %d, want 501", g.UpdatedAt)
	}

	if err := Reverse(g, e, 502); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	for _, m := range g.Members {
		if !m.Balance.IsZero() {
			t.Errorf("%s balance = %s after delete, want 0.00", m.ID, m.Balance)
		}
	}
	if !g.TotalExpenses.IsZero() || !g.TotalBalance.IsZero() {
		t.Errorf("totals after delete = %s / %s", g.TotalExpenses, g.TotalBalance)
	}
}

func TestTenThreeWays(t *testing.T) {
	g := groupABC(t)
	e, err := NewExpense(g, ExpenseDraft{Title: "Snacks", Amount: money.MustParse("10.00"), PaidBy: "b", SharedBy: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatal(err)
	}
	got := []money.Money{e.SharedBy[0].Amount, e.SharedBy[1].Amount, e.SharedBy[2].Amount}
	want := []money.Money{334, 333, 333}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("shares = %v, want %v", got, want)
		}
	}
	if money.Sum(got...) != money.MustParse("10.00") {
		t.Error("shares do not sum to 10.00")
	}
}

func TestReverseClampsTotal(t *testing.T) {
	g := groupABC(t)
	e, _ := NewExpense(g, ExpenseDraft{Title: "Gas", Amount: 900, PaidBy: "a", SharedBy: []string{"a", "b", "c"}})
	if err := Apply(g, e, 1); err != nil {
		t.Fatal(err)
	}
	g.TotalExpenses = 100 // drifted below the expense amount
	if err := Reverse(g, e, 2); err != nil {
		t.Fatal(err)
	}
	if !g.TotalExpenses.IsZero() {
		t.Errorf("TotalExpenses = %s, want clamped to 0.00", g.TotalExpenses)
	}
}

func TestApplyFailureLeavesGroupUntouched(t *testing.T) {
	g := groupABC(t)
	bad := &models.Expense{
		Amount:   1000,
		PaidBy:   ref("a"),
		SharedBy: []models.Share{{MemberID: "b", Amount: 600}, {MemberID: "c", Amount: 300}},
	}
	err := Apply(g, bad, 9)
	if !errors.Is(err, apperr.ErrSplitMismatch) {
		t.Fatalf("Apply() error = %v, want SplitMismatch", err)
	}
	if !apperr.IsKind(err, apperr.KindInvariant) {
		t.Error("split mismatch should be an invariant violation")
	}
	if !g.TotalExpenses.IsZero() || g.UpdatedAt == 9 {
		t.Error("group mutated on failure")
	}
}

func TestAuthorize(t *testing.T) {
	g := groupABC(t)
	e := &models.Expense{ID: "e1", PaidBy: ref("a")}

	if err := AuthorizeExpenseDelete(e, "a"); err != nil {
		t.Errorf("payer should be allowed: %v", err)
	}
	if err := AuthorizeExpenseDelete(e, "b"); !errors.Is(err, apperr.ErrNotPayer) {
		t.Errorf("AuthorizeExpenseDelete(b) = %v, want NotPayer", err)
	}
	if err := AuthorizeGroupDelete(g, "a"); err != nil {
		t.Errorf("creator should be allowed: %v", err)
	}
	if err := AuthorizeGroupDelete(g, "c"); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Errorf("AuthorizeGroupDelete(c) = %v, want authorization error", err)
	}
	if err := AuthorizeMember(g, "z"); !errors.Is(err, apperr.ErrNotMember) {
		t.Errorf("AuthorizeMember(z) = %v, want NotMember", err)
	}
}

func TestCheckInvariants(t *testing.T) {
	g := groupABC(t)
	if err := CheckInvariants(g); err != nil {
		t.Fatalf("fresh group: %v", err)
	}

	orphan := g.Clone()
	orphan.MemberIDs[2] = "z"
	if err := CheckInvariants(orphan); apperr.CodeOf(err) != apperr.CodeRosterMismatch {
		t.Errorf("orphan id: %v", err)
	}

	unbalanced := g.Clone()
	unbalanced.Members[0].Balance = 5
	if err := CheckInvariants(unbalanced); !errors.Is(err, apperr.ErrLedgerInvariant) {
		t.Errorf("unbalanced: %v", err)
	}
}
