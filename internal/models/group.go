package models

import "github.com/mmynk/splitledger/internal/money"

// Group is the aggregate root for a ledger: roster, balances and totals.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Description is optional free text.
	Description string

	// CreatedBy is the member ID of the creator. Only the creator can delete the group.
	CreatedBy string

	// MemberIDs mirrors Members[].ID so stores can index "groups containing member".
	MemberIDs []string

	// Members holds each member's identity and current balance.
	Members []Member

	// TotalExpenses is the sum of all live expense amounts.
	TotalExpenses money.Money

	// TotalBalance is the sum of positive member balances: money currently
	// owed to creditors in this group.
	TotalBalance money.Money

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64

	// Deleting is set when group deletion starts. A deleting group takes no
	// new members or expenses, and the record stays until its expenses are gone.
	Deleting bool

	// Version increments on every committed write; stores use it for
	// optimistic concurrency.
	Version int64
}

// Member is one participant in a group.
type Member struct {
	ID         string
	Name       string
	ProfileURL string

	// Balance is positive when the group owes this member.
	Balance money.Money
}

// Ref returns the identity part of the member.
func (m Member) Ref() MemberRef {
	return MemberRef{ID: m.ID, Name: m.Name, ProfileURL: m.ProfileURL}
}

// HasMember reports whether id is on the roster.
func (g *Group) HasMember(id string) bool {
	return g.MemberIndex(id) >= 0
}

// MemberIndex returns the position of id in Members, or -1.
func (g *Group) MemberIndex(id string) int {
	for i := range g.Members {
		if g.Members[i].ID == id {
			return i
		}
	}
	return -1
}

// Member returns a copy of the member with the given id.
func (g *Group) Member(id string) (Member, bool) {
	if i := g.MemberIndex(id); i >= 0 {
		return g.Members[i], true
	}
	return Member{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.MemberIDs = append([]string(nil), g.MemberIDs...)
	c.Members = append([]Member(nil), g.Members...)
	return &c
}
