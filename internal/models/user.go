package models

// User is the authenticated caller as asserted by a bearer token.
//
// Accounts live in an external identity provider; the ledger only needs
// enough to add the user to a roster or stamp them on an expense.
type User struct {
	// ID is the stable identity, used as the member ID in every group.
	ID string

	// Name is the display name copied onto rosters and expenses.
	Name string

	// ProfileURL points at an avatar image managed elsewhere.
	ProfileURL string
}

// Ref returns the user as a member reference.
func (u User) Ref() MemberRef {
	return MemberRef{ID: u.ID, Name: u.Name, ProfileURL: u.ProfileURL}
}
