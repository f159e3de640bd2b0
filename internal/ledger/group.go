// Package ledger enforces the group aggregate's rules: who may join, what a
// valid expense looks like, and how an expense moves balances and totals.
//
// Functions here are pure with respect to storage. They mutate the *Group
// they are given, so callers pass a copy read inside a transaction and only
// persist it if no error is returned.
package ledger

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
)

const (
	MinNameLength        = 3
	MaxNameLength        = 50
	MaxDescriptionLength = 200
)

// NewGroup validates the name and description and builds a group whose only
// member is the creator, with every balance and total at zero.
func NewGroup(creator models.MemberRef, name, description string, now int64) (*models.Group, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)

	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return nil, apperr.WithMetadata(apperr.CodeInvalidName,
			"group name must be between 3 and 50 characters", map[string]string{"name": name})
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, apperr.New(apperr.CodeInvalidDescription, "description cannot exceed 200 characters")
	}
	if creator.ID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "creator id is required")
	}

	return &models.Group{
		Name:        name,
		Description: description,
		CreatedBy:   creator.ID,
		MemberIDs:   []string{creator.ID},
		Members:     []models.Member{newMember(creator)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Join appends a member with a zero balance. Existing balances are never
// redistributed: a new member only takes part in expenses created later.
func Join(g *models.Group, m models.MemberRef, now int64) error {
	if m.ID == "" {
		return apperr.New(apperr.CodeInvalidArgument, "member id is required")
	}
	if err := checkOpen(g); err != nil {
		return err
	}
	if slices.Contains(g.MemberIDs, m.ID) || g.HasMember(m.ID) {
		return apperr.WithMetadata(apperr.CodeAlreadyMember, "already a member of the group",
			map[string]string{"group_id": g.ID, "member_id": m.ID})
	}
	next := g.Clone()
	next.MemberIDs = append(next.MemberIDs, m.ID)
	next.Members = append(next.Members, newMember(m))
	next.UpdatedAt = now
	if err := CheckInvariants(next); err != nil {
		return err
	}
	*g = *next
	return nil
}

// AuthorizeGroupDelete allows only the creator to delete a group.
func AuthorizeGroupDelete(g *models.Group, actingID string) error {
	if g.CreatedBy != actingID {
		return apperr.WithMetadata(apperr.CodeNotCreator, "only the group creator can delete the group",
			map[string]string{"group_id": g.ID, "member_id": actingID})
	}
	return nil
}

// MarkDeleting tombstones the group so nothing new commits against it while
// its expenses are removed.
func MarkDeleting(g *models.Group, now int64) {
	g.Deleting = true
	g.UpdatedAt = now
}

func checkOpen(g *models.Group) error {
	if g.Deleting {
		return apperr.WithMetadata(apperr.CodeGroupDeleting, "group is being deleted",
			map[string]string{"group_id": g.ID})
	}
	return nil
}

// AuthorizeMember requires actingID to be on the roster.
func AuthorizeMember(g *models.Group, actingID string) error {
	if !g.HasMember(actingID) {
		return apperr.WithMetadata(apperr.CodeNotMember, "not a member of this group",
			map[string]string{"group_id": g.ID, "member_id": actingID})
	}
	return nil
}

// CheckInvariants verifies the aggregate: MemberIDs and Members hold the same
// ids, balances sum to zero, and TotalExpenses is not negative.
func CheckInvariants(g *models.Group) error {
	if len(g.MemberIDs) != len(g.Members) {
		return apperr.WithMetadata(apperr.CodeRosterMismatch, "member ids and roster differ in size",
			map[string]string{"group_id": g.ID})
	}
	ids := make(map[string]bool, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		ids[id] = true
	}
	for _, m := range g.Members {
		if !ids[m.ID] {
			return apperr.WithMetadata(apperr.CodeRosterMismatch, "roster member missing from member ids",
				map[string]string{"group_id": g.ID, "member_id": m.ID})
		}
		delete(ids, m.ID)
	}
	if len(ids) != 0 {
		return apperr.WithMetadata(apperr.CodeRosterMismatch, "duplicate member on roster",
			map[string]string{"group_id": g.ID})
	}
	if err := calculator.CheckBalanced(g.Members); err != nil {
		return err
	}
	if g.TotalExpenses < 0 {
		return apperr.WithMetadata(apperr.CodeLedgerInvariant, "total expenses went negative",
			map[string]string{"group_id": g.ID, "total": g.TotalExpenses.String()})
	}
	return nil
}

func newMember(ref models.MemberRef) models.Member {
	return models.Member{ID: ref.ID, Name: ref.Name, ProfileURL: ref.ProfileURL}
}
