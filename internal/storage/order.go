package storage

import (
	"cmp"
	"slices"

	"github.com/mmynk/splitledger/internal/models"
)

// SortGroups orders groups most recently updated first, then by ID.
func SortGroups(groups []*models.Group) {
	slices.SortFunc(groups, func(a, b *models.Group) int {
		if c := cmp.Compare(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortExpenses orders expenses newest first, then by ID.
func SortExpenses(expenses []*models.Expense) {
	slices.SortFunc(expenses, func(a, b *models.Expense) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
