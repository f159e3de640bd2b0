package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// GroupBalances is a group with each member's net position and a suggested
// set of payments that settles it.
type GroupBalances struct {
	Group       *models.Group
	Balances    []calculator.MemberBalance
	Settlements []calculator.DebtEdge
}

// CreateGroup creates a group whose only member is creator.
func (s *LedgerService) CreateGroup(ctx context.Context, creator models.MemberRef, name, description string) (_ *models.Group, err error) {
	ctx, end := s.begin(ctx, "CreateGroup", attribute.String("member_id", creator.ID))
	defer end(&err)

	group, err := ledger.NewGroup(creator, name, description, s.timestamp())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.logger.ErrorContext(ctx, "CreateGroup failed", "member_id", creator.ID, "error", err)
		return nil, s.storageErr("create group", err)
	}

	s.logger.InfoContext(ctx, "Group created", "group_id", group.ID, "member_id", creator.ID, "name", group.Name)
	s.afterCommit(ctx, models.LedgerEvent{
		Type:      models.EventGroupCreated,
		GroupID:   group.ID,
		ActorID:   creator.ID,
		MemberIDs: group.MemberIDs,
		Group:     group,
	})
	return group, nil
}

// JoinGroup adds member to the group with a zero balance.
func (s *LedgerService) JoinGroup(ctx context.Context, groupID string, member models.MemberRef) (_ *models.Group, err error) {
	ctx, end := s.begin(ctx, "JoinGroup", attribute.String("group_id", groupID), attribute.String("member_id", member.ID))
	defer end(&err)

	var joined *models.Group
	err = s.transact(ctx, "join group", func(ctx context.Context, tx storage.Tx) error {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return notFound(err, apperr.CodeGroupNotFound, groupID)
		}
		if err := ledger.Join(g, member, s.timestamp()); err != nil {
			return err
		}
		if err := tx.PutGroup(ctx, g); err != nil {
			return err
		}
		joined = g
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "JoinGroup failed", "group_id", groupID, "member_id", member.ID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Member joined group", "group_id", groupID, "member_id", member.ID)
	s.afterCommit(ctx, models.LedgerEvent{
		Type:      models.EventMemberJoined,
		GroupID:   groupID,
		ActorID:   member.ID,
		MemberIDs: joined.MemberIDs,
		Group:     joined,
	})
	return joined, nil
}

// GetGroup returns a group by id. Any authenticated user may read a group so
// they can decide to join it.
func (s *LedgerService) GetGroup(ctx context.Context, groupID string) (_ *models.Group, err error) {
	ctx, end := s.begin(ctx, "GetGroup", attribute.String("group_id", groupID))
	defer end(&err)

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, s.storageErr("get group", notFound(err, apperr.CodeGroupNotFound, groupID))
	}
	return g, nil
}

// ListGroups returns the groups memberID belongs to.
func (s *LedgerService) ListGroups(ctx context.Context, memberID string) (_ []*models.Group, err error) {
	ctx, end := s.begin(ctx, "ListGroups", attribute.String("member_id", memberID))
	defer end(&err)

	groups, err := s.store.ListGroupsByMember(ctx, memberID)
	if err != nil {
		return nil, s.storageErr("list groups", err)
	}
	return groups, nil
}

// GetGroupBalances returns balances and settlement suggestions for a group
// actingID belongs to.
func (s *LedgerService) GetGroupBalances(ctx context.Context, groupID, actingID string) (_ *GroupBalances, err error) {
	ctx, end := s.begin(ctx, "GetGroupBalances", attribute.String("group_id", groupID))
	defer end(&err)

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, s.storageErr("get group", notFound(err, apperr.CodeGroupNotFound, groupID))
	}
	if err := ledger.AuthorizeMember(g, actingID); err != nil {
		return nil, err
	}
	balances, settlements := calculator.CalculateGroupBalances(g)
	return &GroupBalances{Group: g, Balances: balances, Settlements: settlements}, nil
}

// DeleteGroup deletes a group and all of its expenses. Only the creator may
// do this. The group is first marked deleting, which stops new expenses and
// members from committing. Its expenses then go in batches and the group
// record goes last, so a failed run leaves the tombstoned group in place and
// a retry by the creator picks up where it stopped. Any failure after the
// tombstone is CascadeIncomplete, never success.
func (s *LedgerService) DeleteGroup(ctx context.Context, groupID, actingID string) (err error) {
	ctx, end := s.begin(ctx, "DeleteGroup", attribute.String("group_id", groupID), attribute.String("member_id", actingID))
	defer end(&err)

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return s.storageErr("get group", notFound(err, apperr.CodeGroupNotFound, groupID))
	}
	if err := ledger.AuthorizeGroupDelete(g, actingID); err != nil {
		return err
	}

	if !g.Deleting {
		err = s.transact(ctx, "mark group deleting", func(ctx context.Context, tx storage.Tx) error {
			cur, err := tx.GetGroup(ctx, groupID)
			if err != nil {
				return notFound(err, apperr.CodeGroupNotFound, groupID)
			}
			if cur.Deleting {
				return nil
			}
			ledger.MarkDeleting(cur, s.timestamp())
			if err := tx.PutGroup(ctx, cur); err != nil {
				return err
			}
			g = cur
			return nil
		})
		if err != nil {
			s.logger.WarnContext(ctx, "DeleteGroup failed", "group_id", groupID, "member_id", actingID, "error", err)
			return err
		}
		s.logger.InfoContext(ctx, "Group marked deleting", "group_id", groupID, "member_id", actingID)
	} else {
		s.logger.InfoContext(ctx, "Resuming group deletion", "group_id", groupID, "member_id", actingID)
	}

	deleted, err := s.deleteAllExpenses(ctx, groupID)
	if err != nil {
		return s.cascadeErr(ctx, groupID, deleted, err)
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return s.cascadeErr(ctx, groupID, deleted, err)
	}

	s.metrics.CascadeDeleted(deleted)
	s.logger.InfoContext(ctx, "Group deleted", "group_id", groupID, "member_id", actingID, "expenses_deleted", deleted)
	s.afterCommit(ctx, models.LedgerEvent{
		Type:      models.EventGroupDeleted,
		GroupID:   groupID,
		ActorID:   actingID,
		MemberIDs: g.MemberIDs,
	})
	return nil
}

// deleteAllExpenses removes a group's expenses batch by batch until a listing
// comes back empty. An expense that survives its own delete stops the loop.
func (s *LedgerService) deleteAllExpenses(ctx context.Context, groupID string) (int, error) {
	var deleted int
	seen := make(map[string]bool)
	for {
		expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
		if err != nil {
			return deleted, err
		}
		if len(expenses) == 0 {
			return deleted, nil
		}
		for _, e := range expenses {
			if seen[e.ID] {
				return deleted, fmt.Errorf("expense %s still present after delete", e.ID)
			}
		}
		for start := 0; start < len(expenses); start += s.cascadeBatchSize {
			batch := expenses[start:min(start+s.cascadeBatchSize, len(expenses))]
			ids := make([]string, len(batch))
			for i, e := range batch {
				ids[i] = e.ID
				seen[e.ID] = true
			}
			if err := s.store.DeleteExpenses(ctx, groupID, ids); err != nil {
				return deleted, err
			}
			deleted += len(ids)
		}
	}
}

func (s *LedgerService) cascadeErr(ctx context.Context, groupID string, deleted int, cause error) error {
	s.metrics.CascadeDeleted(deleted)
	s.logger.ErrorContext(ctx, "Group deletion incomplete", "group_id", groupID, "expenses_deleted", deleted, "error", cause)
	err := apperr.Wrap(apperr.CodeCascadeIncomplete, "group deletion did not complete; retry to finish", cause)
	err.Metadata = map[string]string{"group_id": groupID}
	return err
}
