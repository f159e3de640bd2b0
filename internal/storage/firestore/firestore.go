// Package firestore implements storage.Store on Cloud Firestore through the
// Firebase Admin SDK.
//
// Groups and expenses live in two top-level collections. Ledger writes use
// Firestore transactions, which are optimistic: a transaction whose reads
// were changed by another commit fails with Aborted and surfaces as
// storage.ErrConflict. Subscriptions are native snapshot listeners.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/watch"
)

var _ storage.Store = (*Store)(nil)

// Store is a Firestore-backed storage.Store.
type Store struct {
	client *firestore.Client
}

// New connects to the project's default database. credentialsFile may be
// empty to use application default credentials or FIRESTORE_EMULATOR_HOST.
func New(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) groups() *firestore.CollectionRef   { return s.client.Collection(groupsCollection) }
func (s *Store) expenses() *firestore.CollectionRef { return s.client.Collection(expensesCollection) }

// GetGroup reads a group document.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	snap, err := s.groups().Doc(groupID).Get(ctx)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get group: %w", err))
	}
	return decodeGroup(snap)
}

// CreateGroup writes a new group document with Version 1.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	ref := s.groups().NewDoc()
	if group.ID != "" {
		ref = s.groups().Doc(group.ID)
	}
	group.Version = 1
	if _, err := ref.Create(ctx, toGroupDoc(group)); err != nil {
		return mapErr(fmt.Errorf("failed to create group: %w", err))
	}
	group.ID = ref.ID
	return nil
}

// ListGroupsByMember queries groups whose memberIds array contains memberID.
func (s *Store) ListGroupsByMember(ctx context.Context, memberID string) ([]*models.Group, error) {
	docs, err := s.groupsOf(memberID).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list groups: %w", err))
	}
	return decodeGroups(docs)
}

// ListExpensesByGroup queries a group's expenses.
func (s *Store) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	docs, err := s.expensesOf(groupID).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list expenses: %w", err))
	}
	return decodeExpenses(docs)
}

// DeleteExpenses deletes a batch of expense documents with a bulk writer.
// Ids that belong to another group are skipped.
func (s *Store) DeleteExpenses(ctx context.Context, groupID string, expenseIDs []string) error {
	if len(expenseIDs) == 0 {
		return nil
	}
	refs := make([]*firestore.DocumentRef, len(expenseIDs))
	for i, id := range expenseIDs {
		refs[i] = s.expenses().Doc(id)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return mapErr(fmt.Errorf("failed to read expenses: %w", err))
	}

	bw := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		if g, _ := snap.DataAt("groupId"); g != groupID {
			continue
		}
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue expense delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			return mapErr(fmt.Errorf("failed to delete expense: %w", err))
		}
	}
	return nil
}

// DeleteGroup deletes the group document.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	if _, err := s.groups().Doc(groupID).Delete(ctx); err != nil {
		return mapErr(fmt.Errorf("failed to delete group: %w", err))
	}
	return nil
}

// SubscribeGroups attaches a snapshot listener to the member's group query.
func (s *Store) SubscribeGroups(ctx context.Context, memberID string) (<-chan storage.GroupsSnapshot, error) {
	return listen(ctx, s.groupsOf(memberID), storage.MemberKey(memberID), decodeGroups)
}

// SubscribeExpenses attaches a snapshot listener to the group's expense query.
func (s *Store) SubscribeExpenses(ctx context.Context, groupID string) (<-chan storage.ExpensesSnapshot, error) {
	return listen(ctx, s.expensesOf(groupID), storage.GroupKey(groupID), decodeExpenses)
}

func (s *Store) groupsOf(memberID string) firestore.Query {
	return s.groups().Where("memberIds", "array-contains", memberID)
}

func (s *Store) expensesOf(groupID string) firestore.Query {
	return s.expenses().Where("groupId", "==", groupID)
}

// listen forwards query snapshots until ctx is done. The read time orders
// snapshots; the first one is waited for so a broken query fails here rather
// than in the consumer.
func listen[T any](ctx context.Context, q firestore.Query, key string,
	decode func([]*firestore.DocumentSnapshot) ([]T, error)) (<-chan watch.Snapshot[T], error) {
	it := q.Snapshots(ctx)

	next := func() (watch.Snapshot[T], error) {
		qs, err := it.Next()
		if err != nil {
			return watch.Snapshot[T]{}, err
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			return watch.Snapshot[T]{}, err
		}
		items, err := decode(docs)
		if err != nil {
			return watch.Snapshot[T]{}, err
		}
		return watch.Snapshot[T]{Seq: qs.ReadTime.UnixNano(), Key: key, Items: items}, nil
	}

	first, err := next()
	if err != nil {
		it.Stop()
		return nil, mapErr(fmt.Errorf("failed to start listener: %w", err))
	}

	out := make(chan watch.Snapshot[T], 1)
	out <- first
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := next()
			if err != nil {
				return
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeGroup(snap *firestore.DocumentSnapshot) (*models.Group, error) {
	var d groupDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode group %s: %w", snap.Ref.ID, err)
	}
	return d.model(snap.Ref.ID), nil
}

func decodeGroups(docs []*firestore.DocumentSnapshot) ([]*models.Group, error) {
	groups := make([]*models.Group, 0, len(docs))
	for _, doc := range docs {
		g, err := decodeGroup(doc)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	storage.SortGroups(groups)
	return groups, nil
}

func decodeExpense(snap *firestore.DocumentSnapshot) (*models.Expense, error) {
	var d expenseDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode expense %s: %w", snap.Ref.ID, err)
	}
	return d.model(snap.Ref.ID), nil
}

func decodeExpenses(docs []*firestore.DocumentSnapshot) ([]*models.Expense, error) {
	expenses := make([]*models.Expense, 0, len(docs))
	for _, doc := range docs {
		e, err := decodeExpense(doc)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	storage.SortExpenses(expenses)
	return expenses, nil
}

// mapErr translates gRPC status codes into storage sentinels.
func mapErr(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.Aborted, codes.AlreadyExists:
		return fmt.Errorf("%w: %v", storage.ErrConflict, err)
	}
	return err
}
