// Package firestore keeps each user's document in a Cloud Firestore
// collection and uses snapshot listeners as the change feed.
package firestore

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/officecal/internal/storage"
)

// DefaultCollection holds the per-user documents.
const DefaultCollection = "users"

// Store is a storage.Store backed by Firestore.
type Store struct {
	client     *firestore.Client
	collection string
	// OnListenError is called when a snapshot listener stops on an error.
	OnListenError func(user string, err error)
}

// Open creates a client for projectID. An empty collection uses
// DefaultCollection. FIRESTORE_EMULATOR_HOST is honoured by the client.
func Open(ctx context.Context, projectID, collection string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return NewStore(client, collection), nil
}

// NewStore wraps an existing client.
func NewStore(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection}
}

func (s *Store) doc(user string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(user)
}

func (s *Store) Get(ctx context.Context, user string) (storage.Fields, error) {
	snap, err := s.doc(user).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return storage.Fields(snap.Data()), nil
}

// SetMerge names every top-level key as a merge path, so nested maps such as
// the activity cache are replaced whole instead of deep-merged.
func (s *Store) SetMerge(ctx context.Context, user string, patch storage.Fields) error {
	if len(patch) == 0 {
		return nil
	}
	paths := make([]firestore.FieldPath, 0, len(patch))
	for key := range patch {
		paths = append(paths, firestore.FieldPath{key})
	}
	_, err := s.doc(user).Set(ctx, map[string]interface{}(patch), firestore.Merge(paths...))
	return err
}

func (s *Store) Subscribe(ctx context.Context, user string, onChange func(storage.Fields)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.doc(user).Snapshots(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled && s.OnListenError != nil {
					s.OnListenError(user, err)
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			onChange(storage.Fields(snap.Data()))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
