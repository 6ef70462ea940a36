package repositories

import (
	"context"
	"errors"
	"fmt"

	"blogapi/app/models"

	"github.com/dgraph-io/badger/v4"
)

var _ PostRepository = (*BadgerPostRepository)(nil)

// BadgerPostRepository implements PostRepository using BadgerDB
type BadgerPostRepository struct {
	db     *badger.DB
	closer func() error
}

// NewBadgerPostRepository wraps an already opened database. Close on the
// returned repository does not close db.
func NewBadgerPostRepository(db *badger.DB) *BadgerPostRepository {
	return &BadgerPostRepository{db: db, closer: func() error { return nil }}
}

// OpenBadgerPostRepository opens (or creates) a database at path. An empty
// path opens an in-memory database.
func OpenBadgerPostRepository(path string) (*BadgerPostRepository, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerPostRepository{db: db, closer: db.Close}, nil
}

// DB returns the underlying database.
func (r *BadgerPostRepository) DB() *badger.DB {
	return r.db
}

// Close releases the database if this repository opened it.
func (r *BadgerPostRepository) Close() error {
	return r.closer()
}

// Create creates a new post
func (r *BadgerPostRepository) Create(ctx context.Context, post *models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.update(ctx, func(txn *badger.Txn) error {
		id, err := getNextID(txn, PostSeqKey)
		if err != nil {
			return fmt.Errorf("failed to allocate post id: %w", err)
		}

		stored := post.Clone()
		stored.ID = id
		data, err := marshalEntity(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(postKey(id), data); err != nil {
			return fmt.Errorf("failed to save post: %w", err)
		}

		post.ID = id
		return nil
	})
}

// GetByID retrieves a post by ID
func (r *BadgerPostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var post models.Post
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(postKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return unmarshalEntity(val, &post)
		})
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// List retrieves every post in id order
func (r *BadgerPostRepository) List(ctx context.Context) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(PostKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var post models.Post
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal post: %w", err)
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Update updates an existing post
func (r *BadgerPostRepository) Update(ctx context.Context, post *models.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.update(ctx, func(txn *badger.Txn) error {
		key := postKey(post.ID)

		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		data, err := marshalEntity(post)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// Delete deletes a post by ID
func (r *BadgerPostRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.update(ctx, func(txn *badger.Txn) error {
		key := postKey(id)

		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// maxConflictRetries bounds how often a write is retried after losing a
// race with a concurrent transaction, e.g. two creates bumping seq:post.
const maxConflictRetries = 64

// update runs fn in a read-write transaction, retrying on ErrConflict.
func (r *BadgerPostRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("failed to commit after %d attempts: %w", maxConflictRetries, err)
}
