package repositories

import (
	"testing"

	"blogapi/app/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryBadger(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetNextID(t *testing.T) {
	db := openMemoryBadger(t)

	t.Run("first ID", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			id, err := getNextID(txn, PostSeqKey)
			assert.NoError(t, err)
			assert.Equal(t, int64(1), id)
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("sequential IDs", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			for i := int64(2); i <= 5; i++ {
				id, err := getNextID(txn, PostSeqKey)
				assert.NoError(t, err)
				assert.Equal(t, i, id)
			}
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("different sequence keys", func(t *testing.T) {
		err := db.Update(func(txn *badger.Txn) error {
			id, err := getNextID(txn, "seq:other")
			assert.NoError(t, err)
			assert.Equal(t, int64(1), id, "other sequence should start from 1")
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("persistence across transactions", func(t *testing.T) {
		var first, second int64
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			var err error
			first, err = getNextID(txn, "test:seq")
			return err
		}))
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			var err error
			second, err = getNextID(txn, "test:seq")
			return err
		}))
		assert.Equal(t, first+1, second)
	})

	t.Run("corrupt sequence value", func(t *testing.T) {
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("seq:bad"), []byte{1, 2})
		}))
		err := db.Update(func(txn *badger.Txn) error {
			_, err := getNextID(txn, "seq:bad")
			return err
		})
		assert.Error(t, err)
	})
}

func TestPostKeyOrdering(t *testing.T) {
	assert.Equal(t, "post:00000000000000000002", string(postKey(2)))
	assert.Less(t, string(postKey(2)), string(postKey(10)))
}

func TestMarshalEntity(t *testing.T) {
	t.Run("marshal post", func(t *testing.T) {
		post := &models.Post{
			ID:      1,
			Title:   "Test Post",
			Slug:    "-",
			Content: "Test Content",
			Image:   "post_images/a.png",
		}

		data, err := marshalEntity(post)
		require.NoError(t, err)

		var unmarshaled models.Post
		require.NoError(t, unmarshalEntity(data, &unmarshaled))
		assert.Equal(t, *post, unmarshaled)
	})

	t.Run("marshal invalid entity", func(t *testing.T) {
		invalidEntity := struct {
			Ch chan int
		}{
			Ch: make(chan int),
		}

		_, err := marshalEntity(invalidEntity)
		assert.Error(t, err)
	})
}

func TestUnmarshalEntity(t *testing.T) {
	t.Run("unmarshal invalid JSON", func(t *testing.T) {
		var post models.Post
		assert.Error(t, unmarshalEntity([]byte(`{"id":1,invalid json}`), &post))
	})

	t.Run("unmarshal into nil", func(t *testing.T) {
		assert.Error(t, unmarshalEntity([]byte(`{"id":1}`), nil))
	})
}
