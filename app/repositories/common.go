package repositories

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const (
	// PostKeyPrefix prefixes every stored post key.
	PostKeyPrefix = "post:"

	// PostSeqKey holds the last id handed out for posts.
	PostSeqKey = "seq:post"
)

// postKey zero-pads the id so prefix iteration yields id order.
func postKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", PostKeyPrefix, id))
}

// getNextID gets the next available ID for a given sequence key
func getNextID(txn *badger.Txn, seqKey string) (int64, error) {
	var id uint64
	item, err := txn.Get([]byte(seqKey))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		id = 1
	case err != nil:
		return 0, err
	default:
		err = item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt sequence %q: %d bytes", seqKey, len(val))
			}
			id = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
		id++
	}

	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, id)
	if err := txn.Set([]byte(seqKey), idBytes); err != nil {
		return 0, err
	}

	return int64(id), nil
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity any) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity any) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return nil
}
