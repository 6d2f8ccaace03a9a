// Package statestore implements the durable state store described by
// the pipeline: last-processed-block cursors, per-component stats
// snapshots, and checkpoints, all backed by an embedded bbolt
// database. Its interface shape is grounded on
// infrastructure/state/state.go's PersistenceBackend, generalized from
// an in-memory-only backend to a durable one.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("statestore: key not found")

var rootBucket = []byte("sentinel_state")

// Store is a durable key/value store for pipeline state.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt-backed store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("statestore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set writes a raw value for a key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(rootBucket).Put([]byte(key), value)
	})
}

// SetJSON marshals v and writes it for key.
func (s *Store) SetJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("statestore: marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, b)
}

// Get returns the raw value for a key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(rootBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetJSON reads a key and unmarshals it into v.
func (s *Store) GetJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("statestore: unmarshal %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(rootBucket).Delete([]byte(key))
	})
}

// List returns all keys with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// GetLastBlock returns the last processed block height for a cursor
// key, per spec's "last_block:<key>" key pattern.
func (s *Store) GetLastBlock(ctx context.Context, key string) (uint64, error) {
	raw, err := s.Get(ctx, LastBlockKey(key))
	if errors.Is(err, ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("statestore: decode last block for %s: %w", key, err)
	}
	return n, nil
}

// SetLastBlock persists the last processed block height for a cursor
// key.
func (s *Store) SetLastBlock(ctx context.Context, key string, block uint64) error {
	return s.SetJSON(ctx, LastBlockKey(key), block)
}

// GetComponentStats reads a component's stats snapshot, per spec's
// "stats:<component>:<network>" key pattern.
func (s *Store) GetComponentStats(ctx context.Context, component, network string, v interface{}) error {
	return s.GetJSON(ctx, StatsKey(component, network), v)
}

// SetComponentStats writes a component's stats snapshot.
func (s *Store) SetComponentStats(ctx context.Context, component, network string, v interface{}) error {
	return s.SetJSON(ctx, StatsKey(component, network), v)
}

// CreateCheckpoint writes a named checkpoint for a network, keyed by
// an ISO-8601 timestamp per spec's "checkpoint:<network>:<iso8601>"
// pattern.
func (s *Store) CreateCheckpoint(ctx context.Context, network string, v interface{}) (string, error) {
	key := CheckpointKey(network, time.Now().UTC())
	if err := s.SetJSON(ctx, key, v); err != nil {
		return "", err
	}
	return key, nil
}

// HandleBlockReorg is an unused-but-present primitive: given a network
// and the block height reorged chains must rewind to, it deletes every
// checkpoint stored for the network (no height comparison is made) and
// sets the "last_block:<network>" cursor to that height.
// Nothing in the pipeline calls this today; historical reorg
// reconciliation beyond this primitive is explicitly out of scope.
func (s *Store) HandleBlockReorg(ctx context.Context, network string, rewindToBlock uint64) error {
	keys, err := s.List(ctx, fmt.Sprintf("checkpoint:%s:", network))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return s.SetLastBlock(ctx, network, rewindToBlock)
}
