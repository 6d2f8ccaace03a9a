package statestore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var queueBucket = []byte("queue")

// Queue is a durable FIFO queue of JSON-encoded items, backed by its
// own bbolt database file named "<groupName>_<suffix>.db" inside
// queueDir, per spec's queue directory layout.
type Queue struct {
	mu   sync.Mutex
	db   *bbolt.DB
	next uint64
}

// OpenQueue opens (or creates) the durable queue file for a given
// group and suffix ("events" or "actions").
func OpenQueue(queueDir, groupName, suffix string) (*Queue, error) {
	path := filepath.Join(queueDir, fmt.Sprintf("%s_%s.db", groupName, suffix))
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("statestore: open queue %s: %w", path, err)
	}

	q := &Queue{db: db}
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(queueBucket)
		if err != nil {
			return err
		}
		// Resume sequence numbering from the highest key already
		// stored so a restart doesn't reuse (and thus reorder) ids.
		c := b.Cursor()
		k, _ := c.Last()
		if k != nil {
			q.next = binary.BigEndian.Uint64(k) + 1
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: init queue bucket: %w", err)
	}
	return q, nil
}

// Close closes the queue's database file.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Push appends an item to the tail of the queue.
func (q *Queue) Push(ctx context.Context, item interface{}) error {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("statestore: marshal queue item: %w", err)
	}

	q.mu.Lock()
	id := q.next
	q.next++
	q.mu.Unlock()

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)

	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(queueBucket).Put(key, b)
	})
}

// Pop removes and returns the oldest item in the queue, unmarshaling
// it into dst. It returns ErrNotFound if the queue is empty.
func (q *Queue) Pop(ctx context.Context, dst interface{}) error {
	var key, value []byte
	err := q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(queueBucket)
		c := b.Cursor()
		k, v := c.First()
		if k == nil {
			return ErrNotFound
		}
		key = append([]byte(nil), k...)
		value = append([]byte(nil), v...)
		return b.Delete(k)
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(value, dst)
}

// Len returns the number of items currently queued.
func (q *Queue) Len() (int, error) {
	var n int
	err := q.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(queueBucket).Stats().KeyN
		return nil
	})
	return n, err
}
