package statestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_LastBlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.GetLastBlock(ctx, "eth:token_transfer")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetLastBlock(ctx, "eth:token_transfer", 12345))
	n, err := store.GetLastBlock(ctx, "eth:token_transfer")
	require.NoError(t, err)
	require.Equal(t, uint64(12345), n)
}

func TestStore_ComponentStats(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	type stats struct {
		Processed int `json:"processed"`
	}

	require.NoError(t, store.SetComponentStats(ctx, "token_transfer", "ethereum", stats{Processed: 42}))

	var got stats
	require.NoError(t, store.GetComponentStats(ctx, "token_transfer", "ethereum", &got))
	require.Equal(t, 42, got.Processed)
}

func TestStore_Checkpoint(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key, err := store.CreateCheckpoint(ctx, "ethereum", map[string]uint64{"block": 100})
	require.NoError(t, err)

	keys, err := store.List(ctx, "checkpoint:ethereum:")
	require.NoError(t, err)
	require.Contains(t, keys, key)
}

func TestStore_HandleBlockReorg(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SetLastBlock(ctx, "ethereum", 200))
	_, err = store.CreateCheckpoint(ctx, "ethereum", map[string]uint64{"block": 200})
	require.NoError(t, err)

	require.NoError(t, store.HandleBlockReorg(ctx, "ethereum", 150))

	n, err := store.GetLastBlock(ctx, "ethereum")
	require.NoError(t, err)
	require.Equal(t, uint64(150), n)

	keys, err := store.List(ctx, "checkpoint:ethereum:")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestQueue_FIFO(t *testing.T) {
	dir := t.TempDir()
	q, err := OpenQueue(dir, "ethereum", "events")
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, map[string]int{"n": 1}))
	require.NoError(t, q.Push(ctx, map[string]int{"n": 2}))

	l, err := q.Len()
	require.NoError(t, err)
	require.Equal(t, 2, l)

	var first, second map[string]int
	require.NoError(t, q.Pop(ctx, &first))
	require.NoError(t, q.Pop(ctx, &second))
	require.Equal(t, 1, first["n"])
	require.Equal(t, 2, second["n"])

	var missing map[string]int
	err = q.Pop(ctx, &missing)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestQueue_ResumesSequenceAfterReopen(t *testing.T) {
	dir := t.TempDir()
	q, err := OpenQueue(dir, "ethereum", "actions")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, map[string]int{"n": 1}))
	require.NoError(t, q.Close())

	q2, err := OpenQueue(dir, "ethereum", "actions")
	require.NoError(t, err)
	defer q2.Close()
	require.NoError(t, q2.Push(ctx, map[string]int{"n": 2}))

	var first, second map[string]int
	require.NoError(t, q2.Pop(ctx, &first))
	require.NoError(t, q2.Pop(ctx, &second))
	require.Equal(t, 1, first["n"])
	require.Equal(t, 2, second["n"])
}
