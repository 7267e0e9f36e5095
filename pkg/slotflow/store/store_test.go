package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// storeContract exercises the Store behaviors every implementation
// must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := state.New("wa:+919876543210", "greet")
	rec.AppendTurn(state.SpeakerUser, "hello")
	rec.Fields["customer.name"] = state.FieldCell{
		Value: "Asha", Confidence: 0.8, Source: state.SourcePrimary, Turn: 1,
	}
	rec.Cursor = "ask_phone"
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, "ask_phone", got.Cursor)
	assert.Equal(t, 1, got.TurnCount)
	cell, ok := got.Field("customer.name")
	require.True(t, ok)
	assert.Equal(t, "Asha", cell.Value)
	assert.Equal(t, state.SourcePrimary, cell.Source)

	// loaded record is detached from the stored copy
	got.Cursor = "mutated"
	again, err := s.Load(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, "ask_phone", again.Cursor)

	// save replaces
	rec.Cursor = "confirm"
	require.NoError(t, s.Save(ctx, rec))
	got, err = s.Load(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, "confirm", got.Cursor)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, rec.Key)

	require.NoError(t, s.Delete(ctx, rec.Key))
	_, err = s.Load(ctx, rec.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is fine
	assert.NoError(t, s.Delete(ctx, rec.Key))
}

func TestMemoryStoreContract(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	storeContract(t, s)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Load(context.Background(), "any")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.Save(context.Background(), state.New("k", "n")), ErrStoreClosed)
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	storeContract(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := t.TempDir() + "/conv.db"

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	rec := state.New("c-persist", "greet")
	rec.AppendTurn(state.SpeakerUser, "namaste")
	require.NoError(t, s.Save(context.Background(), rec))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Load(context.Background(), "c-persist")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TurnCount)
}

func TestRedisStoreContract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client)
	defer s.Close()
	storeContract(t, s)
}

func TestRedisStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})

	// miniredis only advances its own virtual clock, so the store's
	// clock is advanced in lockstep for the index prune cutoff
	now := time.Now()
	s := NewRedisStoreFromClient(client, WithTTL(time.Second),
		WithClock(func() time.Time { return now }))
	defer s.Close()
	ctx := context.Background()

	rec := state.New("c-ttl", "greet")
	require.NoError(t, s.Save(ctx, rec))

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "c-ttl")

	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, err = s.Load(ctx, "c-ttl")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err = s.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, keys, "c-ttl")
}
