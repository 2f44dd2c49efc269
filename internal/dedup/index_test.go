package dedup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anoixa/image-scraper/cache"
	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore 统计 Exists 回源次数
type countingStore struct {
	database.ImageStore
	existsCalls atomic.Int32
	existsErr   error
}

func (s *countingStore) Exists(ctx context.Context, checksum string) (bool, error) {
	s.existsCalls.Add(1)
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.ImageStore.Exists(ctx, checksum)
}

func newIndex(t *testing.T) (*Index, *countingStore) {
	t.Helper()
	store := &countingStore{ImageStore: testutil.NewStore(t)}
	c, err := cache.NewProvider(cache.Config{Type: "memory", TTL: time.Hour})
	require.NoError(t, err)
	return NewIndex(store, c, time.Hour), store
}

func TestChecksum(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Checksum([]byte("abc")))
	assert.Len(t, Checksum(nil), 64)
}

func TestIndex_PositiveResultIsCached(t *testing.T) {
	idx, store := newIndex(t)
	ctx := context.Background()

	seeded := testutil.SeedImages(t, store.ImageStore, "cat", "cat", 1)

	for i := 0; i < 3; i++ {
		ok, err := idx.Exists(ctx, seeded[0].Checksum)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), store.existsCalls.Load())
}

func TestIndex_NegativeResultIsNotCached(t *testing.T) {
	idx, store := newIndex(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := idx.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(2), store.existsCalls.Load())

	// 入库后立即可见
	seeded := testutil.SeedImages(t, store.ImageStore, "cat", "late", 1)
	ok, err := idx.Exists(ctx, seeded[0].Checksum)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIndex_Remember(t *testing.T) {
	idx, store := newIndex(t)
	ctx := context.Background()

	idx.Remember(ctx, "fresh")
	ok, err := idx.Exists(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, store.existsCalls.Load())
}

func TestIndex_StoreErrorPropagates(t *testing.T) {
	idx, store := newIndex(t)
	store.existsErr = errors.New("connection reset")

	_, err := idx.Exists(context.Background(), "x")
	assert.EqualError(t, err, "connection reset")
}

func TestIndex_CountAndListRecent(t *testing.T) {
	idx, store := newIndex(t)
	ctx := context.Background()

	testutil.SeedImages(t, store.ImageStore, "dog", "dog", 4)

	n, err := idx.Count(ctx, "dog")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	recs, err := idx.ListRecent(ctx, "dog", 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestNewIndex_NilCache(t *testing.T) {
	store := &countingStore{ImageStore: testutil.NewStore(t)}
	idx := NewIndex(store, nil, 0)

	idx.Remember(context.Background(), "x")
	ok, err := idx.Exists(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)
}
