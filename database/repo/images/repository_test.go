package images_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/anoixa/image-scraper/database/repo/images"
	"github.com/anoixa/image-scraper/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(query, checksum string) *models.Image {
	return &models.Image{
		Query:       query,
		Filename:    query + "_1.png",
		URL:         "https://img.example/" + checksum[:8] + ".png",
		Checksum:    checksum,
		ContentType: "image/png",
	}
}

func TestRepository_SaveAndRead(t *testing.T) {
	start := time.Date(2024, 1, 15, 23, 30, 0, 0, time.FixedZone("CST", 8*3600))
	store := testutil.NewStore(t, images.WithClock(testutil.NewStepClock(start, time.Second).Now))
	ctx := context.Background()

	data := testutil.RandomBytes(1, 12_000)
	rec := newRecord("cat", testutil.Checksum(data))
	require.NoError(t, store.Save(ctx, rec, data))

	assert.NotZero(t, rec.ID)
	assert.Equal(t, int64(len(data)), rec.FileSize)
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.True(t, rec.CreatedAt.Equal(start))
	assert.True(t, strings.HasPrefix(rec.StorageHandle, "original/2024/01/15/"), rec.StorageHandle)
	assert.True(t, strings.HasSuffix(rec.StorageHandle, ".png"), rec.StorageHandle)

	count, err := store.Count(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ok, err := store.Exists(ctx, rec.Checksum)
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := store.FindByChecksum(ctx, rec.Checksum)
	require.NoError(t, err)
	assert.Equal(t, rec.URL, found.URL)

	rc, err := store.OpenBlob(ctx, found)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	_ = rc.Close()
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRepository_DuplicateChecksumAcrossQueries(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	data := testutil.RandomBytes(2, 12_000)
	sum := testutil.Checksum(data)

	require.NoError(t, store.Save(ctx, newRecord("cat", sum), data))

	dup := newRecord("kitten", sum)
	err := store.Save(ctx, dup, data)
	assert.ErrorIs(t, err, database.ErrDuplicate)

	// 冲突写入不会留下记录
	count, err := store.Count(ctx, "kitten")
	require.NoError(t, err)
	assert.Zero(t, count)

	// 也不会留下孤立的二进制对象
	_, err = store.OpenBlob(ctx, dup)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRepository_ListRecentOrdering(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := testutil.NewStore(t, images.WithClock(testutil.NewStepClock(start, time.Millisecond).Now))
	ctx := context.Background()

	seeded := testutil.SeedImages(t, store, "dog", "dog", 10)
	testutil.SeedImages(t, store, "cat", "cat", 3)

	recent, err := store.ListRecent(ctx, "dog", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	for i, rec := range recent {
		// 最新的在前
		assert.Equal(t, seeded[9-i].Checksum, rec.Checksum)
		assert.Equal(t, "dog", rec.Query)
	}

	all, err := store.ListRecent(ctx, "dog", 100)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	none, err := store.ListRecent(ctx, "dog", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_ListRecentTiesBrokenByInsertOrder(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := testutil.NewStore(t, images.WithClock(func() time.Time { return fixed }))

	seeded := testutil.SeedImages(t, store, "bird", "bird", 3)

	recent, err := store.ListRecent(context.Background(), "bird", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, seeded[2].Checksum, recent[0].Checksum)
	assert.Equal(t, seeded[0].Checksum, recent[2].Checksum)
}

func TestRepository_NotFound(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	_, err := store.FindByChecksum(ctx, "deadbeef")
	assert.ErrorIs(t, err, database.ErrNotFound)

	ok, err := store.Exists(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := store.Count(ctx, "nothing")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepository_Ping(t *testing.T) {
	store := testutil.NewStore(t)
	assert.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, "sqlite+local", store.Name())
}
