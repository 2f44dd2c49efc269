package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/anoixa/image-scraper/config"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/anoixa/image-scraper/internal/imaging"
	"github.com/anoixa/image-scraper/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		StoreDSN:            "sqlite://" + filepath.Join(dir, "meta.db"),
		BlobStorage:         "local",
		BlobLocalPath:       filepath.Join(dir, "blobs"),
		ImageDir:            filepath.Join(dir, "images"),
		ExportDir:           filepath.Join(dir, "exported"),
		CacheType:           "memory",
		CacheTTL:            time.Hour,
		FetchTimeout:        time.Second,
		FetchWorkers:        2,
		CandidateMultiplier: 20,
		JPEGQuality:         95,
		ImageEncoder:        "std",
		DiscoveryEndpoint:   "https://images.example/search",
		DiscoveryPages:      2,
		DiscoveryWait:       time.Second,
	}
}

func TestContainerLifecycle(t *testing.T) {
	cfg := testConfig(t)
	c := NewContainer(cfg)
	require.NoError(t, c.Init(context.Background()))

	store := c.Store()
	require.NotNil(t, store)
	assert.Equal(t, "sqlite+local", store.Name())
	assert.NotNil(t, c.Metrics())
	assert.Same(t, cfg, c.GetConfig())
	assert.NoError(t, store.Ping(context.Background()))

	data := testutil.RandomBytes(1, 64)
	rec := &models.Image{
		Query:       "cat",
		Filename:    "cat_1.jpg",
		URL:         "https://img.example/1.jpg",
		Checksum:    testutil.Checksum(data),
		ContentType: "image/jpeg",
	}
	require.NoError(t, store.Save(context.Background(), rec, data))

	n, err := store.Count(context.Background(), "cat")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.NotNil(t, c.Pipeline(c.DiscoveryOptions(true, "", true)))
	exp, err := c.Exporter()
	require.NoError(t, err)
	assert.NotNil(t, exp)
	assert.DirExists(t, cfg.ExportDir)
	assert.DirExists(t, cfg.ImageDir)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestOpenStoreErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDSN = ""
	_, err := OpenStore(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrMissingDSN)

	cfg.StoreDSN = "redis://localhost:6379"
	_, err = OpenStore(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.BlobStorage = "ftp"
	_, err = OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInitFailsOnBadCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheType = "memcached"

	c := NewContainer(cfg)
	err := c.Init(context.Background())
	assert.Error(t, err)
	assert.Nil(t, c.Store())
}

func TestDiscoveryOptions(t *testing.T) {
	c := NewContainer(testConfig(t))

	opts := c.DiscoveryOptions(true, "/usr/bin/chromium", false)
	assert.Equal(t, "https://images.example/search", opts.Endpoint)
	assert.Equal(t, 2, opts.Pages)
	assert.Equal(t, time.Second, opts.Wait)
	assert.True(t, opts.Headless)
	assert.Equal(t, "/usr/bin/chromium", opts.DriverPath)
	assert.False(t, opts.NoManager)
}

func TestNewTranscoder(t *testing.T) {
	assert.IsType(t, &imaging.StdTranscoder{}, NewTranscoder("std"))
	assert.IsType(t, &imaging.StdTranscoder{}, NewTranscoder(""))
	assert.IsType(t, &imaging.StdTranscoder{}, NewTranscoder("gpu"))
}
