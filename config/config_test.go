package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// missingEnvFile 返回一个不存在的 env 文件路径
func missingEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_MissingDSN(t *testing.T) {
	t.Setenv("STORE_DSN", "")
	t.Setenv("MONGO_URI", "")

	cfg, err := Load(missingEnvFile(t))
	require.ErrorIs(t, err, ErrMissingDSN)
	require.NotNil(t, cfg)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DSN", "sqlite://test.db")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "sqlite://test.db", cfg.StoreDSN)
	assert.Equal(t, "image_scraper", cfg.StoreDatabase)
	assert.Equal(t, 10_000, cfg.MinImageBytes)
	assert.Equal(t, 20, cfg.CandidateMultiplier)
	assert.Equal(t, 95, cfg.JPEGQuality)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "images", cfg.ImageDir)
	assert.Equal(t, "exported_images", cfg.ExportDir)
	assert.Equal(t, "local", cfg.BlobStorage)
	assert.Equal(t, DefaultUserAgent, cfg.FetchUserAgent)
	assert.GreaterOrEqual(t, cfg.FetchWorkers, 2)
}

func TestLoad_MongoURIAlias(t *testing.T) {
	t.Setenv("STORE_DSN", "")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.StoreDSN)
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("STORE_DSN", "")
	t.Setenv("MONGO_URI", "")

	envFile := filepath.Join(t.TempDir(), "scraper.env")
	content := "STORE_DSN=postgres://u:p@localhost:5432/images\nJPEG_QUALITY=80\nFETCH_TIMEOUT=3s\nBLOB_STORAGE=MinIO\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/images", cfg.StoreDSN)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "minio", cfg.BlobStorage)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{JPEGQuality: 400, CandidateMultiplier: -1, FetchWorkers: 0, MinImageBytes: -5}
	cfg.normalize()

	assert.Equal(t, 95, cfg.JPEGQuality)
	assert.Equal(t, 20, cfg.CandidateMultiplier)
	assert.Equal(t, 0, cfg.MinImageBytes)
	assert.GreaterOrEqual(t, cfg.FetchWorkers, 2)
	assert.Equal(t, 1, cfg.DiscoveryPages)
}

func TestBlobOptions(t *testing.T) {
	cfg := &Config{BlobStorage: "webdav", WebDAVURL: "https://dav.example.com", WebDAVRootPath: "/img"}
	opts := cfg.BlobOptions()
	assert.Equal(t, "https://dav.example.com", opts["url"])
	assert.Equal(t, "/img", opts["root_path"])

	cfg = &Config{BlobStorage: "local", BlobLocalPath: "/tmp/blobs"}
	assert.Equal(t, "/tmp/blobs", cfg.BlobOptions()["path"])
}

func TestCORSOrigins(t *testing.T) {
	cfg := &Config{ServerCORSOrigins: " https://a.example.com, ,https://b.example.com "}
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins())

	cfg = &Config{}
	assert.Empty(t, cfg.CORSOrigins())
}
