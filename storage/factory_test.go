package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Local(t *testing.T) {
	p, err := NewProvider("local", map[string]interface{}{"path": t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())
	assert.IsType(t, &LocalStorage{}, p)
}

func TestNewProvider_LocalRequiresPath(t *testing.T) {
	_, err := NewProvider("local", map[string]interface{}{})
	assert.ErrorContains(t, err, "path is required")
}

func TestNewProvider_WebDAVDecodesDuration(t *testing.T) {
	srv := newWebDAVServer(t)

	p, err := NewProvider("webdav", map[string]interface{}{
		"url":     srv.URL,
		"timeout": "5s",
	})
	require.NoError(t, err)
	dav, ok := p.(*WebDAVStorage)
	require.True(t, ok)
	assert.Equal(t, "5s", dav.timeout.String())
}

func TestNewProvider_MinioRequiresEndpoint(t *testing.T) {
	_, err := NewProvider("minio", map[string]interface{}{"bucket_name": "images"})
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider("ftp", nil)
	assert.ErrorContains(t, err, "unsupported blob storage type")
}
