package storage

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"
)

// newWebDAVServer 基于 x/net/webdav 内存文件系统的测试服务器
func newWebDAVServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(&webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	})
	t.Cleanup(srv.Close)
	return srv
}

// TestWebDAVStorageValidation 测试 WebDAV 存储配置验证
func TestWebDAVStorageValidation(t *testing.T) {
	_, err := NewWebDAVStorage(WebDAVConfig{URL: ""})
	assert.EqualError(t, err, "webdav URL is required")

	_, err = NewWebDAVStorage(WebDAVConfig{URL: "http://127.0.0.1:1", Timeout: time.Second})
	assert.Error(t, err)
}

// TestWebDAVStorage_RoundTrip 测试写入、读取、存在性检查与删除
func TestWebDAVStorage_RoundTrip(t *testing.T) {
	srv := newWebDAVServer(t)

	s, err := NewWebDAVStorage(WebDAVConfig{URL: srv.URL, RootPath: "blobs", Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx := context.Background()
	handle := "original/2024/01/15/abc.png"

	require.NoError(t, s.SaveWithContext(ctx, handle, strings.NewReader("png bytes")))

	ok, err := s.Exists(ctx, handle)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.GetWithContext(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	require.NoError(t, s.DeleteWithContext(ctx, handle))
	ok, err = s.Exists(ctx, handle)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "webdav:"+srv.URL+"/blobs", s.Name())
}

// TestWebDAVStorageFullPath 测试路径生成逻辑
func TestWebDAVStorageFullPath(t *testing.T) {
	tests := []struct {
		name     string
		rootPath string
		handle   string
		want     string
	}{
		{"empty root path", "", "original/2024/01/15/test.jpg", "/original/2024/01/15/test.jpg"},
		{"with root path", "/images", "original/2024/01/15/test.jpg", "/images/original/2024/01/15/test.jpg"},
		{"handle with leading slash", "", "/test.jpg", "/test.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &WebDAVStorage{rootPath: tt.rootPath}
			assert.Equal(t, tt.want, s.fullPath(tt.handle))
		})
	}
}

// TestWebDAVStorageContextCancellation 测试上下文取消处理
func TestWebDAVStorageContextCancellation(t *testing.T) {
	s := &WebDAVStorage{baseURL: "https://example.com"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.SaveWithContext(ctx, "test.jpg", strings.NewReader("x")), context.Canceled)
	_, err := s.GetWithContext(ctx, "test.jpg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.DeleteWithContext(ctx, "test.jpg"), context.Canceled)
	_, err = s.Exists(ctx, "test.jpg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Health(ctx), context.Canceled)
}
