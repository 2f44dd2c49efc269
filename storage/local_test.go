package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalStorage_PathTraversal_Prevention 测试路径遍历防护
func TestLocalStorage_PathTraversal_Prevention(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	traversalAttempts := []string{
		"../../../etc/passwd",
		"..\\..\\..\\windows\\system32\\config\\sam",
		"../../.env",
		"..",
		".",
		"",
		"folder/../../../etc/passwd",
		"/absolute/path",
	}

	for _, attempt := range traversalAttempts {
		t.Run("save_"+attempt, func(t *testing.T) {
			err := storage.SaveWithContext(ctx, attempt, strings.NewReader("content"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid")
		})
	}

	_, err = storage.GetWithContext(ctx, "../../../etc/passwd")
	assert.ErrorContains(t, err, "invalid")
	assert.ErrorContains(t, storage.DeleteWithContext(ctx, "../x"), "invalid")
}

// TestLocalStorage_RoundTrip 测试写入、读取、存在性检查与删除
func TestLocalStorage_RoundTrip(t *testing.T) {
	base := t.TempDir()
	storage, err := NewLocalStorage(base)
	require.NoError(t, err)

	ctx := context.Background()
	handle := "original/2024/01/15/0b6f.jpg"

	ok, err := storage.Exists(ctx, handle)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.SaveWithContext(ctx, handle, strings.NewReader("jpeg bytes")))

	ok, err = storage.Exists(ctx, handle)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := storage.GetWithContext(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	assert.FileExists(t, filepath.Join(base, "original", "2024", "01", "15", "0b6f.jpg"))
	assert.Equal(t, filepath.Join(storage.absBasePath, handle), storage.Path(handle))

	require.NoError(t, storage.DeleteWithContext(ctx, handle))
	_, err = storage.GetWithContext(ctx, handle)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, storage.DeleteWithContext(ctx, handle), ErrNotFound)
}

// TestLocalStorage_OverwriteLeavesNoTempFiles 覆盖写入后目录中不残留临时文件
func TestLocalStorage_OverwriteLeavesNoTempFiles(t *testing.T) {
	base := t.TempDir()
	storage, err := NewLocalStorage(base)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, storage.SaveWithContext(ctx, "cat/cat_1.jpg", strings.NewReader("first")))
	require.NoError(t, storage.SaveWithContext(ctx, "cat/cat_1.jpg", strings.NewReader("second")))

	entries, err := os.ReadDir(filepath.Join(base, "cat"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cat_1.jpg", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(base, "cat", "cat_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

// TestLocalStorage_CanceledContext 已取消的上下文不写入
func TestLocalStorage_CanceledContext(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = storage.SaveWithContext(ctx, "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestIsValidStoragePath 测试存储路径校验
func TestIsValidStoragePath(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		valid bool
	}{
		{"simple", "file.txt", true},
		{"nested", "original/2024/01/15/abc.jpg", true},
		{"sanitized query", "hello_world/hello_world_3.png", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"absolute_unix", "/etc/passwd", false},
		{"absolute_windows", "C:\\file.txt", false},
		{"traversal", "../file.txt", false},
		{"null_byte", "file\x00.txt", false},
		{"newline", "file\n.txt", false},
		{"space", "my file.jpg", false},
		{"shell", "file;rm -rf.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidStoragePath(tt.path), "path: %q", tt.path)
		})
	}
}
