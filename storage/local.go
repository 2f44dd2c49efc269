package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地文件存储实现
// 同时用于 SQL 存储的二进制对象和采集时的本地图片目录
type LocalStorage struct {
	absBasePath string
}

// NewLocalStorage 创建本地存储提供者，目录不存在时自动创建
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err)
	}

	probe, err := os.CreateTemp(absPath, ".write_test_*")
	if err != nil {
		return nil, fmt.Errorf("local storage directory '%s' is not writable: %w", absPath, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return &LocalStorage{
		absBasePath: absPath + string(os.PathSeparator),
	}, nil
}

// resolve 校验 handle 并返回绝对路径
func (s *LocalStorage) resolve(handle string) (string, error) {
	if !IsValidStoragePath(handle) {
		return "", fmt.Errorf("invalid storage path: %q", handle)
	}
	full := filepath.Join(s.absBasePath, handle)
	// 防止目录遍历
	if !strings.HasPrefix(full, s.absBasePath) {
		return "", fmt.Errorf("invalid storage path, potential directory traversal: %q", handle)
	}
	return full, nil
}

// SaveWithContext 写入文件
// 先写临时文件再 rename，读者不会看到写了一半的文件
func (s *LocalStorage) SaveWithContext(ctx context.Context, handle string, file io.Reader) error {
	dstPath, err := s.resolve(handle)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", handle, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp_*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for '%s': %w", handle, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write '%s': %w", handle, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close '%s': %w", handle, err)
	}
	if err := os.Rename(tmpName, dstPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move '%s' into place: %w", handle, err)
	}
	return nil
}

// GetWithContext 打开文件
func (s *LocalStorage) GetWithContext(ctx context.Context, handle string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, handle)
		}
		return nil, fmt.Errorf("failed to open file '%s': %w", handle, err)
	}
	return file, nil
}

// DeleteWithContext 删除文件
func (s *LocalStorage) DeleteWithContext(ctx context.Context, handle string) error {
	fullPath, err := s.resolve(handle)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, handle)
		}
		return fmt.Errorf("failed to delete local file '%s': %w", handle, err)
	}
	return nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, handle string) (bool, error) {
	fullPath, err := s.resolve(handle)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Health 检查存储健康状态
func (s *LocalStorage) Health(ctx context.Context) error {
	_, err := os.ReadDir(s.absBasePath)
	return err
}

// Name 返回存储名称
func (s *LocalStorage) Name() string {
	return "local"
}

// Path 返回 handle 对应的绝对路径，供日志展示
func (s *LocalStorage) Path(handle string) string {
	return filepath.Join(s.absBasePath, handle)
}

// IsValidStoragePath 校验存储路径是否合法
func IsValidStoragePath(path string) bool {
	if path == "" || path == "." {
		return false
	}

	// 不允许绝对路径
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return false
	}

	// 防止目录遍历
	if strings.Contains(path, "..") {
		return false
	}

	// 只允许安全字符
	for _, r := range path {
		if (r < 'a' || r > 'z') &&
			(r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') &&
			r != '-' && r != '_' && r != '.' && r != '/' {
			return false
		}
	}

	return true
}
