package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig WebDAV 配置结构
type WebDAVConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	RootPath string        `mapstructure:"root_path"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WebDAVStorage WebDAV 存储实现
type WebDAVStorage struct {
	client   *gowebdav.Client
	baseURL  string
	rootPath string
	timeout  time.Duration
}

// NewWebDAVStorage 创建 WebDAV 存储提供者并验证连接
func NewWebDAVStorage(cfg WebDAVConfig) (*WebDAVStorage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	rootPath := strings.Trim(cfg.RootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	s := &WebDAVStorage{
		client:   client,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		rootPath: rootPath,
		timeout:  cfg.Timeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if rootPath != "" {
		if _, err := call(ctx, func() (struct{}, error) {
			return struct{}{}, client.MkdirAll(rootPath, 0755)
		}); err != nil {
			return nil, fmt.Errorf("webdav connection test failed: %w", err)
		}
	}
	if err := s.Health(ctx); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}
	return s, nil
}

// call 在独立 goroutine 中执行不支持 context 的 gowebdav 调用
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{val: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-done:
		return res.val, res.err
	}
}

// fullPath 生成完整的 WebDAV 路径
func (s *WebDAVStorage) fullPath(handle string) string {
	handle = strings.TrimLeft(handle, "/")
	if s.rootPath != "" {
		return s.rootPath + "/" + handle
	}
	return "/" + handle
}

// SaveWithContext 写入对象，WriteStream 会自动创建父目录
func (s *WebDAVStorage) SaveWithContext(ctx context.Context, handle string, file io.Reader) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	fullPath := s.fullPath(handle)
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.WriteStream(fullPath, file, 0644)
	})
	if err != nil {
		return fmt.Errorf("failed to write file %s: %w", handle, err)
	}
	return nil
}

// GetWithContext 读取对象
func (s *WebDAVStorage) GetWithContext(ctx context.Context, handle string) (io.ReadCloser, error) {
	fullPath := s.fullPath(handle)
	rc, err := call(ctx, func() (io.ReadCloser, error) {
		return s.client.ReadStream(fullPath)
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, handle)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", handle, err)
	}
	return rc, nil
}

// DeleteWithContext 删除对象
func (s *WebDAVStorage) DeleteWithContext(ctx context.Context, handle string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	fullPath := s.fullPath(handle)
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.Remove(fullPath)
	})
	return err
}

// Exists 检查对象是否存在
func (s *WebDAVStorage) Exists(ctx context.Context, handle string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	fullPath := s.fullPath(handle)
	_, err := call(ctx, func() (struct{}, error) {
		_, err := s.client.Stat(fullPath)
		return struct{}{}, err
	})
	switch {
	case err == nil:
		return true, nil
	case gowebdav.IsErrNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Health 检查根目录可读
func (s *WebDAVStorage) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// 测试中可能未初始化 client
	if s.client == nil {
		return nil
	}

	root := s.rootPath
	if root == "" {
		root = "/"
	}
	_, err := call(ctx, func() (struct{}, error) {
		_, err := s.client.ReadDir(root)
		return struct{}{}, err
	})
	return err
}

// Name 返回存储名称
func (s *WebDAVStorage) Name() string {
	if s.baseURL == "" {
		return "webdav"
	}
	return fmt.Sprintf("webdav:%s%s", s.baseURL, s.rootPath)
}
