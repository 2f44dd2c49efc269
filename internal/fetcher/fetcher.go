// Package fetcher 下载候选图片的原始字节
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anoixa/image-scraper/utils/pool"
	"golang.org/x/time/rate"
)

var (
	// ErrFetch 所有下载失败都包装此错误，调用方据此跳过候选
	ErrFetch = errors.New("fetch failed")

	// ErrBadStatus 非 2xx 响应
	ErrBadStatus = errors.New("unexpected status code")

	// ErrTooLarge 响应体超过上限
	ErrTooLarge = errors.New("response body too large")
)

const (
	defaultTimeout = 15 * time.Second
	acceptHeader   = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// Options 下载器配置
type Options struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	// RateLimit 每秒请求数，0 表示不限速
	RateLimit float64
	// HTTPClient 为空时使用带连接池的默认客户端
	HTTPClient *http.Client
}

// Content 下载结果
type Content struct {
	URL         string
	Data        []byte
	ContentType string
}

// Client 图片下载器，可被多个 goroutine 并发使用
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
	timeout   time.Duration
	limiter   *rate.Limiter
}

// New 创建下载器
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		http:      httpClient,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		timeout:   timeout,
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// Fetch 下载 url 并返回原始字节与 Content-Type
// 除调用方取消外，所有错误都包装 ErrFetch；不做重试
func (c *Client) Fetch(ctx context.Context, url string) (*Content, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: rate limiter: %w", ErrFetch, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w: %d", ErrFetch, ErrBadStatus, resp.StatusCode)
	}

	if c.maxBytes > 0 && resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrFetch, ErrTooLarge, resp.ContentLength)
	}

	body := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if _, err := buf.ReadFrom(body); err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrFetch, err)
	}
	if c.maxBytes > 0 && int64(buf.Len()) > c.maxBytes {
		return nil, fmt.Errorf("%w: %w: more than %d bytes", ErrFetch, ErrTooLarge, c.maxBytes)
	}
	// 缓冲区会被复用，返回独立副本
	data := bytes.Clone(buf.Bytes())

	return &Content{
		URL:         url,
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
