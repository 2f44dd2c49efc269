// Package discovery 根据搜索词发现候选图片 URL
package discovery

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultEndpoint Bing 图片搜索地址
const DefaultEndpoint = "https://www.bing.com/images/search"

// ErrBrowser 浏览器启动或页面操作失败
var ErrBrowser = errors.New("browser discovery failed")

// Discoverer 返回与 query 相关的图片 URL，结果在一次调用内去重且不超过 maxResults
type Discoverer interface {
	Discover(ctx context.Context, query string, maxResults int) ([]string, error)
	Name() string
}

// Options 发现器选择与配置
type Options struct {
	Endpoint  string
	UserAgent string
	Pages     int
	Wait      time.Duration

	// Headless 浏览器是否无界面运行
	Headless bool
	// DriverPath Chrome 可执行文件路径
	DriverPath string
	// NoManager 禁用自动定位浏览器，未指定 DriverPath 时退回 HTML 解析
	NoManager bool
}

// New 按选项选择发现器
// 指定了 DriverPath 或启用了自动定位时使用浏览器，否则使用 HTML 解析
func New(opts Options) Discoverer {
	if opts.DriverPath != "" || !opts.NoManager {
		log.Debug().Str("driver", opts.DriverPath).Bool("headless", opts.Headless).Msg("Using browser discoverer")
		return NewBrowserDiscoverer(opts)
	}
	log.Debug().Msg("Using HTML discoverer")
	return NewHTMLDiscoverer(nil, opts)
}

// searchURL 拼接搜索地址，offset 为 0 时不带 first 参数
func searchURL(endpoint, query string, offset int) string {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("form", "HDRSC2")
	if offset > 0 {
		params.Set("first", strconv.Itoa(offset))
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}

// collector 按发现顺序收集唯一的 http(s) URL
type collector struct {
	seen  map[string]struct{}
	urls  []string
	limit int
}

func newCollector(limit int) *collector {
	return &collector{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// add 返回是否新增
func (c *collector) add(raw string) bool {
	if c.full() {
		return false
	}
	raw = strings.TrimSpace(raw)
	if !isHTTPURL(raw) {
		return false
	}
	if _, ok := c.seen[raw]; ok {
		return false
	}
	c.seen[raw] = struct{}{}
	c.urls = append(c.urls, raw)
	return true
}

func (c *collector) full() bool {
	return c.limit > 0 && len(c.urls) >= c.limit
}

func (c *collector) result() []string {
	if c.urls == nil {
		return []string{}
	}
	return c.urls
}

func isHTTPURL(raw string) bool {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Host != ""
}
