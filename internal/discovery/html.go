package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// pageSize Bing 每页大约返回的结果数，用于计算 first 偏移
const pageSize = 35

// HTMLDiscoverer 直接请求搜索结果页并解析 HTML，不依赖浏览器
type HTMLDiscoverer struct {
	client    *http.Client
	endpoint  string
	userAgent string
	pages     int
}

// NewHTMLDiscoverer 创建 HTML 发现器，client 为空时使用默认客户端
func NewHTMLDiscoverer(client *http.Client, opts Options) *HTMLDiscoverer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	pages := opts.Pages
	if pages <= 0 {
		pages = 1
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTMLDiscoverer{
		client:    client,
		endpoint:  endpoint,
		userAgent: opts.UserAgent,
		pages:     pages,
	}
}

// Name 返回发现器名称
func (d *HTMLDiscoverer) Name() string {
	return "html"
}

// Discover 逐页抓取结果，直到凑够 maxResults、没有新结果或达到页数上限
// 第一页失败返回错误，后续页失败时返回已收集的结果
func (d *HTMLDiscoverer) Discover(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		return []string{}, nil
	}
	c := newCollector(maxResults)

	for page := 0; page < d.pages && !c.full(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		offset := 0
		if page > 0 {
			offset = page*pageSize + 1
		}

		added, err := d.scrapePage(ctx, searchURL(d.endpoint, query, offset), c)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if page == 0 {
				return nil, fmt.Errorf("failed to load search results for %q: %w", query, err)
			}
			log.Warn().Err(err).Str("query", query).Int("page", page).Msg("Search page failed, keeping collected results")
			break
		}
		if added == 0 {
			break
		}
	}

	log.Info().Str("query", query).Int("count", len(c.urls)).Msg("Collected image links")
	return c.result(), nil
}

// scrapePage 请求一页结果并把图片 URL 放入 collector，返回新增数量
func (d *HTMLDiscoverer) scrapePage(ctx context.Context, pageURL string, c *collector) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("search page returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to parse search page: %w", err)
	}

	added := 0
	for _, u := range extractImageURLs(doc) {
		if c.add(u) {
			added++
		}
	}
	return added, nil
}

// bingMeta a.iusc 上 m 属性中的 JSON
type bingMeta struct {
	MediaURL string `json:"murl"`
}

// extractImageURLs 按文档顺序提取图片地址
// a.iusc 的 murl 是原图地址，img.mimg 是缩略图地址
func extractImageURLs(doc *html.Node) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "iusc"):
				if raw := attr(n, "m"); raw != "" {
					var meta bingMeta
					if err := json.Unmarshal([]byte(raw), &meta); err == nil && meta.MediaURL != "" {
						out = append(out, meta.MediaURL)
					}
				}
			case n.Data == "img" && hasClass(n, "mimg"):
				if src := attr(n, "src"); src != "" {
					out = append(out, src)
				} else if src := attr(n, "data-src"); src != "" {
					out = append(out, src)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
