package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

const (
	scrollRounds = 5
	scrollPause  = time.Second

	collectScript = `Array.from(document.querySelectorAll('img.mimg'))
	.map(img => img.getAttribute('src') || img.getAttribute('data-src') || '')`
	scrollScript = `window.scrollBy(0, document.body.scrollHeight); true`
)

// BrowserDiscoverer 用 Chrome 渲染搜索页，滚动加载后收集缩略图地址
type BrowserDiscoverer struct {
	endpoint   string
	userAgent  string
	driverPath string
	headless   bool
	wait       time.Duration
}

// NewBrowserDiscoverer 创建浏览器发现器
func NewBrowserDiscoverer(opts Options) *BrowserDiscoverer {
	wait := opts.Wait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &BrowserDiscoverer{
		endpoint:   endpoint,
		userAgent:  opts.UserAgent,
		driverPath: opts.DriverPath,
		headless:   opts.Headless,
		wait:       wait,
	}
}

// Name 返回发现器名称
func (d *BrowserDiscoverer) Name() string {
	return "browser"
}

// allocatorOptions 浏览器启动参数
func (d *BrowserDiscoverer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	}
	if d.headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if d.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(d.userAgent))
	}
	if d.driverPath != "" {
		opts = append(opts, chromedp.ExecPath(d.driverPath))
	}
	return opts
}

// Discover 打开搜索页，等待渲染后滚动若干次收集图片地址
// 浏览器无法启动或页面无法打开时返回错误
func (d *BrowserDiscoverer) Discover(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		return []string{}, nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, d.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug().Msgf("chromedp: "+format, args...)
		}),
	)
	defer cancelBrowser()

	pageURL := searchURL(d.endpoint, query, 0)
	log.Info().Str("query", query).Str("url", pageURL).Msg("Opening search page")

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(d.wait),
	); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrBrowser, err)
	}

	c := newCollector(maxResults)
	for round := 0; round < scrollRounds && !c.full(); round++ {
		var srcs []string
		if err := chromedp.Run(browserCtx, chromedp.Evaluate(collectScript, &srcs)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn().Err(err).Int("round", round).Msg("Failed to collect image elements")
			break
		}
		for _, src := range srcs {
			c.add(src)
		}

		var scrolled bool
		if err := chromedp.Run(browserCtx,
			chromedp.Evaluate(scrollScript, &scrolled),
			chromedp.Sleep(scrollPause),
		); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn().Err(err).Int("round", round).Msg("Failed to scroll search page")
			break
		}
	}

	log.Info().Str("query", query).Int("count", len(c.urls)).Msg("Collected image links")
	return c.result(), nil
}
