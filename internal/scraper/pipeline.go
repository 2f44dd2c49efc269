// Package scraper 采集流水线：发现候选、下载、过滤、去重、归一化并入库
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/anoixa/image-scraper/internal/dedup"
	"github.com/anoixa/image-scraper/internal/discovery"
	"github.com/anoixa/image-scraper/internal/fetcher"
	"github.com/anoixa/image-scraper/internal/imaging"
	"github.com/anoixa/image-scraper/internal/metrics"
	"github.com/anoixa/image-scraper/storage"
	"github.com/anoixa/image-scraper/utils/format"
	"github.com/anoixa/image-scraper/utils/naming"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMinImageBytes       = 10_000
	DefaultCandidateMultiplier = 20
)

// ErrDiscovery URL 发现失败，本次调用无法继续
var ErrDiscovery = errors.New("url discovery failed")

// Fetcher 下载候选内容
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Content, error)
}

// Options 流水线参数
type Options struct {
	// MinImageBytes 小于该大小的内容视为占位图或图标，0 表示不过滤
	MinImageBytes       int
	CandidateMultiplier int
	JPEGQuality         int
	// Workers 并发下载数
	Workers int
	// Lookahead 已下载但尚未提交的候选上限，0 表示 Workers*2
	Lookahead int
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		MinImageBytes:       DefaultMinImageBytes,
		CandidateMultiplier: DefaultCandidateMultiplier,
		JPEGQuality:         imaging.DefaultQuality,
		Workers:             4,
	}
}

// Pipeline 采集流水线
type Pipeline struct {
	store      database.ImageStore
	index      *dedup.Index
	discoverer discovery.Discoverer
	fetcher    Fetcher
	transcoder imaging.Transcoder
	local      storage.Provider
	metrics    *metrics.Metrics
	opts       Options

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight 一次共享的采集，所有等待者都离开后才取消
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewPipeline 创建采集流水线
// local 为本地图片目录，为 nil 时不落盘；m 为 nil 时不记录指标
func NewPipeline(
	store database.ImageStore,
	index *dedup.Index,
	discoverer discovery.Discoverer,
	fetch Fetcher,
	transcoder imaging.Transcoder,
	local storage.Provider,
	m *metrics.Metrics,
	opts Options,
) *Pipeline {
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = imaging.DefaultQuality
	}
	if opts.MinImageBytes < 0 {
		opts.MinImageBytes = 0
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = opts.Workers * 2
	}
	if transcoder == nil {
		transcoder = imaging.NewStdTranscoder()
	}

	return &Pipeline{
		store:      store,
		index:      index,
		discoverer: discoverer,
		fetcher:    fetch,
		transcoder: transcoder,
		local:      local,
		metrics:    m,
		opts:       opts,
		flights:    make(map[string]*flight),
	}
}

// EnsureImages 确保 query 下至少有 requiredCount 条记录（尽力而为），返回最新的 requiredCount 条
// 相同 (query, requiredCount) 的并发调用共享同一次执行；单个调用者取消只影响自己，
// 全部调用者都取消后共享的执行才会停止
func (p *Pipeline) EnsureImages(ctx context.Context, query string, requiredCount int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := flightKey(query, requiredCount)
	f, ch := p.join(ctx, key, func(runCtx context.Context) (interface{}, error) {
		return p.ensure(runCtx, query, requiredCount)
	})
	defer p.leave(key, f)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug().Str("query", query).Msg("Joined in-flight acquisition")
		}
		return res.Val.(*Result), nil
	}
}

func flightKey(query string, requiredCount int) string {
	return fmt.Sprintf("%s\x00%d", query, requiredCount)
}

// join 加入 key 对应的执行，不存在时以脱离调用者取消的 context 启动一次新的执行
// flights 与 group 中的条目始终在 p.mu 下成对增删
func (p *Pipeline) join(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (*flight, <-chan singleflight.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.flights[key]
	if !ok {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: runCtx, cancel: cancel}
		p.flights[key] = f
	}
	f.waiters++

	ch := p.group.DoChan(key, func() (interface{}, error) {
		defer func() {
			p.mu.Lock()
			p.forget(key, f)
			p.mu.Unlock()
			f.cancel()
		}()
		return fn(f.ctx)
	})
	return f, ch
}

// leave 调用者离开；最后一个离开时取消仍在进行的执行，之后的调用会重新开始
func (p *Pipeline) leave(key string, f *flight) {
	p.mu.Lock()
	f.waiters--
	last := f.waiters == 0
	if last {
		p.forget(key, f)
	}
	p.mu.Unlock()

	if last {
		f.cancel()
	}
}

// forget 调用方需持有 p.mu
func (p *Pipeline) forget(key string, f *flight) {
	if p.flights[key] == f {
		delete(p.flights, key)
		p.group.Forget(key)
	}
}

func (p *Pipeline) ensure(ctx context.Context, query string, requiredCount int) (*Result, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveAcquire(time.Since(start)) }()

	report := Report{Query: query, Requested: requiredCount}

	existing, err := p.index.Count(ctx, query)
	if err != nil {
		return nil, err
	}
	report.Existing = existing

	if existing >= int64(requiredCount) {
		log.Info().Str("query", query).Int64("existing", existing).Msg("Enough images already stored")
		return p.finish(ctx, query, requiredCount, report)
	}

	shortfall := requiredCount - int(existing)
	log.Info().Str("query", query).Int64("existing", existing).Int("to_add", shortfall).Msg("Collecting more images")

	candidates, err := p.discoverer.Discover(ctx, query, shortfall*p.opts.CandidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("%w for %q: %w", ErrDiscovery, query, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.Discovered = len(candidates)

	if len(candidates) == 0 {
		log.Warn().Str("query", query).Msg("No candidate URLs discovered")
		return p.finish(ctx, query, requiredCount, report)
	}

	if err := p.acquire(ctx, query, int(existing), shortfall, candidates, &report); err != nil {
		return nil, err
	}
	return p.finish(ctx, query, requiredCount, report)
}

func (p *Pipeline) finish(ctx context.Context, query string, requiredCount int, report Report) (*Result, error) {
	records, err := p.index.ListRecent(ctx, query, requiredCount)
	if err != nil {
		return nil, err
	}
	log.Info().EmbedObject(&report).Int("returned", len(records)).Msg("Acquisition finished")
	return &Result{Records: records, Report: report}, nil
}

// candidate 已下载并完成校验的候选
type candidate struct {
	url         string
	data        []byte
	contentType string
	checksum    string
	result      stageResult
}

// acquire 并发下载候选，由当前 goroutine 按发现顺序逐个提交，凑够 shortfall 后停止
func (p *Pipeline) acquire(parent context.Context, query string, existing, shortfall int, candidates []string, report *Report) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	slots := make([]chan candidate, len(candidates))
	for i := range slots {
		slots[i] = make(chan candidate, 1)
	}

	sem := semaphore.NewWeighted(int64(p.opts.Lookahead))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	produced := make(chan struct{})
	go func() {
		defer close(produced)
		for i, u := range candidates {
			if err := sem.Acquire(gctx, 1); err != nil {
				return
			}
			g.Go(func() error {
				slots[i] <- p.prepare(gctx, u)
				return nil
			})
		}
	}()

	saved := 0
commit:
	for i := range candidates {
		var c candidate
		select {
		case c = <-slots[i]:
		case <-ctx.Done():
			break commit
		}
		res := c.result
		if res.ok() {
			res = p.commit(ctx, query, c, existing+saved+1)
		}
		if parent.Err() != nil {
			break
		}

		report.record(res)
		p.metrics.RecordCandidate(string(res.outcome), string(res.reason))
		logResult(query, c.url, res)

		if res.ok() {
			saved++
			if saved >= shortfall {
				break
			}
		}
		// 提交完成后才释放名额，预取数量包含正在提交的候选
		sem.Release(1)
	}

	cancel()
	<-produced
	_ = g.Wait()

	if err := parent.Err(); err != nil {
		return err
	}
	if saved < shortfall {
		log.Warn().Str("query", query).Int("saved", saved).Int("wanted", shortfall).Msg("Candidates exhausted before reaching requested count")
	}
	return nil
}

// prepare 下载、大小过滤并计算 checksum，可在多个 goroutine 中并发执行
func (p *Pipeline) prepare(ctx context.Context, url string) candidate {
	c := candidate{url: url}

	start := time.Now()
	content, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.metrics.ObserveFetch(time.Since(start), 0)
		c.result = failed(ReasonFetchFailed, err)
		return c
	}
	p.metrics.ObserveFetch(time.Since(start), len(content.Data))

	if len(content.Data) < p.opts.MinImageBytes {
		c.result = skipped(ReasonTooSmall, fmt.Errorf("%d bytes", len(content.Data)))
		return c
	}

	c.data = content.Data
	c.contentType = content.ContentType
	c.checksum = dedup.Checksum(c.data)
	c.result = accepted
	return c
}

// commit 去重检查、归一化、落盘并写入存储，只在提交 goroutine 中调用
func (p *Pipeline) commit(ctx context.Context, query string, c candidate, fileIndex int) stageResult {
	exists, err := p.index.Exists(ctx, c.checksum)
	if err != nil {
		return failed(ReasonLookupFailed, err)
	}
	if exists {
		return skipped(ReasonDuplicate, nil)
	}

	normalized, err := imaging.Normalize(p.transcoder, c.data, c.contentType, p.opts.JPEGQuality)
	if err != nil {
		return failed(ReasonDecodeFailed, err)
	}

	filename := naming.ImageFilename(query, fileIndex, normalized.Ext)
	p.saveLocal(ctx, query, filename, normalized.Data)

	rec := &models.Image{
		Query:       query,
		Filename:    filename,
		URL:         c.url,
		Checksum:    c.checksum,
		ContentType: c.contentType,
	}
	if err := p.store.Save(ctx, rec, c.data); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return skipped(ReasonDuplicate, err)
		}
		return failed(ReasonPersistFailed, err)
	}

	p.index.Remember(ctx, c.checksum)
	log.Info().
		Str("query", query).
		Str("filename", filename).
		Str("checksum", c.checksum).
		Str("size", format.HumanReadableSize(rec.FileSize)).
		Bool("converted", normalized.Converted).
		Msg("Saved image")
	return accepted
}

// saveLocal 写入 <image_dir>/<topic>/<filename>，失败只记录日志
func (p *Pipeline) saveLocal(ctx context.Context, query, filename string, data []byte) {
	if p.local == nil {
		return
	}
	handle := path.Join(naming.TopicDir(query), filename)
	if err := p.local.SaveWithContext(ctx, handle, bytes.NewReader(data)); err != nil {
		log.Warn().Err(err).Str("path", handle).Msg("Failed to save image locally")
	}
}

func logResult(query, url string, res stageResult) {
	var ev *zerolog.Event
	switch res.outcome {
	case OutcomeAccepted:
		return
	case OutcomeSkipped:
		ev = log.Debug()
	default:
		ev = log.Warn()
	}
	ev.Err(res.err).
		Str("query", query).
		Str("url", url).
		Str("reason", string(res.reason)).
		Msg("Candidate not saved")
}
