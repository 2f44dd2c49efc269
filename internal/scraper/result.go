package scraper

import (
	"github.com/anoixa/image-scraper/database/models"
	"github.com/rs/zerolog"
)

// Outcome 单个候选的处理结果类别
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Reason 跳过或失败的原因
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonFetchFailed   Reason = "fetch_failed"
	ReasonTooSmall      Reason = "too_small"
	ReasonDuplicate     Reason = "duplicate"
	ReasonLookupFailed  Reason = "lookup_failed"
	ReasonDecodeFailed  Reason = "decode_failed"
	ReasonPersistFailed Reason = "persist_failed"
)

// stageResult 流水线各阶段的结果，循环根据它决定继续还是入库
type stageResult struct {
	outcome Outcome
	reason  Reason
	err     error
}

var accepted = stageResult{outcome: OutcomeAccepted}

func skipped(reason Reason, err error) stageResult {
	return stageResult{outcome: OutcomeSkipped, reason: reason, err: err}
}

func failed(reason Reason, err error) stageResult {
	return stageResult{outcome: OutcomeFailed, reason: reason, err: err}
}

func (r stageResult) ok() bool {
	return r.outcome == OutcomeAccepted
}

// Report 一次 EnsureImages 的统计
type Report struct {
	Query     string `json:"query"`
	Requested int    `json:"requested"`
	Existing  int64  `json:"existing"`
	// Discovered 发现的候选数，命中已有记录时为 0
	Discovered    int `json:"discovered"`
	Processed     int `json:"processed"`
	Accepted      int `json:"accepted"`
	FetchFailed   int `json:"fetch_failed"`
	TooSmall      int `json:"too_small"`
	Duplicates    int `json:"duplicates"`
	LookupFailed  int `json:"lookup_failed"`
	DecodeFailed  int `json:"decode_failed"`
	PersistFailed int `json:"persist_failed"`
}

func (r *Report) record(res stageResult) {
	r.Processed++
	if res.ok() {
		r.Accepted++
		return
	}
	switch res.reason {
	case ReasonFetchFailed:
		r.FetchFailed++
	case ReasonTooSmall:
		r.TooSmall++
	case ReasonDuplicate:
		r.Duplicates++
	case ReasonLookupFailed:
		r.LookupFailed++
	case ReasonDecodeFailed:
		r.DecodeFailed++
	case ReasonPersistFailed:
		r.PersistFailed++
	}
}

// MarshalZerologObject 让 Report 可以直接作为日志字段
func (r *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("query", r.Query).
		Int("requested", r.Requested).
		Int64("existing", r.Existing).
		Int("discovered", r.Discovered).
		Int("processed", r.Processed).
		Int("accepted", r.Accepted).
		Int("fetch_failed", r.FetchFailed).
		Int("too_small", r.TooSmall).
		Int("duplicates", r.Duplicates).
		Int("lookup_failed", r.LookupFailed).
		Int("decode_failed", r.DecodeFailed).
		Int("persist_failed", r.PersistFailed)
}

// Result EnsureImages 的返回值
type Result struct {
	// Records 最多 requiredCount 条，按 created_at 倒序
	Records []*models.Image `json:"records"`
	Report  Report          `json:"report"`
}
