package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/robodigest/internal/model"
)

// PaperSource は論文検索の外部APIクライアントのインターフェース。
type PaperSource interface {
	SearchPapers(ctx context.Context, q model.PaperQuery) ([]model.Paper, error)
}

// VideoSource は動画検索の外部APIクライアントのインターフェース。
type VideoSource interface {
	SearchVideos(ctx context.Context, q model.VideoQuery) (*model.VideoPage, error)
}

// Summarizer はLLM要約クライアントのインターフェース。
// 返された要約結果の中身は解釈しない。
type Summarizer interface {
	Summarize(ctx context.Context, req model.SummaryRequest) (*model.Enrichment, error)
}

// BookmarkSaver はブックマーク集合を永続化するインターフェース。
// bookmark.Storeが実装する。
type BookmarkSaver interface {
	Save(ctx context.Context, items []model.ContentItem) error
}

// Recorder はダッシュボードの操作結果を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordSummary(outcome string)
	RecordBookmarkToggle(action string)
	RecordStaleResponse(kind string)
	SetActiveDashboards(n int)
}

// 要約の結果区分
const (
	SummaryOutcomeSuccess = "success"
	SummaryOutcomeFailure = "failure"
	SummaryOutcomeBusy    = "busy"
)

// Deps はDashboardが利用する外部協調者と設定。
type Deps struct {
	Papers        PaperSource
	Videos        VideoSource
	Summarizer    Summarizer
	Logger        *slog.Logger
	Metrics       Recorder
	VideoPageSize int              // 動画1ページの取得件数。0なら10
	Now           func() time.Time // テスト用。nilならtime.Now
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) pageSize() int {
	if d.VideoPageSize <= 0 {
		return defaultVideoPageSize
	}
	return d.VideoPageSize
}

// noopRecorder は何も記録しないRecorder。
type noopRecorder struct{}

func (noopRecorder) RecordSummary(string)        {}
func (noopRecorder) RecordBookmarkToggle(string) {}
func (noopRecorder) RecordStaleResponse(string)  {}
func (noopRecorder) SetActiveDashboards(int)     {}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = noopRecorder{}
	}
	return d
}
