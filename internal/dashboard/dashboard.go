// Package dashboard はクライアントスコープごとの集約・整合ステートマシンを提供する。
//
// 状態はStateの不変スナップショットとして保持し、すべての変更はcommitを通して
// 直列化する。外部API呼び出しはロックの外で行う。
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/robodigest/internal/bookmark"
	"github.com/hitoshi/robodigest/internal/feedcache"
	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/view"
)

// ErrItemNotFound はフィードキャッシュにもブックマークにも対象がないことを表す。
var ErrItemNotFound = errors.New("item not found")

const (
	sourceArXiv   = "arXiv"
	sourceYouTube = "YouTube"
)

// Dashboard は1つのクライアントスコープの状態を保持する。
type Dashboard struct {
	scope string
	deps  Deps
	saver BookmarkSaver

	mu    sync.Mutex
	state State

	lastUsed atomic.Int64 // UnixNano
}

// New はDashboardを生成する。bookmarksは移行済みのブックマーク集合。
func New(scope string, bookmarks []model.ContentItem, saver BookmarkSaver, deps Deps) *Dashboard {
	if bookmarks == nil {
		bookmarks = []model.ContentItem{}
	}
	d := &Dashboard{
		scope: scope,
		deps:  deps.withDefaults(),
		saver: saver,
		state: newState(bookmarks),
	}
	d.touch()
	return d
}

// Scope はクライアントスコープIDを返す。
func (d *Dashboard) Scope() string {
	return d.scope
}

// Snapshot は現在の状態を返す。
func (d *Dashboard) Snapshot() State {
	d.touch()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// commit は状態遷移fnを直列に適用する。
// ブックマークが変更された場合はロックを保持したまま保存し、古い集合で上書きされないようにする。
// 保存失敗は呼び出し元の操作を失敗させない。
func (d *Dashboard) commit(ctx context.Context, fn func(State) State) State {
	d.touch()
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.state
	next := fn(prev)
	if next.BookmarkRev != prev.BookmarkRev && d.saver != nil {
		if err := d.saver.Save(context.WithoutCancel(ctx), next.Bookmarks); err != nil {
			d.deps.Logger.Warn("ブックマークの保存に失敗しました。メモリ上の状態で続行します",
				slog.String("client_id", d.scope),
				slog.String("error", err.Error()),
			)
		}
	}
	d.state = next
	return next
}

// summarizing は要約処理中の件数を返す。最終利用時刻は更新しない。
func (d *Dashboard) summarizing() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Tracker.Len()
}

func (d *Dashboard) touch() {
	d.lastUsed.Store(d.deps.now().UnixNano())
}

// Bootstrap は初回アクセス時に両方の一覧を取得する。取得済みなら何もしない。
func (d *Dashboard) Bootstrap(ctx context.Context) error {
	s := d.Snapshot()
	if s.Feed.PaperStatus != feedcache.StatusIdle || s.Feed.VideoStatus != feedcache.StatusIdle {
		return nil
	}
	return d.Refresh(ctx)
}

// Refresh は論文一覧と動画一覧を並行に取得し直す。
// 片方の失敗はもう片方を中断しない。最初のエラーを返す。
func (d *Dashboard) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return d.FetchPapers(ctx) })
	g.Go(func() error { return d.FetchVideos(ctx) })
	return g.Wait()
}

// Search は検索キーワードを設定し、両方の一覧を取得し直す。
func (d *Dashboard) Search(ctx context.Context, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	d.commit(ctx, func(s State) State {
		s.Keyword = keyword
		return s
	})
	return d.Refresh(ctx)
}

// FetchPapers は現在の条件で論文一覧を取得して置き換える。
// 失敗時は既存の一覧を残し、エラー状態を記録する。
func (d *Dashboard) FetchPapers(ctx context.Context) error {
	var gen uint64
	var q model.PaperQuery
	d.commit(ctx, func(s State) State {
		s.PaperGeneration++
		gen = s.PaperGeneration
		q = model.PaperQuery{Keyword: s.Keyword, SortBy: s.PaperSort}
		s.Feed = s.Feed.MarkLoading(model.KindPaper)
		return s
	})

	papers, err := d.deps.Papers.SearchPapers(ctx, q)

	stale := false
	d.commit(ctx, func(s State) State {
		if s.PaperGeneration != gen {
			stale = true
			return s
		}
		if err != nil {
			s.Feed = s.Feed.MarkFailed(model.KindPaper, fetchErrorMessage(sourceArXiv, err))
			return s
		}
		s.Feed = s.Feed.SetPapers(papers)
		return s
	})

	if stale {
		d.discardStale(model.KindPaper, gen)
		return nil
	}
	if err != nil {
		d.deps.Logger.Error("論文一覧の取得に失敗しました",
			slog.String("client_id", d.scope),
			slog.String("keyword", q.Keyword),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// FetchVideos は現在の条件で動画一覧の1ページ目を取得して置き換える。
func (d *Dashboard) FetchVideos(ctx context.Context) error {
	return d.fetchVideos(ctx, false)
}

// LoadMoreVideos は次ページを取得して動画一覧の末尾に追加する。
// 次ページがない場合と動画一覧の取得中の場合は何もしない。
func (d *Dashboard) LoadMoreVideos(ctx context.Context) error {
	return d.fetchVideos(ctx, true)
}

func (d *Dashboard) fetchVideos(ctx context.Context, more bool) error {
	var gen uint64
	var q model.VideoQuery
	skip := false
	d.commit(ctx, func(s State) State {
		if more && (s.Feed.NextPageToken == nil || s.Feed.VideoStatus == feedcache.StatusLoading) {
			skip = true
			return s
		}
		s.VideoGeneration++
		gen = s.VideoGeneration
		q = model.VideoQuery{
			Keyword:    s.Keyword,
			Order:      s.VideoOrder,
			MaxResults: d.deps.pageSize(),
		}
		if more {
			q.PageToken = *s.Feed.NextPageToken
		} else {
			// 旧条件のトークンで次ページを取りに行かせない
			s.Feed = s.Feed.WithNextPageToken(nil, s.Feed.TotalResults)
		}
		s.Feed = s.Feed.MarkLoading(model.KindVideo)
		return s
	})
	if skip {
		return nil
	}

	page, err := d.deps.Videos.SearchVideos(ctx, q)
	if err == nil && page == nil {
		page = &model.VideoPage{}
	}

	stale := false
	d.commit(ctx, func(s State) State {
		if s.VideoGeneration != gen {
			stale = true
			return s
		}
		if err != nil {
			s.Feed = s.Feed.MarkFailed(model.KindVideo, fetchErrorMessage(sourceYouTube, err))
			return s
		}
		s.Feed = s.Feed.SetVideos(page.Videos, !more).WithNextPageToken(page.NextPageToken, page.TotalResults)
		return s
	})

	if stale {
		d.discardStale(model.KindVideo, gen)
		return nil
	}
	if err != nil {
		d.deps.Logger.Error("動画一覧の取得に失敗しました",
			slog.String("client_id", d.scope),
			slog.String("keyword", q.Keyword),
			slog.Bool("next_page", more),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func (d *Dashboard) discardStale(kind model.Kind, gen uint64) {
	d.deps.Metrics.RecordStaleResponse(string(kind))
	d.deps.Logger.Debug("古い取得結果を破棄しました",
		slog.String("client_id", d.scope),
		slog.String("type", string(kind)),
		slog.Uint64("generation", gen),
	)
}

// SetPaperSort は論文の並び順を変更して取得し直す。
func (d *Dashboard) SetPaperSort(ctx context.Context, sortBy model.PaperSort) error {
	d.commit(ctx, func(s State) State {
		s.PaperSort = sortBy
		return s
	})
	return d.FetchPapers(ctx)
}

// SetVideoOrder は動画の並び順を変更して1ページ目から取得し直す。
func (d *Dashboard) SetVideoOrder(ctx context.Context, order model.VideoOrder) error {
	d.commit(ctx, func(s State) State {
		s.VideoOrder = order
		return s
	})
	return d.FetchVideos(ctx)
}

// SetTab は表示タブを切り替える。
func (d *Dashboard) SetTab(ctx context.Context, tab view.Tab) State {
	return d.commit(ctx, func(s State) State {
		s.Tab = tab
		return s
	})
}

// SetSavedOnly は保存済みのみ表示するかを切り替える。
func (d *Dashboard) SetSavedOnly(ctx context.Context, savedOnly bool) State {
	return d.commit(ctx, func(s State) State {
		s.SavedOnly = savedOnly
		return s
	})
}

// ToggleBookmark はアイテムのブックマークを切り替え、切り替え後に登録済みかを返す。
// 対象はフィードキャッシュ、次にブックマークから探す。
func (d *Dashboard) ToggleBookmark(ctx context.Context, kind model.Kind, id string) (bool, error) {
	found := false
	bookmarked := false
	d.commit(ctx, func(s State) State {
		item, ok := s.lookup(kind, id)
		if !ok {
			return s
		}
		found = true
		s.Bookmarks = bookmark.Toggle(s.Bookmarks, item)
		s.BookmarkRev++
		bookmarked = bookmark.Contains(s.Bookmarks, id)
		return s
	})
	if !found {
		return false, ErrItemNotFound
	}

	action := "remove"
	if bookmarked {
		action = "add"
	}
	d.deps.Metrics.RecordBookmarkToggle(action)
	d.deps.Logger.Info("ブックマークを切り替えました",
		slog.String("client_id", d.scope),
		slog.String("item_id", id),
		slog.String("action", action),
	)
	return bookmarked, nil
}

// Bookmarks は現在のブックマーク集合を返す。
func (d *Dashboard) Bookmarks() []model.ContentItem {
	return d.Snapshot().Bookmarks
}

// DrainNotifications は未読の通知を取り出して空にする。
func (d *Dashboard) DrainNotifications(ctx context.Context) []Notification {
	var drained []Notification
	d.commit(ctx, func(s State) State {
		drained = s.Notifications
		s.Notifications = nil
		return s
	})
	if drained == nil {
		drained = []Notification{}
	}
	return drained
}

// fetchErrorMessage は取得失敗をUI向けのメッセージに変換する。
func fetchErrorMessage(source string, err error) string {
	if errors.Is(err, model.ErrUpstreamNotConfigured) {
		return model.NewUpstreamNotConfiguredError(source).Message
	}
	return model.NewUpstreamFailedError(source).Message
}
