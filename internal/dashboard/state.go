package dashboard

import (
	"time"

	"github.com/hitoshi/robodigest/internal/bookmark"
	"github.com/hitoshi/robodigest/internal/enrichment"
	"github.com/hitoshi/robodigest/internal/feedcache"
	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/view"
)

const (
	defaultVideoPageSize = 10
	maxNotifications     = 20
)

// Notification は要約失敗などのユーザー向け一時通知。
type Notification struct {
	ItemID  string    `json:"item_id"`
	Kind    string    `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// State はクライアントスコープ1つ分の不変な状態スナップショット。
// 変更はDashboard.commitを通した純粋な変換でのみ行う。
type State struct {
	Tab        view.Tab
	SavedOnly  bool
	Keyword    string
	PaperSort  model.PaperSort
	VideoOrder model.VideoOrder

	Feed          feedcache.Cache
	Bookmarks     []model.ContentItem
	BookmarkRev   uint64 // ブックマーク変更ごとに増える。増えたコミットで保存する
	Tracker       enrichment.Tracker
	Notifications []Notification

	// 取得開始ごとに増える世代番号。古い世代のレスポンスは捨てる
	PaperGeneration uint64
	VideoGeneration uint64
}

func newState(bookmarks []model.ContentItem) State {
	return State{
		Tab:        view.TabPapers,
		PaperSort:  model.PaperSortSubmittedDate,
		VideoOrder: model.VideoOrderDate,
		Feed:       feedcache.New(),
		Bookmarks:  bookmarks,
		Tracker:    enrichment.New(),
	}
}

// lookup はフィードキャッシュ、次にブックマークからアイテムを探す。
func (s State) lookup(kind model.Kind, id string) (model.ContentItem, bool) {
	if item, ok := s.Feed.Find(kind, id); ok {
		return item, true
	}
	if item, ok := bookmark.Find(s.Bookmarks, id); ok && item.Kind == kind {
		return item, true
	}
	return model.ContentItem{}, false
}

func (s State) notify(n Notification) State {
	notes := make([]Notification, 0, len(s.Notifications)+1)
	notes = append(notes, s.Notifications...)
	notes = append(notes, n)
	if len(notes) > maxNotifications {
		notes = notes[len(notes)-maxNotifications:]
	}
	s.Notifications = notes
	return s
}

// View は現在の状態から表示結果を選ぶ。
func (s State) View() view.Result {
	return view.Select(s.Tab, s.SavedOnly, s.Feed, s.Bookmarks).WithActivity(s.Tracker)
}
