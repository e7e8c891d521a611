// Package view は表示タブ・保存済みフィルタ・キャッシュ・ブックマークから
// 表示するアイテム列を選ぶ純粋関数を提供する。
package view

import (
	"fmt"

	"github.com/hitoshi/robodigest/internal/bookmark"
	"github.com/hitoshi/robodigest/internal/enrichment"
	"github.com/hitoshi/robodigest/internal/feedcache"
	"github.com/hitoshi/robodigest/internal/model"
)

// Tab は表示中のタブ。
type Tab string

const (
	TabPapers  Tab = "papers"
	TabYouTube Tab = "youtube"
)

// ParseTab は文字列をTabに変換する。
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabPapers:
		return TabPapers, nil
	case TabYouTube:
		return TabYouTube, nil
	default:
		return "", fmt.Errorf("unknown tab: %q", s)
	}
}

// DisplayItem は表示用のアイテム。
type DisplayItem struct {
	Item        model.ContentItem
	Bookmarked  bool
	Summarizing bool
}

// Result はSelectの結果。
type Result struct {
	Items   []DisplayItem
	HasMore bool             // 動画タブで次ページがあるか
	Status  feedcache.Status // 保存済み表示ではready
	Error   string
}

// Select は表示するアイテム列を返す。
//   - savedOnlyならブックマークを登録順のまま（種別混在で）返す
//   - papersタブなら論文一覧をサーバーの並びのまま返す
//   - youtubeタブなら動画一覧をサーバーの並びのまま返し、HasMoreを設定する
func Select(tab Tab, savedOnly bool, cache feedcache.Cache, bookmarks []model.ContentItem) Result {
	if savedOnly {
		items := make([]DisplayItem, 0, len(bookmarks))
		for _, b := range bookmarks {
			items = append(items, DisplayItem{Item: b, Bookmarked: true})
		}
		return Result{Items: items, Status: feedcache.StatusReady}
	}

	switch tab {
	case TabYouTube:
		items := make([]DisplayItem, 0, len(cache.Videos))
		for _, v := range cache.Videos {
			items = append(items, DisplayItem{
				Item:       model.NewVideoItem(v),
				Bookmarked: IsBookmarked(bookmarks, v.ID),
			})
		}
		status, msg := cache.Status(model.KindVideo)
		return Result{Items: items, HasMore: cache.HasMore(), Status: status, Error: msg}
	default:
		items := make([]DisplayItem, 0, len(cache.Papers))
		for _, p := range cache.Papers {
			items = append(items, DisplayItem{
				Item:       model.NewPaperItem(p),
				Bookmarked: IsBookmarked(bookmarks, p.ID),
			})
		}
		status, msg := cache.Status(model.KindPaper)
		return Result{Items: items, Status: status, Error: msg}
	}
}

// WithActivity は要約処理中のアイテムにSummarizingを設定したコピーを返す。
func (r Result) WithActivity(tracker enrichment.Tracker) Result {
	if tracker.Len() == 0 {
		return r
	}
	items := make([]DisplayItem, len(r.Items))
	for i, item := range r.Items {
		item.Summarizing = tracker.IsActive(item.Item.ID())
		items[i] = item
	}
	r.Items = items
	return r
}

// IsBookmarked はidがブックマーク済みかを返す。
func IsBookmarked(bookmarks []model.ContentItem, id string) bool {
	return bookmark.Contains(bookmarks, id)
}
