// Package feedcache はセッション中のみ保持する論文・動画一覧のキャッシュを提供する。
//
// Cacheは不変値で、すべての操作は新しいCacheを返す。永続化はしない。
package feedcache

import "github.com/hitoshi/robodigest/internal/model"

// Status は一覧ごとの取得状態。
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Cache は論文一覧と動画一覧の不変スナップショット。
type Cache struct {
	Papers        []model.Paper
	Videos        []model.Video
	NextPageToken *string // nilなら次ページなし
	TotalResults  int

	PaperStatus Status
	VideoStatus Status
	PaperError  string
	VideoError  string
}

// New は空のCacheを返す。
func New() Cache {
	return Cache{
		Papers:      []model.Paper{},
		Videos:      []model.Video{},
		PaperStatus: StatusIdle,
		VideoStatus: StatusIdle,
	}
}

// SetPapers は論文一覧を置き換える。同一idは後勝ちで1件にまとめる。
func (c Cache) SetPapers(items []model.Paper) Cache {
	c.Papers = dedupe(items, func(p model.Paper) string { return p.ID })
	c.PaperStatus = readyOrEmpty(len(c.Papers))
	c.PaperError = ""
	return c
}

// SetVideos は動画一覧を置き換える、またはreplaceがfalseなら末尾に追加する。
// 追加時はページ間の重複を取り除かない。ページトークンを信頼する。
func (c Cache) SetVideos(items []model.Video, replace bool) Cache {
	batch := dedupe(items, func(v model.Video) string { return v.ID })
	if replace {
		c.Videos = batch
	} else {
		videos := make([]model.Video, 0, len(c.Videos)+len(batch))
		videos = append(videos, c.Videos...)
		c.Videos = append(videos, batch...)
	}
	c.VideoStatus = readyOrEmpty(len(c.Videos))
	c.VideoError = ""
	return c
}

// WithNextPageToken は次ページトークンと総件数を設定する。
func (c Cache) WithNextPageToken(token *string, total int) Cache {
	if token != nil && *token == "" {
		token = nil
	}
	c.NextPageToken = token
	c.TotalResults = total
	return c
}

// HasMore は動画一覧に次ページがあるかを返す。
func (c Cache) HasMore() bool {
	return c.NextPageToken != nil
}

// MarkLoading は取得開始を記録する。既存の一覧はそのまま残す。
func (c Cache) MarkLoading(kind model.Kind) Cache {
	switch kind {
	case model.KindPaper:
		c.PaperStatus = StatusLoading
	case model.KindVideo:
		c.VideoStatus = StatusLoading
	}
	return c
}

// MarkFailed は取得失敗を記録する。既存の一覧は変更しない。
func (c Cache) MarkFailed(kind model.Kind, message string) Cache {
	switch kind {
	case model.KindPaper:
		c.PaperStatus = StatusError
		c.PaperError = message
	case model.KindVideo:
		c.VideoStatus = StatusError
		c.VideoError = message
	}
	return c
}

// UpdateItem は指定一覧でidに一致するエントリの要約結果を差し替える。
// 一致がなければ元のCacheとfalseを返す。
func (c Cache) UpdateItem(kind model.Kind, id string, e *model.Enrichment) (Cache, bool) {
	switch kind {
	case model.KindPaper:
		papers, ok := update(c.Papers, id, func(p model.Paper) string { return p.ID }, func(p model.Paper) model.Paper {
			p.Enrichment = e
			return p
		})
		if !ok {
			return c, false
		}
		c.Papers = papers
		return c, true
	case model.KindVideo:
		videos, ok := update(c.Videos, id, func(v model.Video) string { return v.ID }, func(v model.Video) model.Video {
			v.Enrichment = e
			return v
		})
		if !ok {
			return c, false
		}
		c.Videos = videos
		return c, true
	default:
		return c, false
	}
}

// Find は指定一覧からidに一致するエントリを判別子付きで返す。
func (c Cache) Find(kind model.Kind, id string) (model.ContentItem, bool) {
	switch kind {
	case model.KindPaper:
		for _, p := range c.Papers {
			if p.ID == id {
				return model.NewPaperItem(p), true
			}
		}
	case model.KindVideo:
		for _, v := range c.Videos {
			if v.ID == id {
				return model.NewVideoItem(v), true
			}
		}
	}
	return model.ContentItem{}, false
}

// Status は指定一覧の取得状態とエラーメッセージを返す。
func (c Cache) Status(kind model.Kind) (Status, string) {
	switch kind {
	case model.KindPaper:
		return c.PaperStatus, c.PaperError
	case model.KindVideo:
		return c.VideoStatus, c.VideoError
	default:
		return StatusIdle, ""
	}
}

func readyOrEmpty(n int) Status {
	if n == 0 {
		return StatusEmpty
	}
	return StatusReady
}

// dedupe はキーが重複する要素を後勝ちでまとめ、最初に現れた位置に置く。
func dedupe[T any](items []T, key func(T) string) []T {
	pos := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := pos[k]; ok {
			out[i] = item
			continue
		}
		pos[k] = len(out)
		out = append(out, item)
	}
	return out
}

// update はキーが一致するすべての要素にfnを適用したコピーを返す。
// ページ追加で同じ動画が複数回現れる場合もすべて更新する。
func update[T any](items []T, id string, key func(T) string, fn func(T) T) ([]T, bool) {
	var out []T
	for i, item := range items {
		if key(item) != id {
			continue
		}
		if out == nil {
			out = make([]T, len(items))
			copy(out, items)
		}
		out[i] = fn(item)
	}
	if out == nil {
		return items, false
	}
	return out, true
}
