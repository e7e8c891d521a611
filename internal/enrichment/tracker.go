// Package enrichment は要約処理中のアイテムIDを追跡する。
package enrichment

import "sort"

// Tracker は要約処理中のIDの不変集合。
// 同一IDの要約は同時に1件までしか受け付けない。
// タイムアウトはなく、Endを呼ばない限りIDは残り続ける。
type Tracker struct {
	active map[string]struct{}
}

// New は空のTrackerを返す。
func New() Tracker {
	return Tracker{}
}

// Begin はidの受付を試みる。既に処理中ならfalseを返し、集合は変わらない。
// 呼び出し元はfalseの場合に要約リクエストを中止しなければならない。
func (t Tracker) Begin(id string) (Tracker, bool) {
	if t.IsActive(id) {
		return t, false
	}

	next := make(map[string]struct{}, len(t.active)+1)
	for k := range t.active {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	return Tracker{active: next}, true
}

// End はidを取り除く。未登録でも何もしない。
func (t Tracker) End(id string) Tracker {
	if !t.IsActive(id) {
		return t
	}

	next := make(map[string]struct{}, len(t.active))
	for k := range t.active {
		if k != id {
			next[k] = struct{}{}
		}
	}
	return Tracker{active: next}
}

// IsActive はidが処理中かを返す。
func (t Tracker) IsActive(id string) bool {
	_, ok := t.active[id]
	return ok
}

// Active は処理中のIDを昇順で返す。
func (t Tracker) Active() []string {
	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len は処理中の件数を返す。
func (t Tracker) Len() int {
	return len(t.active)
}
