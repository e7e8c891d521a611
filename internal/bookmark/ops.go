package bookmark

import "github.com/hitoshi/robodigest/internal/model"

// Merge はidをキーに2つのブックマーク集合を統合する。
// 競合時はcurrent側のエントリが勝つ。並びはcurrentの順、続いてincomingの未登録分の順。
// current内部の重複は後勝ちで1件にまとめ、最初に現れた位置に置く。
func Merge(current, incoming []model.ContentItem) []model.ContentItem {
	merged := dedupe(current)
	seen := make(map[string]struct{}, len(merged)+len(incoming))
	for _, item := range merged {
		seen[item.ID()] = struct{}{}
	}

	for _, item := range dedupe(incoming) {
		if _, ok := seen[item.ID()]; ok {
			continue
		}
		seen[item.ID()] = struct{}{}
		merged = append(merged, item)
	}
	return merged
}

// Toggle はitemが登録済みなら取り除き、未登録なら末尾に追加した新しい集合を返す。
// 同じitemで2回呼ぶと元の集合に戻る。
func Toggle(store []model.ContentItem, item model.ContentItem) []model.ContentItem {
	id := item.ID()
	if Contains(store, id) {
		out := make([]model.ContentItem, 0, len(store)-1)
		for _, existing := range store {
			if existing.ID() != id {
				out = append(out, existing)
			}
		}
		return out
	}

	out := make([]model.ContentItem, 0, len(store)+1)
	out = append(out, store...)
	return append(out, item)
}

// ApplyEnrichment はidに一致するエントリの要約結果を差し替えた新しい集合を返す。
// 種別は保持する。一致するエントリがなければ元の集合とfalseを返す。
func ApplyEnrichment(store []model.ContentItem, id string, e *model.Enrichment) ([]model.ContentItem, bool) {
	idx := indexOf(store, id)
	if idx < 0 {
		return store, false
	}

	out := make([]model.ContentItem, len(store))
	copy(out, store)
	out[idx] = out[idx].WithEnrichment(e)
	return out, true
}

// Contains はidのブックマークが存在するかを返す。
func Contains(store []model.ContentItem, id string) bool {
	return indexOf(store, id) >= 0
}

// Find はidのブックマークを返す。
func Find(store []model.ContentItem, id string) (model.ContentItem, bool) {
	idx := indexOf(store, id)
	if idx < 0 {
		return model.ContentItem{}, false
	}
	return store[idx], true
}

func indexOf(store []model.ContentItem, id string) int {
	for i, item := range store {
		if item.ID() == id {
			return i
		}
	}
	return -1
}

func dedupe(items []model.ContentItem) []model.ContentItem {
	pos := make(map[string]int, len(items))
	out := make([]model.ContentItem, 0, len(items))
	for _, item := range items {
		if i, ok := pos[item.ID()]; ok {
			out[i] = item
			continue
		}
		pos[item.ID()] = len(out)
		out = append(out, item)
	}
	return out
}
