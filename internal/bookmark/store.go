// Package bookmark はブックマーク（お気に入り）の永続化と純粋な変換操作を提供する。
//
// ブックマーク集合は[]model.ContentItemの不変スナップショットとして扱い、
// Toggle・ApplyEnrichment・Mergeは常に新しいスライスを返す。
// 永続化はスコープ付きKVストアへの書き込みスルーで行う。
package bookmark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/robodigest/internal/model"
)

const (
	// StoreKey は現行形式（type判別子付き）のブックマークを保存するキー。
	StoreKey = "robodigest:bookmarks"
	// LegacyKey は旧形式（論文のみ、type判別子なし）のブックマークを保存していたキー。
	LegacyKey = "robodigest:bookmarks:legacy"
)

// KV はスコープに束縛されたキー・バリューストアのインターフェース。
// repository.ScopedKVが実装する。
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// FailureRecorder は永続化失敗を記録するインターフェース。
type FailureRecorder interface {
	RecordPersistenceFailure(op string)
}

// Store はブックマークの読み込み・保存・旧形式からの移行を行う。
type Store struct {
	kv       KV
	logger   *slog.Logger
	recorder FailureRecorder
}

// NewStore はStoreを生成する。
func NewStore(kv KV, logger *slog.Logger, recorder FailureRecorder) *Store {
	return &Store{
		kv:       kv,
		logger:   logger,
		recorder: recorder,
	}
}

// Load は現行形式のブックマークを読み込む。
// 未保存の場合は空を返す。配列でない、idを持たない要素がある、
// typeが不正な要素がある場合は空を返し、キーを削除する。
func (s *Store) Load(ctx context.Context) []model.ContentItem {
	raw, ok := s.read(ctx, StoreKey)
	if !ok {
		return []model.ContentItem{}
	}

	items, err := decodeCurrent(raw)
	if err != nil {
		s.discard(ctx, StoreKey, err)
		return []model.ContentItem{}
	}
	return items
}

// LoadLegacy は旧形式のブックマークを読み込み、すべてにpaper判別子を付与する。
// 読み込み後はキーを削除するため、2回目以降は常に空を返す。
func (s *Store) LoadLegacy(ctx context.Context) []model.ContentItem {
	raw, ok := s.read(ctx, LegacyKey)
	if !ok {
		return []model.ContentItem{}
	}

	items, err := decodeLegacy(raw)
	if err != nil {
		s.discard(ctx, LegacyKey, err)
		return []model.ContentItem{}
	}

	if err := s.kv.Remove(ctx, LegacyKey); err != nil {
		s.logger.Error("旧形式ブックマークキーの削除に失敗しました",
			slog.String("key", LegacyKey),
			slog.String("error", err.Error()),
		)
		s.recordFailure("remove_legacy")
	}
	return items
}

// Migrate は旧形式のブックマークを現行形式に統合して返す。
// 競合時は現行形式のエントリを優先する。移行対象があった場合のみ保存する。
// 何度実行しても結果は同じになる。
func (s *Store) Migrate(ctx context.Context) []model.ContentItem {
	current := s.Load(ctx)
	legacy := s.LoadLegacy(ctx)
	if len(legacy) == 0 {
		return Merge(current, nil)
	}

	merged := Merge(current, legacy)
	s.logger.Info("旧形式のブックマークを移行しました",
		slog.Int("legacy_count", len(legacy)),
		slog.Int("total_count", len(merged)),
	)
	_ = s.Save(ctx, merged)
	return merged
}

// Save はブックマーク全体を上書き保存する。
// 失敗はログとメトリクスに記録して返すのみで、再試行はしない。
// 呼び出し元はエラーを操作の失敗として扱ってはならない。
func (s *Store) Save(ctx context.Context, items []model.ContentItem) error {
	if items == nil {
		items = []model.ContentItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		s.logger.Error("ブックマークのシリアライズに失敗しました",
			slog.String("error", err.Error()),
		)
		s.recordFailure("encode")
		return fmt.Errorf("ブックマークのシリアライズに失敗: %w", err)
	}

	if err := s.kv.Set(ctx, StoreKey, string(data)); err != nil {
		s.logger.Error("ブックマークの保存に失敗しました",
			slog.String("key", StoreKey),
			slog.Int("count", len(items)),
			slog.String("error", err.Error()),
		)
		s.recordFailure("save")
		return fmt.Errorf("ブックマークの保存に失敗: %w", err)
	}
	return nil
}

// read はキーを読み込む。未保存または読み込み失敗の場合はfalseを返す。
func (s *Store) read(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Error("ブックマークの読み込みに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		s.recordFailure("load")
		return "", false
	}
	return raw, ok
}

// discard は不正な内容のキーを削除する。エラーとしては伝播しない。
func (s *Store) discard(ctx context.Context, key string, cause error) {
	s.logger.Warn("不正な形式のブックマークを破棄します",
		slog.String("key", key),
		slog.String("reason", cause.Error()),
	)
	if err := s.kv.Remove(ctx, key); err != nil {
		s.logger.Error("不正なブックマークキーの削除に失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		s.recordFailure("remove")
	}
}

func (s *Store) recordFailure(op string) {
	if s.recorder != nil {
		s.recorder.RecordPersistenceFailure(op)
	}
}

// decodeCurrent は現行形式のJSON配列を検証しつつ復元する。
func decodeCurrent(raw string) ([]model.ContentItem, error) {
	elems, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}

	items := make([]model.ContentItem, 0, len(elems))
	for i, elem := range elems {
		var item model.ContentItem
		if err := json.Unmarshal(elem, &item); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if item.ID() == "" {
			return nil, fmt.Errorf("element %d: missing id", i)
		}
		items = append(items, item)
	}
	return items, nil
}

// decodeLegacy は旧形式（Paperの配列）を検証しつつ復元し、paper判別子を付与する。
func decodeLegacy(raw string) ([]model.ContentItem, error) {
	elems, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}

	items := make([]model.ContentItem, 0, len(elems))
	for i, elem := range elems {
		var p model.Paper
		if err := json.Unmarshal(elem, &p); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("element %d: missing id", i)
		}
		items = append(items, model.NewPaperItem(p))
	}
	return items, nil
}

// decodeArray はJSON配列であることを検証し、要素を返す。
// 要素はすべてJSONオブジェクトでなければならない。
func decodeArray(raw string) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("not a JSON array: %w", err)
	}
	if elems == nil {
		return nil, fmt.Errorf("not a JSON array: null")
	}
	for i, elem := range elems {
		if len(elem) == 0 || elem[0] != '{' {
			return nil, fmt.Errorf("element %d: not an object", i)
		}
	}
	return elems, nil
}
