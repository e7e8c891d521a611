package bookmark

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/repository"
)

// --- テスト用モック ---

// failingKV はSetが常に失敗するKV。
type failingKV struct {
	*repository.ScopedKV
	setErr error
}

func (f *failingKV) Set(_ context.Context, _, _ string) error {
	return f.setErr
}

// countingRecorder は永続化失敗の記録回数を数える。
type countingRecorder struct {
	ops []string
}

func (r *countingRecorder) RecordPersistenceFailure(op string) {
	r.ops = append(r.ops, op)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() (*Store, *repository.ScopedKV) {
	kv := repository.NewScopedKV(repository.NewMemoryKVStore(), "client-1")
	return NewStore(kv, discardLogger(), nil), kv
}

func paper(id, title string) model.ContentItem {
	return model.NewPaperItem(model.Paper{ID: id, Title: title, Link: id})
}

func video(id, title string) model.ContentItem {
	return model.NewVideoItem(model.Video{ID: id, Title: title, Link: "https://www.youtube.com/watch?v=" + id})
}

func ids(items []model.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID())
	}
	return out
}

// --- Toggle ---

// TestToggle_AddThenRemove は追加と削除が対称であることを検証する。
func TestToggle_AddThenRemove(t *testing.T) {
	p1 := paper("p1", "A")

	store := Toggle(nil, p1)
	if len(store) != 1 || store[0].Kind != model.KindPaper || store[0].ID() != "p1" {
		t.Fatalf("1回目の Toggle 後 = %v, want [p1(paper)]", ids(store))
	}

	store = Toggle(store, p1)
	if len(store) != 0 {
		t.Errorf("2回目の Toggle 後 = %v, want []", ids(store))
	}
}

// TestToggle_IsInvolution は任意の集合で2回のToggleが元に戻ることを検証する。
func TestToggle_IsInvolution(t *testing.T) {
	base := []model.ContentItem{paper("p1", "A"), video("v1", "B"), paper("p2", "C")}

	for _, x := range []model.ContentItem{paper("p1", "A"), video("v1", "B"), video("v9", "new")} {
		got := Toggle(Toggle(base, x), x)
		if x.ID() == "v9" {
			if diff := cmp.Diff(ids(base), ids(got)); diff != "" {
				t.Errorf("Toggle(Toggle(store, %s)) mismatch (-want +got):\n%s", x.ID(), diff)
			}
			continue
		}
		// 既存要素を外して戻すと末尾に移る。集合としては等しい
		if len(got) != len(base) || !Contains(got, x.ID()) {
			t.Errorf("Toggle(Toggle(store, %s)) = %v", x.ID(), ids(got))
		}
	}
}

// TestToggle_NeverDuplicates は任意のトグル列で同一idが重複しないことを検証する。
func TestToggle_NeverDuplicates(t *testing.T) {
	pool := []model.ContentItem{paper("p1", "A"), video("v1", "B"), paper("p2", "C")}
	var store []model.ContentItem

	for i := 0; i < 50; i++ {
		store = Toggle(store, pool[(i*7+i/3)%len(pool)])

		seen := make(map[string]bool)
		for _, item := range store {
			if seen[item.ID()] {
				t.Fatalf("ステップ %d で id %q が重複した: %v", i, item.ID(), ids(store))
			}
			seen[item.ID()] = true
		}
	}
}

// TestToggle_DoesNotMutateInput は入力スライスを変更しないことを検証する。
func TestToggle_DoesNotMutateInput(t *testing.T) {
	store := []model.ContentItem{paper("p1", "A"), paper("p2", "B")}
	_ = Toggle(store, paper("p1", "A"))

	if diff := cmp.Diff([]string{"p1", "p2"}, ids(store)); diff != "" {
		t.Errorf("入力が変更された (-want +got):\n%s", diff)
	}
}

// --- Merge ---

// TestMerge_CurrentWinsOnConflict は競合時に現行エントリが残ることを検証する。
func TestMerge_CurrentWinsOnConflict(t *testing.T) {
	current := []model.ContentItem{
		paper("p1", "A").WithEnrichment(&model.Enrichment{TitleJA: "newer"}),
	}
	legacy := []model.ContentItem{paper("p1", "A"), paper("p2", "B")}

	got := Merge(current, legacy)

	if diff := cmp.Diff([]string{"p1", "p2"}, ids(got)); diff != "" {
		t.Fatalf("Merge の順序 mismatch (-want +got):\n%s", diff)
	}
	if e := got[0].Enrichment(); e == nil || e.TitleJA != "newer" {
		t.Errorf("p1 の要約 = %+v, want title_ja=newer", e)
	}
}

// TestMerge_DedupesWithinCurrent は現行集合内の重複を後勝ちでまとめることを検証する。
func TestMerge_DedupesWithinCurrent(t *testing.T) {
	current := []model.ContentItem{paper("p1", "old"), video("v1", "B"), paper("p1", "new")}

	got := Merge(current, nil)

	if diff := cmp.Diff([]string{"p1", "v1"}, ids(got)); diff != "" {
		t.Fatalf("Merge mismatch (-want +got):\n%s", diff)
	}
	if got[0].Title() != "new" {
		t.Errorf("p1 の title = %q, want new", got[0].Title())
	}
}

// --- ApplyEnrichment ---

// TestApplyEnrichment_PreservesKind は種別を保持したまま要約を反映することを検証する。
func TestApplyEnrichment_PreservesKind(t *testing.T) {
	store := []model.ContentItem{paper("p1", "A"), video("v1", "B")}
	e := &model.Enrichment{TitleJA: "動画", Points: []string{"a", "b", "c"}, Category: "ROS"}

	got, ok := ApplyEnrichment(store, "v1", e)
	if !ok {
		t.Fatal("ApplyEnrichment は一致するエントリに対して true を返すべき")
	}
	if got[1].Kind != model.KindVideo {
		t.Errorf("Kind = %q, want video", got[1].Kind)
	}
	if diff := cmp.Diff(e, got[1].Enrichment()); diff != "" {
		t.Errorf("Enrichment mismatch (-want +got):\n%s", diff)
	}
	if store[1].Enrichment() != nil {
		t.Error("元の集合が変更されてはならない")
	}
}

// TestApplyEnrichment_AbsentIsNoop は未登録idで何も変わらないことを検証する。
func TestApplyEnrichment_AbsentIsNoop(t *testing.T) {
	store := []model.ContentItem{paper("p1", "A")}

	got, ok := ApplyEnrichment(store, "zzz", &model.Enrichment{TitleJA: "x"})
	if ok {
		t.Error("未登録idでは false を返すべき")
	}
	if got[0].Enrichment() != nil {
		t.Error("他のエントリが変更されてはならない")
	}
}

// --- Store ---

// TestStore_SaveAndLoad は保存した内容が種別付きで読み戻せることを検証する。
func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	items := []model.ContentItem{
		paper("p1", "A"),
		video("v1", "B").WithEnrichment(&model.Enrichment{TitleJA: "X", Points: []string{"a", "b", "c"}, Category: "SLAM"}),
	}
	if err := s.Save(ctx, items); err != nil {
		t.Fatalf("Save がエラーを返した: %v", err)
	}

	got := s.Load(ctx)
	if diff := cmp.Diff(items, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

// TestStore_Load_AbsentReturnsEmpty は未保存時に空を返すことを検証する。
func TestStore_Load_AbsentReturnsEmpty(t *testing.T) {
	s, _ := newTestStore()

	got := s.Load(context.Background())
	if got == nil || len(got) != 0 {
		t.Errorf("Load = %v, want 空スライス", got)
	}
}

// TestStore_Load_MalformedClearsKey は不正な内容を破棄してキーを削除することを検証する。
func TestStore_Load_MalformedClearsKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"文字列の配列", `["a","b"]`},
		{"配列でない", `{"id":"p1"}`},
		{"JSONでない", `not json`},
		{"id欠落", `[{"type":"paper","title":"A"}]`},
		{"未知のtype", `[{"type":"podcast","id":"x"}]`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, kv := newTestStore()
			if err := kv.Set(ctx, StoreKey, tt.raw); err != nil {
				t.Fatalf("Set がエラーを返した: %v", err)
			}

			got := s.Load(ctx)
			if len(got) != 0 {
				t.Errorf("Load = %v, want []", ids(got))
			}
			if _, ok, _ := kv.Get(ctx, StoreKey); ok {
				t.Error("不正なキーは削除されるべき")
			}
		})
	}
}

// TestStore_LoadLegacy_TagsPaperAndClearsKey は旧形式に paper 判別子を付与しキーを削除することを検証する。
func TestStore_LoadLegacy_TagsPaperAndClearsKey(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()
	_ = kv.Set(ctx, LegacyKey, `[{"id":"p1","title":"A","summary":"s","published":"2024-01-01T00:00:00Z","link":"p1"}]`)

	got := s.LoadLegacy(ctx)
	if len(got) != 1 || got[0].Kind != model.KindPaper || got[0].ID() != "p1" {
		t.Fatalf("LoadLegacy = %v, want [p1(paper)]", ids(got))
	}
	if _, ok, _ := kv.Get(ctx, LegacyKey); ok {
		t.Error("読み込み後は旧形式キーが削除されるべき")
	}
	if again := s.LoadLegacy(ctx); len(again) != 0 {
		t.Errorf("2回目の LoadLegacy = %v, want []", ids(again))
	}
}

// TestStore_Migrate_CurrentWins は移行時に現行エントリが勝つことを検証する。
func TestStore_Migrate_CurrentWins(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()
	_ = kv.Set(ctx, LegacyKey, `[{"id":"p1","title":"A"},{"id":"p2","title":"B"}]`)
	_ = kv.Set(ctx, StoreKey, `[{"type":"paper","id":"p1","title":"A","title_ja":"newer","points":["a"],"category":"SLAM"}]`)

	got := s.Migrate(ctx)

	if diff := cmp.Diff([]string{"p1", "p2"}, ids(got)); diff != "" {
		t.Fatalf("Migrate mismatch (-want +got):\n%s", diff)
	}
	if e := got[0].Enrichment(); e == nil || e.TitleJA != "newer" {
		t.Errorf("p1 の要約 = %+v, want title_ja=newer", e)
	}
	if diff := cmp.Diff(got, s.Load(ctx)); diff != "" {
		t.Errorf("移行結果が保存されていない (-want +got):\n%s", diff)
	}
}

// TestStore_Migrate_IsIdempotent は2回の移行が1回と同じ結果になることを検証する。
func TestStore_Migrate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestStore()
	_ = kv.Set(ctx, LegacyKey, `[{"id":"p1","title":"A"}]`)

	first := s.Migrate(ctx)
	if _, ok, _ := kv.Get(ctx, LegacyKey); ok {
		t.Fatal("1回目の移行後に旧形式キーが残っている")
	}
	second := s.Migrate(ctx)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("2回目の移行で結果が変わった (-first +second):\n%s", diff)
	}
}

// TestStore_Save_FailureIsReported は保存失敗がエラーとメトリクスで報告されることを検証する。
func TestStore_Save_FailureIsReported(t *testing.T) {
	scoped := repository.NewScopedKV(repository.NewMemoryKVStore(), "client-1")
	rec := &countingRecorder{}
	wantErr := errors.New("disk full")
	s := NewStore(&failingKV{ScopedKV: scoped, setErr: wantErr}, discardLogger(), rec)

	err := s.Save(context.Background(), []model.ContentItem{paper("p1", "A")})
	if !errors.Is(err, wantErr) {
		t.Errorf("Save エラー = %v, want %v をラップ", err, wantErr)
	}
	if diff := cmp.Diff([]string{"save"}, rec.ops); diff != "" {
		t.Errorf("記録された操作 mismatch (-want +got):\n%s", diff)
	}
}
