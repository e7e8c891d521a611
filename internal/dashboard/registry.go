package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/robodigest/internal/bookmark"
	"github.com/hitoshi/robodigest/internal/repository"
)

// Registry はクライアントスコープごとのDashboardを遅延生成して保持する。
// 一定時間使われていないDashboardはEvictIdleで破棄する。
// ブックマークは永続化済みのため、破棄後の再生成で復元される。
type Registry struct {
	store   repository.KVStore
	deps    Deps
	failRec bookmark.FailureRecorder

	mu         sync.RWMutex
	dashboards map[string]*Dashboard

	// 生成はスコープごとに1つだけ走らせる。移行中の読み込みと競合させない
	creating singleflight.Group
}

// NewRegistry は新しいRegistryを生成する。
// failRecはブックマーク永続化失敗の記録先で、nilでもよい。
func NewRegistry(store repository.KVStore, deps Deps, failRec bookmark.FailureRecorder) *Registry {
	return &Registry{
		store:      store,
		deps:       deps.withDefaults(),
		failRec:    failRec,
		dashboards: make(map[string]*Dashboard),
	}
}

// Get はスコープのDashboardを返す。存在しなければ旧形式ブックマークを移行して生成する。
func (r *Registry) Get(ctx context.Context, scope string) *Dashboard {
	r.mu.RLock()
	d, exists := r.dashboards[scope]
	r.mu.RUnlock()
	if exists {
		return d
	}

	v, _, _ := r.creating.Do(scope, func() (any, error) {
		return r.create(context.WithoutCancel(ctx), scope), nil
	})
	return v.(*Dashboard)
}

// create は旧形式ブックマークを移行してDashboardを生成し、登録する。
// 移行はI/Oを伴うためr.muの外で行う。同一スコープの生成はsingleflightで直列化されている。
func (r *Registry) create(ctx context.Context, scope string) *Dashboard {
	r.mu.RLock()
	d, exists := r.dashboards[scope]
	r.mu.RUnlock()
	if exists {
		return d
	}

	store := bookmark.NewStore(repository.NewScopedKV(r.store, scope), r.deps.Logger, r.failRec)
	bookmarks := store.Migrate(ctx)
	created := New(scope, bookmarks, store, r.deps)

	r.mu.Lock()
	r.dashboards[scope] = created
	r.deps.Metrics.SetActiveDashboards(len(r.dashboards))
	r.mu.Unlock()

	r.deps.Logger.Debug("ダッシュボードを生成しました",
		slog.String("client_id", scope),
		slog.Int("bookmarks", len(bookmarks)),
	)
	return created
}

// EvictIdle はttlより長く使われていないDashboardを破棄し、破棄した件数を返す。
// 要約処理中のDashboardは破棄しない。
func (r *Registry) EvictIdle(ttl time.Duration) int {
	threshold := r.deps.now().Add(-ttl).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for scope, d := range r.dashboards {
		if d.lastUsed.Load() >= threshold {
			continue
		}
		if d.summarizing() > 0 {
			continue
		}
		delete(r.dashboards, scope)
		evicted++
	}
	r.deps.Metrics.SetActiveDashboards(len(r.dashboards))
	return evicted
}

// Len は保持しているDashboardの数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dashboards)
}
