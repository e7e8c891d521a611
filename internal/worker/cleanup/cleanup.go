// Package cleanup は使われなくなったダッシュボードの定期破棄ジョブを提供する。
// ダッシュボードはクライアントCookieごとにメモリ上に生成されるため、
// 一定時間アクセスのないものを破棄してメモリ使用量を抑える。
// ブックマークは永続化済みのため、次回アクセス時にストアから復元される。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// DefaultIdleTTL はダッシュボードを破棄するまでの未使用時間のデフォルト値。
const DefaultIdleTTL = 30 * time.Minute

// IdleEvictor は未使用のダッシュボードを破棄するインターフェース。
// dashboard.Registryが実装する。
type IdleEvictor interface {
	EvictIdle(ttl time.Duration) int
	Len() int
}

// CleanupJob は未使用ダッシュボードの破棄ジョブ。
type CleanupJob struct {
	registry IdleEvictor
	logger   *slog.Logger
	IdleTTL  time.Duration // 破棄までの未使用時間（デフォルト: 30分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(registry IdleEvictor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		registry: registry,
		logger:   logger,
		IdleTTL:  DefaultIdleTTL,
	}
}

// Run はIdleTTLより長く使われていないダッシュボードを破棄する。
// 要約処理中のダッシュボードは残る。冪等で、対象がなくてもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	evicted := j.registry.EvictIdle(j.IdleTTL)

	duration := time.Since(start)
	j.logger.Info("ダッシュボードのクリーンアップが完了しました",
		slog.Int("evicted_count", evicted),
		slog.Int("active_count", j.registry.Len()),
		slog.Duration("idle_ttl", j.IdleTTL),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// Start はinterval間隔でRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("ダッシュボードのクリーンアップを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("idle_ttl", j.IdleTTL),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("ダッシュボードのクリーンアップを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
