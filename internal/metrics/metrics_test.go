package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("%s%v metric not found", name, labels)
	return nil
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCollector_ImplementsInterfaces はCollectorとNoopがMetricsCollectorを満たすことを検証する。
func TestCollector_ImplementsInterfaces(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Noop{}
}

// TestRecordUpstream_CountsByLabels は取得元・結果ごとに集計されることを検証する。
func TestRecordUpstream_CountsByLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstream("arxiv", OutcomeSuccess, 120*time.Millisecond)
	c.RecordUpstream("arxiv", OutcomeSuccess, 80*time.Millisecond)
	c.RecordUpstream("youtube", OutcomeNotConfigured, 0)

	ok := findMetric(t, reg, "robodigest_upstream_requests_total", map[string]string{"source": "arxiv", "outcome": "success"})
	if v := ok.GetCounter().GetValue(); v != 2 {
		t.Errorf("arxiv/success = %v, want 2", v)
	}
	nc := findMetric(t, reg, "robodigest_upstream_requests_total", map[string]string{"source": "youtube", "outcome": "not_configured"})
	if v := nc.GetCounter().GetValue(); v != 1 {
		t.Errorf("youtube/not_configured = %v, want 1", v)
	}

	latency := findMetric(t, reg, "robodigest_upstream_latency_seconds", map[string]string{"source": "arxiv"})
	if n := latency.GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("latency sample count = %d, want 2", n)
	}
}

// TestRecordSummary_CountsByOutcome は要約結果ごとに集計されることを検証する。
func TestRecordSummary_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSummary("success")
	c.RecordSummary("busy")
	c.RecordSummary("busy")

	busy := findMetric(t, reg, "robodigest_summaries_total", map[string]string{"outcome": "busy"})
	if v := busy.GetCounter().GetValue(); v != 2 {
		t.Errorf("summaries busy = %v, want 2", v)
	}
}

// TestRecordBookmarkToggleAndPersistence はブックマーク関連のカウンタを検証する。
func TestRecordBookmarkToggleAndPersistence(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBookmarkToggle("add")
	c.RecordPersistenceFailure("save")
	c.RecordStaleResponse("video")

	if v := findMetric(t, reg, "robodigest_bookmark_toggles_total", map[string]string{"action": "add"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("bookmark toggles add = %v, want 1", v)
	}
	if v := findMetric(t, reg, "robodigest_persistence_failures_total", map[string]string{"op": "save"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("persistence failures save = %v, want 1", v)
	}
	if v := findMetric(t, reg, "robodigest_stale_responses_total", map[string]string{"type": "video"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("stale responses video = %v, want 1", v)
	}
}

// TestSetActiveDashboards_SetsGauge はゲージが最後の値になることを検証する。
func TestSetActiveDashboards_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetActiveDashboards(5)
	c.SetActiveDashboards(3)

	if v := findMetric(t, reg, "robodigest_active_dashboards", nil).GetGauge().GetValue(); v != 3 {
		t.Errorf("active dashboards = %v, want 3", v)
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの二重登録でパニックすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}
