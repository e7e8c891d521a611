package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/robodigest/internal/model"
)

type recordedUpstream struct {
	outcomes []string
}

func (r *recordedUpstream) RecordUpstream(source, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, source+"/"+outcome)
}

// geminiReply はモデル出力テキストをgenerateContentのレスポンス形式で包む。
func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	})
	return string(b)
}

func newTestClient(server *httptest.Server, rec *recordedUpstream, key string) *Client {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClient(server.Client(), logger, rec, Config{APIKey: key, BaseURL: server.URL})
}

// generateRequest はテストで受け取るgenerateContentのリクエスト本文。
type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

// TestClient_Summarize_Success はリクエスト形式とレスポンスの変換を検証する。
func TestClient_Summarize_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geminiReply(`{"title_ja":"倉庫ロボの<b>群制御</b>","points":["課題","手法","結果","余分"],"category":"Multi-Robot"}`)))
	}))
	defer server.Close()

	rec := &recordedUpstream{}
	c := newTestClient(server, rec, "gem-key")

	got, err := c.Summarize(context.Background(), model.SummaryRequest{
		Title: "Fleet Planning",
		Body:  "We study warehouses.",
		Kind:  model.KindPaper,
	})
	if err != nil {
		t.Fatalf("Summarize がエラーを返した: %v", err)
	}

	want := &model.Enrichment{
		TitleJA:  "倉庫ロボの群制御",
		Points:   []string{"課題", "手法", "結果", "余分"},
		Category: "Multi-Robot",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("要約 mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(gotPath, "/v1beta/models/gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "gem-key" {
		t.Errorf("x-goog-api-key = %q, want gem-key", gotKey)
	}
	if gotBody.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType = %q", gotBody.GenerationConfig.ResponseMimeType)
	}
	if len(gotBody.Contents) != 1 || !strings.Contains(gotBody.Contents[0].Parts[0].Text, "Paper Title: Fleet Planning") {
		t.Errorf("プロンプトに論文タイトルが含まれていない: %+v", gotBody.Contents)
	}
	if diff := cmp.Diff([]string{"gemini/success"}, rec.outcomes); diff != "" {
		t.Errorf("メトリクス mismatch (-want +got):\n%s", diff)
	}
}

// TestClient_Summarize_PassesPointsThrough は要点の件数や空要素を変えずに返すことを検証する。
func TestClient_Summarize_PassesPointsThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply(`{"title_ja":"経路計画","points":["a","","b","c","d"],"category":"Planning"}`)))
	}))
	defer server.Close()

	got, err := newTestClient(server, &recordedUpstream{}, "k").Summarize(context.Background(), model.SummaryRequest{Title: "t"})
	if err != nil {
		t.Fatalf("Summarize がエラーを返した: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "", "b", "c", "d"}, got.Points); diff != "" {
		t.Errorf("Points mismatch (-want +got):\n%s", diff)
	}
}

// TestClient_Summarize_CodeFence はコードフェンス付きの出力も解釈できることを検証する。
func TestClient_Summarize_CodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply("```json\n{\"title_ja\":\"SLAM入門\",\"points\":[\"a\"],\"category\":\"SLAM\"}\n```")))
	}))
	defer server.Close()

	got, err := newTestClient(server, &recordedUpstream{}, "k").Summarize(context.Background(), model.SummaryRequest{Title: "t"})
	if err != nil {
		t.Fatalf("Summarize がエラーを返した: %v", err)
	}
	if got.TitleJA != "SLAM入門" {
		t.Errorf("TitleJA = %q, want SLAM入門", got.TitleJA)
	}
}

// TestClient_Summarize_Malformed は不正な出力がErrMalformedSummaryになることを検証する。
func TestClient_Summarize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"JSONでない出力", geminiReply("sorry, I cannot")},
		{"title_jaが空", geminiReply(`{"title_ja":"","points":["a"],"category":"X"}`)},
		{"title_jaがタグのみ", geminiReply(`{"title_ja":"<i></i>","points":["a"]}`)},
		{"候補なし", `{"candidates":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			rec := &recordedUpstream{}
			_, err := newTestClient(server, rec, "k").Summarize(context.Background(), model.SummaryRequest{Title: "t"})
			if !errors.Is(err, model.ErrMalformedSummary) {
				t.Errorf("err = %v, want ErrMalformedSummary", err)
			}
			if diff := cmp.Diff([]string{"gemini/failure"}, rec.outcomes); diff != "" {
				t.Errorf("メトリクス mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestClient_Summarize_ErrorStatus は2xx以外のステータスでエラーを返すことを検証する。
func TestClient_Summarize_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server, &recordedUpstream{}, "k").Summarize(context.Background(), model.SummaryRequest{Title: "t"})
	if err == nil {
		t.Fatal("429 はエラーになるべき")
	}
	if errors.Is(err, model.ErrMalformedSummary) {
		t.Error("ステータスエラーはErrMalformedSummaryと区別されるべき")
	}
}

// TestClient_Summarize_NotConfigured はAPIキー未設定時にリクエストしないことを検証する。
func TestClient_Summarize_NotConfigured(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	rec := &recordedUpstream{}
	_, err := newTestClient(server, rec, "").Summarize(context.Background(), model.SummaryRequest{Title: "t"})
	if !errors.Is(err, model.ErrUpstreamNotConfigured) {
		t.Fatalf("err = %v, want ErrUpstreamNotConfigured", err)
	}
	if called {
		t.Error("APIキー未設定時に外部APIを呼び出してはならない")
	}
	if diff := cmp.Diff([]string{"gemini/not_configured"}, rec.outcomes); diff != "" {
		t.Errorf("メトリクス mismatch (-want +got):\n%s", diff)
	}
}

// TestBuildPrompt_SelectsByKind は種別によってプロンプトが切り替わることを検証する。
func TestBuildPrompt_SelectsByKind(t *testing.T) {
	paper := BuildPrompt(model.SummaryRequest{Title: "P", Body: "abs", Kind: model.KindPaper})
	if !strings.Contains(paper, "Paper Title: P") || !strings.Contains(paper, "Paper Summary: abs") {
		t.Errorf("論文プロンプトが不正: %s", paper)
	}
	video := BuildPrompt(model.SummaryRequest{Title: "V", Body: "desc", Kind: model.KindVideo})
	if !strings.Contains(video, "Video Title: V") || !strings.Contains(video, "Video Description: desc") {
		t.Errorf("動画プロンプトが不正: %s", video)
	}
}

// TestFallback はAPIキー未設定時の代替要約を検証する。
func TestFallback(t *testing.T) {
	got := Fallback("Original Title")
	if got.TitleJA != "Original Title" || got.Category != FallbackCategory || len(got.Points) != 3 {
		t.Errorf("Fallback = %+v", got)
	}
}
