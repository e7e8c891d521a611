// Package summarizer はGemini APIを使ってコンテンツの日本語要約を生成する。
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/hitoshi/robodigest/internal/metrics"
	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/security"
)

const (
	// DefaultBaseURL はGemini APIのベースURL。APIバージョンはSDKが付与する。
	DefaultBaseURL = "https://generativelanguage.googleapis.com/"
	// DefaultModel は要約に使うモデル名。
	DefaultModel = "gemini-2.5-flash"

	sourceName = "gemini"
	apiVersion = "v1beta"
)

// FallbackCategory はAPIキー未設定時に返す要約のカテゴリ。
const FallbackCategory = "Config Error"

// Fallback はAPIキー未設定時に画面へ返す代替の要約を生成する。
func Fallback(title string) *model.Enrichment {
	return &model.Enrichment{
		TitleJA: title,
		Points: []string{
			"API Key not configured",
			"Please check GEMINI_API_KEY",
			"Summary unavailable",
		},
		Category: FallbackCategory,
	}
}

// Config はClientの設定。
type Config struct {
	APIKey  string
	BaseURL string // 空ならDefaultBaseURL
	Model   string // 空ならDefaultModel
}

// Client はGemini APIで要約を生成するクライアント。
type Client struct {
	genai     *genai.Client // APIキー未設定ならnil
	logger    *slog.Logger
	metrics   metrics.UpstreamRecorder
	sanitizer *security.TextSanitizer
	model     string
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientはSDKの通信に使う。タイムアウトと接続先の制限はhttpClient側で行う。
func NewClient(httpClient *http.Client, logger *slog.Logger, recorder metrics.UpstreamRecorder, cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	c := &Client{
		logger:    logger,
		metrics:   recorder,
		sanitizer: security.NewTextSanitizer(),
		model:     modelName,
	}
	if cfg.APIKey == "" {
		return c
	}

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		logger.Error("Geminiクライアントの初期化に失敗しました。要約は無効になります",
			slog.String("error", err.Error()),
		)
		return c
	}
	c.genai = gc
	return c
}

// Configured はAPIキーが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.genai != nil
}

// Summarize は論文または動画の要約を生成する。
// APIキー未設定の場合はmodel.ErrUpstreamNotConfiguredを、
// 出力がJSONとして解釈できないかtitle_jaが空の場合はmodel.ErrMalformedSummaryをラップして返す。
func (c *Client) Summarize(ctx context.Context, req model.SummaryRequest) (*model.Enrichment, error) {
	if !c.Configured() {
		c.metrics.RecordUpstream(sourceName, metrics.OutcomeNotConfigured, 0)
		return nil, fmt.Errorf("Gemini APIキーが未設定です: %w", model.ErrUpstreamNotConfigured)
	}

	start := time.Now()
	e, err := c.generate(ctx, req)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	c.metrics.RecordUpstream(sourceName, outcome, time.Since(start))
	return e, err
}

func (c *Client) generate(ctx context.Context, sr model.SummaryRequest) (*model.Enrichment, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(BuildPrompt(sr)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Error("Gemini APIがエラーステータスを返しました",
				slog.Int("http_status", apiErr.Code),
				slog.String("model", c.model),
				slog.String("detail", apiErr.Message),
			)
			return nil, fmt.Errorf("Gemini APIがステータス %d を返しました", apiErr.Code)
		}
		return nil, fmt.Errorf("Gemini APIの呼び出しに失敗しました: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("候補が空です: %w", model.ErrMalformedSummary)
	}
	return c.parseEnrichment(resp.Text())
}

// parseEnrichment はモデル出力のJSONを要約結果に変換する。
// 出力はタグを除いたプレーンテキストに正規化する。
func (c *Client) parseEnrichment(text string) (*model.Enrichment, error) {
	text = stripCodeFence(text)

	var raw struct {
		TitleJA  string   `json:"title_ja"`
		Points   []string `json:"points"`
		Category string   `json:"category"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("要約JSONのパースに失敗しました: %v: %w", err, model.ErrMalformedSummary)
	}

	e := &model.Enrichment{
		TitleJA:  c.sanitizer.Plain(raw.TitleJA),
		Category: c.sanitizer.Plain(raw.Category),
	}
	if e.TitleJA == "" {
		return nil, fmt.Errorf("title_jaが空です: %w", model.ErrMalformedSummary)
	}
	// 要点は件数も空要素も検証せずにそのまま渡す
	e.Points = c.sanitizer.PlainAll(raw.Points)
	return e, nil
}

// stripCodeFence は```json ... ```で囲まれた出力から中身を取り出す。
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
