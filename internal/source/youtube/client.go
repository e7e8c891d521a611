// Package youtube はYouTube Data APIから動画を検索するクライアントを提供する。
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/robodigest/internal/metrics"
	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/security"
	"github.com/hitoshi/robodigest/internal/source"
)

const (
	// DefaultEndpoint はYouTube Data APIの検索エンドポイント。
	DefaultEndpoint = "https://www.googleapis.com/youtube/v3/search"
	// DefaultQuery はキーワード未指定時の検索語。
	DefaultQuery = "robotics ROS2"
	// DefaultMaxResults は件数未指定時の取得件数。
	DefaultMaxResults = 10
	// MaxResultsLimit は1ページで取得できる最大件数。
	MaxResultsLimit = 50
	// WatchURLPrefix は動画ページURLの接頭辞。
	WatchURLPrefix = "https://www.youtube.com/watch?v="

	sourceName     = "youtube"
	regionCode     = "JP"
	defaultMaxBody = 5 * 1024 * 1024
)

// Config はClientの設定。
type Config struct {
	APIKey      string
	Endpoint    string // 空ならDefaultEndpoint
	MaxBodySize int64  // 0以下ならdefaultMaxBody
}

// Client はYouTube Data APIのクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     metrics.UpstreamRecorder
	sanitizer   *security.TextSanitizer
	apiKey      string
	endpoint    string
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, recorder metrics.UpstreamRecorder, cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     recorder,
		sanitizer:   security.NewTextSanitizer(),
		apiKey:      cfg.APIKey,
		endpoint:    endpoint,
		maxBodySize: maxBody,
	}
}

// Configured はAPIキーが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// ClampMaxResults は取得件数を1〜MaxResultsLimitに収める。0以下は既定値とする。
func ClampMaxResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// searchResponse はsearch.listのレスポンスのうち利用するフィールド。
type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	PageInfo      struct {
		TotalResults int `json:"totalResults"`
	} `json:"pageInfo"`
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				Medium  *thumbnail `json:"medium"`
				Default *thumbnail `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type thumbnail struct {
	URL string `json:"url"`
}

// SearchVideos は動画を1ページ分検索する。
// APIキー未設定の場合はmodel.ErrUpstreamNotConfiguredをラップして返す。
// 次ページがない場合、VideoPage.NextPageTokenはnilになる。
// 1回の呼び出しにつき1回だけリクエストし、失敗しても再試行しない。
func (c *Client) SearchVideos(ctx context.Context, q model.VideoQuery) (*model.VideoPage, error) {
	if !c.Configured() {
		c.metrics.RecordUpstream(sourceName, metrics.OutcomeNotConfigured, 0)
		return nil, fmt.Errorf("YouTube APIキーが未設定です: %w", model.ErrUpstreamNotConfigured)
	}

	start := time.Now()
	page, err := c.search(ctx, q)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	c.metrics.RecordUpstream(sourceName, outcome, time.Since(start))
	return page, err
}

func (c *Client) search(ctx context.Context, q model.VideoQuery) (*model.VideoPage, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	keyword := strings.TrimSpace(q.Keyword)
	if keyword == "" {
		keyword = DefaultQuery
	}
	order := model.NormalizeVideoOrder(string(q.Order))

	params := reqURL.Query()
	params.Set("part", "snippet")
	params.Set("q", keyword)
	params.Set("type", "video")
	params.Set("order", string(order))
	params.Set("maxResults", strconv.Itoa(ClampMaxResults(q.MaxResults)))
	params.Set("regionCode", regionCode)
	params.Set("key", c.apiKey)
	if q.PageToken != "" {
		params.Set("pageToken", q.PageToken)
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// URLにAPIキーが含まれるため、エラー文字列はそのまま出さない
		c.logger.Error("YouTube APIの呼び出しに失敗しました",
			slog.String("keyword", keyword),
		)
		return nil, errors.New("YouTube APIの呼び出しに失敗しました")
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, c.maxBodySize)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(body, 1024))
		c.logger.Error("YouTube APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("keyword", keyword),
			slog.String("detail", string(detail)),
			slog.String("status_class", source.ClassifyHTTPStatus(resp.StatusCode).String()),
		)
		return nil, fmt.Errorf("YouTube APIがステータス %d を返しました", resp.StatusCode)
	}

	var data searchResponse
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return nil, fmt.Errorf("YouTube APIのレスポンスのデコードに失敗しました: %w", err)
	}

	page := &model.VideoPage{
		Videos:       make([]model.Video, 0, len(data.Items)),
		TotalResults: data.PageInfo.TotalResults,
	}
	if data.NextPageToken != "" {
		tok := data.NextPageToken
		page.NextPageToken = &tok
	}
	for _, item := range data.Items {
		id := item.ID.VideoID
		if id == "" {
			continue
		}
		page.Videos = append(page.Videos, model.Video{
			ID:           id,
			Title:        c.sanitizer.Plain(item.Snippet.Title),
			Description:  c.sanitizer.Plain(item.Snippet.Description),
			Thumbnail:    pickThumbnail(item.Snippet.Thumbnails.Medium, item.Snippet.Thumbnails.Default),
			ChannelTitle: c.sanitizer.Plain(item.Snippet.ChannelTitle),
			PublishedAt:  item.Snippet.PublishedAt,
			Link:         WatchURLPrefix + id,
		})
	}

	c.logger.Debug("YouTube APIから動画を取得しました",
		slog.String("keyword", keyword),
		slog.String("order", string(order)),
		slog.Int("count", len(page.Videos)),
		slog.Bool("has_more", page.NextPageToken != nil),
	)
	return page, nil
}

// pickThumbnail はmedium、defaultの順に存在するサムネイルURLを返す。
func pickThumbnail(candidates ...*thumbnail) string {
	for _, t := range candidates {
		if t != nil && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
