// Package arxiv はarXiv APIから論文を検索するクライアントを提供する。
package arxiv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/hitoshi/robodigest/internal/metrics"
	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/source"
)

const (
	// DefaultEndpoint はarXiv APIのエンドポイント。
	DefaultEndpoint = "http://export.arxiv.org/api/query"
	// DefaultQuery はキーワード未指定時の検索クエリ。
	DefaultQuery = `cat:cs.RO AND ("ROS 2" OR logistics OR warehouse OR simulation)`
	// MaxResults は1回の検索で取得する件数。
	MaxResults = 10

	sourceName     = "arxiv"
	defaultMaxBody = 5 * 1024 * 1024
)

// Config はClientの設定。
type Config struct {
	Endpoint    string        // 空ならDefaultEndpoint
	MinInterval time.Duration // リクエスト間の最小間隔。0以下なら制限しない
	MaxBodySize int64         // 0以下ならdefaultMaxBody
}

// Client はarXiv APIのクライアント。
// arXivの利用規約に従い、リクエスト間隔をレートリミッターで空ける。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     metrics.UpstreamRecorder
	endpoint    string
	maxBodySize int64
	limiter     *rate.Limiter
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
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     recorder,
		endpoint:    endpoint,
		maxBodySize: maxBody,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// BuildSearchQuery はキーワードからarXivの検索クエリを組み立てる。
// キーワードが空の場合はDefaultQueryを返す。
func BuildSearchQuery(keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return DefaultQuery
	}
	keyword = strings.ReplaceAll(keyword, `"`, "")
	return fmt.Sprintf(`cat:cs.RO AND all:"%s"`, keyword)
}

// SearchPapers は論文を検索する。並び順は常に降順。
// 結果がない場合は空スライスを返す。2xx以外のステータスはエラーとして返す。
// 1回の呼び出しにつき1回だけリクエストし、失敗しても再試行しない。
func (c *Client) SearchPapers(ctx context.Context, q model.PaperQuery) ([]model.Paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("arXiv APIの待機中に中断されました: %w", err)
	}

	start := time.Now()
	papers, err := c.search(ctx, q)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	c.metrics.RecordUpstream(sourceName, outcome, time.Since(start))
	return papers, err
}

func (c *Client) search(ctx context.Context, q model.PaperQuery) ([]model.Paper, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	sortBy := model.NormalizePaperSort(string(q.SortBy))
	params := reqURL.Query()
	params.Set("search_query", BuildSearchQuery(q.Keyword))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(MaxResults))
	params.Set("sortBy", string(sortBy))
	params.Set("sortOrder", "descending")
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "robodigest/1.0")
	req.Header.Set("Accept", "application/atom+xml, application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("arXiv APIの呼び出しに失敗しました",
			slog.String("keyword", q.Keyword),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("arXiv APIの呼び出しに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("arXiv APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("keyword", q.Keyword),
			slog.String("status_class", source.ClassifyHTTPStatus(resp.StatusCode).String()),
		)
		return nil, fmt.Errorf("arXiv APIがステータス %d を返しました", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		c.logger.Error("arXiv APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("Atomフィードのパースに失敗しました: %w", err)
	}

	papers := make([]model.Paper, 0, len(feed.Items))
	for _, item := range feed.Items {
		if p, ok := toPaper(item); ok {
			papers = append(papers, p)
		}
	}

	c.logger.Debug("arXiv APIから論文を取得しました",
		slog.String("keyword", q.Keyword),
		slog.String("sort_by", string(sortBy)),
		slog.Int("count", len(papers)),
	)
	return papers, nil
}

// toPaper はAtomエントリをPaperに変換する。idのないエントリは捨てる。
// 論文のリンクにはエントリのid（abstページのURL）を使う。
func toPaper(item *gofeed.Item) (model.Paper, bool) {
	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}
	if id == "" {
		return model.Paper{}, false
	}

	published := item.Published
	if published == "" && item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	}

	return model.Paper{
		ID:        id,
		Title:     collapseNewlines(item.Title),
		Summary:   collapseNewlines(item.Description),
		Published: published,
		Link:      id,
	}, true
}

// collapseNewlines は改行を空白に置き換え、前後の空白を取り除く。
func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
