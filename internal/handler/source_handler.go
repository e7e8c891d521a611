package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/summarizer"
)

// PaperSearcher は論文検索クライアントのインターフェース。
type PaperSearcher interface {
	SearchPapers(ctx context.Context, q model.PaperQuery) ([]model.Paper, error)
}

// VideoSearcher は動画検索クライアントのインターフェース。
type VideoSearcher interface {
	SearchVideos(ctx context.Context, q model.VideoQuery) (*model.VideoPage, error)
}

// SummaryGenerator は要約生成クライアントのインターフェース。
type SummaryGenerator interface {
	Summarize(ctx context.Context, req model.SummaryRequest) (*model.Enrichment, error)
}

// SourceHandler は外部APIをそのまま中継するステートレスなエンドポイントのハンドラー。
// ダッシュボードの状態には影響しない。
type SourceHandler struct {
	papers     PaperSearcher
	videos     VideoSearcher
	summarizer SummaryGenerator
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(papers PaperSearcher, videos VideoSearcher, summarizer SummaryGenerator) *SourceHandler {
	return &SourceHandler{papers: papers, videos: videos, summarizer: summarizer}
}

type newsResponse struct {
	Papers []model.Paper `json:"papers"`
}

type youtubeResponse struct {
	Videos        []model.Video `json:"videos"`
	NextPageToken *string       `json:"nextPageToken"`
	TotalResults  int           `json:"totalResults"`
}

// summaryRequest は要約リクエストのボディ。
// 論文はsummary、動画はdescriptionに本文を入れる。
type summaryRequest struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

// News は論文を検索する。
// GET /api/news?q=&sortBy=
func (h *SourceHandler) News(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	papers, err := h.papers.SearchPapers(r.Context(), model.PaperQuery{
		Keyword: q.Get("q"),
		SortBy:  model.NormalizePaperSort(q.Get("sortBy")),
	})
	if err != nil {
		handleServiceError(w, upstreamError("arXiv", err))
		return
	}
	if papers == nil {
		papers = []model.Paper{}
	}
	writeJSON(w, http.StatusOK, newsResponse{Papers: papers})
}

// YouTube は動画を1ページ分検索する。
// GET /api/youtube?q=&order=&maxResults=&pageToken=
func (h *SourceHandler) YouTube(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxResults, _ := strconv.Atoi(q.Get("maxResults"))

	page, err := h.videos.SearchVideos(r.Context(), model.VideoQuery{
		Keyword:    q.Get("q"),
		Order:      model.NormalizeVideoOrder(q.Get("order")),
		MaxResults: maxResults,
		PageToken:  q.Get("pageToken"),
	})
	if err != nil {
		handleServiceError(w, upstreamError("YouTube", err))
		return
	}

	resp := youtubeResponse{Videos: []model.Video{}}
	if page != nil {
		if page.Videos != nil {
			resp.Videos = page.Videos
		}
		resp.NextPageToken = page.NextPageToken
		resp.TotalResults = page.TotalResults
	}
	writeJSON(w, http.StatusOK, resp)
}

// Summary はタイトルと本文から要約を生成する。
// POST /api/summary
// APIキー未設定の場合は代替の要約を200で返す。
func (h *SourceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		handleServiceError(w, model.NewInvalidRequestError("titleは必須です"))
		return
	}
	kind := model.KindPaper
	if req.Kind != "" {
		k, err := model.ParseKind(req.Kind)
		if err != nil {
			handleServiceError(w, model.NewInvalidRequestError("kindはpaperまたはvideoを指定してください"))
			return
		}
		kind = k
	}
	body := req.Summary
	if body == "" {
		body = req.Description
	}

	e, err := h.summarizer.Summarize(r.Context(), model.SummaryRequest{Title: title, Body: body, Kind: kind})
	if errors.Is(err, model.ErrUpstreamNotConfigured) {
		writeJSON(w, http.StatusOK, summarizer.Fallback(title))
		return
	}
	if err == nil && (e == nil || e.TitleJA == "") {
		err = model.ErrMalformedSummary
	}
	if err != nil {
		slog.Error("要約の生成に失敗しました",
			slog.String("type", string(kind)),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, model.NewSummaryFailedError())
		return
	}
	writeJSON(w, http.StatusOK, e)
}
