package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hitoshi/robodigest/internal/dashboard"
	"github.com/hitoshi/robodigest/internal/feedcache"
	"github.com/hitoshi/robodigest/internal/middleware"
	"github.com/hitoshi/robodigest/internal/model"
	"github.com/hitoshi/robodigest/internal/view"
)

// DashboardRegistry はクライアントスコープのDashboardを返すインターフェース。
// dashboard.Registryが実装する。
type DashboardRegistry interface {
	Get(ctx context.Context, scope string) *dashboard.Dashboard
}

// DashboardHandler はクライアントスコープごとのダッシュボード操作のハンドラー。
type DashboardHandler struct {
	registry DashboardRegistry
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(registry DashboardRegistry) *DashboardHandler {
	return &DashboardHandler{registry: registry}
}

// --- レスポンス型 ---

// displayItemResponse は表示アイテムのレスポンス。
// アイテムのフィールドにbookmarkedとsummarizingを加えたフラットなオブジェクトにする。
type displayItemResponse view.DisplayItem

// MarshalJSON はアイテムのJSONに表示状態を追加する。
func (d displayItemResponse) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(d.Item)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["bookmarked"] = d.Bookmarked
	fields["summarizing"] = d.Summarizing
	return json.Marshal(fields)
}

type feedStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// dashboardResponse はダッシュボード表示のレスポンス。
type dashboardResponse struct {
	Tab           string                   `json:"tab"`
	SavedOnly     bool                     `json:"saved_only"`
	Keyword       string                   `json:"keyword"`
	PaperSort     string                   `json:"paper_sort"`
	VideoSort     string                   `json:"video_sort"`
	Items         []displayItemResponse    `json:"items"`
	HasMore       bool                     `json:"has_more"`
	Status        string                   `json:"status"`
	Error         string                   `json:"error,omitempty"`
	Papers        feedStatusResponse       `json:"papers"`
	Videos        feedStatusResponse       `json:"videos"`
	TotalResults  int                      `json:"total_results"`
	BookmarkCount int                      `json:"bookmark_count"`
	Summarizing   []string                 `json:"summarizing"` // 表示外も含む要約処理中のID
	Notifications []dashboard.Notification `json:"notifications"`
}

type bookmarksResponse struct {
	Items []model.ContentItem `json:"items"`
	Count int                 `json:"count"`
}

type toggleResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Bookmarked    bool   `json:"bookmarked"`
	BookmarkCount int    `json:"bookmark_count"`
}

type itemRefRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type searchRequest struct {
	Keyword string `json:"keyword"`
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type savedRequest struct {
	SavedOnly *bool `json:"saved_only"`
}

type sortRequest struct {
	PaperSort *string `json:"paper_sort,omitempty"`
	VideoSort *string `json:"video_sort,omitempty"`
}

// dashboardFor はリクエストのクライアントスコープのDashboardを返す。
func (h *DashboardHandler) dashboardFor(w http.ResponseWriter, r *http.Request) (*dashboard.Dashboard, bool) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return h.registry.Get(r.Context(), clientID), true
}

// writeDashboard は現在の表示を書き込む。未読の通知はこの時点で取り出す。
func writeDashboard(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard) {
	notes := d.DrainNotifications(r.Context())
	s := d.Snapshot()
	v := s.View()

	items := make([]displayItemResponse, len(v.Items))
	for i, item := range v.Items {
		items[i] = displayItemResponse(item)
	}
	paperStatus, paperErr := s.Feed.Status(model.KindPaper)
	videoStatus, videoErr := s.Feed.Status(model.KindVideo)

	writeJSON(w, http.StatusOK, dashboardResponse{
		Tab:           string(s.Tab),
		SavedOnly:     s.SavedOnly,
		Keyword:       s.Keyword,
		PaperSort:     string(s.PaperSort),
		VideoSort:     string(s.VideoOrder),
		Items:         items,
		HasMore:       v.HasMore,
		Status:        string(v.Status),
		Error:         v.Error,
		Papers:        statusResponse(paperStatus, paperErr),
		Videos:        statusResponse(videoStatus, videoErr),
		TotalResults:  s.Feed.TotalResults,
		BookmarkCount: len(s.Bookmarks),
		Summarizing:   s.Tracker.Active(),
		Notifications: notes,
	})
}

func statusResponse(status feedcache.Status, message string) feedStatusResponse {
	return feedStatusResponse{Status: string(status), Error: message}
}

// Get は現在のダッシュボードを返す。初回は両方の一覧を取得してから返す。
// GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	// 取得失敗は各一覧の状態として返す
	_ = d.Bootstrap(r.Context())
	writeDashboard(w, r, d)
}

// Search は検索キーワードを設定して両方の一覧を取得し直す。
// POST /api/dashboard/search
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	_ = d.Search(r.Context(), req.Keyword)
	writeDashboard(w, r, d)
}

// SetTab は表示タブを切り替える。
// PUT /api/dashboard/tab
func (h *DashboardHandler) SetTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	tab, err := view.ParseTab(req.Tab)
	if err != nil {
		handleServiceError(w, model.NewInvalidTabError(req.Tab))
		return
	}
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	d.SetTab(r.Context(), tab)
	writeDashboard(w, r, d)
}

// SetSaved は保存済みのみ表示を切り替える。
// PUT /api/dashboard/saved
func (h *DashboardHandler) SetSaved(w http.ResponseWriter, r *http.Request) {
	var req savedRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.SavedOnly == nil {
		handleServiceError(w, model.NewInvalidRequestError("saved_onlyは必須です"))
		return
	}
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	d.SetSavedOnly(r.Context(), *req.SavedOnly)
	writeDashboard(w, r, d)
}

// SetSort は論文・動画の並び順を変更し、変更した側を取得し直す。
// PUT /api/dashboard/sort
func (h *DashboardHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.PaperSort == nil && req.VideoSort == nil {
		handleServiceError(w, model.NewInvalidRequestError("paper_sortまたはvideo_sortを指定してください"))
		return
	}
	if req.PaperSort != nil && !model.PaperSort(*req.PaperSort).Valid() {
		handleServiceError(w, model.NewInvalidSortError(*req.PaperSort))
		return
	}
	if req.VideoSort != nil && !model.VideoOrder(*req.VideoSort).Valid() {
		handleServiceError(w, model.NewInvalidSortError(*req.VideoSort))
		return
	}

	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	if req.PaperSort != nil {
		_ = d.SetPaperSort(r.Context(), model.PaperSort(*req.PaperSort))
	}
	if req.VideoSort != nil {
		_ = d.SetVideoOrder(r.Context(), model.VideoOrder(*req.VideoSort))
	}
	writeDashboard(w, r, d)
}

// LoadMoreVideos は動画の次ページを末尾に追加する。次ページがなければ現在の表示を返す。
// POST /api/dashboard/videos/more
func (h *DashboardHandler) LoadMoreVideos(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	_ = d.LoadMoreVideos(r.Context())
	writeDashboard(w, r, d)
}

// Refresh は両方の一覧を取得し直す。
// POST /api/dashboard/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	_ = d.Refresh(r.Context())
	writeDashboard(w, r, d)
}

// ListBookmarks はブックマークを登録順に返す。
// GET /api/bookmarks
func (h *DashboardHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}
	items := d.Bookmarks()
	writeJSON(w, http.StatusOK, bookmarksResponse{Items: items, Count: len(items)})
}

// ToggleBookmark はアイテムのブックマークを切り替える。
// POST /api/bookmarks/toggle
func (h *DashboardHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := decodeItemRef(w, r)
	if !ok {
		return
	}
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}

	bookmarked, err := d.ToggleBookmark(r.Context(), kind, id)
	if errors.Is(err, dashboard.ErrItemNotFound) {
		handleServiceError(w, model.NewItemNotFoundError(id))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{
		ID:            id,
		Type:          string(kind),
		Bookmarked:    bookmarked,
		BookmarkCount: len(d.Bookmarks()),
	})
}

// Summarize はアイテムを要約し、一覧とブックマークの両方に反映する。
// 同じアイテムの要約が処理中なら409を返す。
// POST /api/items/summarize
func (h *DashboardHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := decodeItemRef(w, r)
	if !ok {
		return
	}
	d, ok := h.dashboardFor(w, r)
	if !ok {
		return
	}

	item, err := d.Summarize(r.Context(), kind, id)
	if errors.Is(err, dashboard.ErrItemNotFound) {
		handleServiceError(w, model.NewItemNotFoundError(id))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, displayItemResponse{
		Item:       item,
		Bookmarked: view.IsBookmarked(d.Bookmarks(), id),
	})
}

// decodeItemRef は{type, id}形式のボディを読み取る。
func decodeItemRef(w http.ResponseWriter, r *http.Request) (model.Kind, string, bool) {
	var req itemRefRequest
	if !decodeJSONBody(w, r, &req) {
		return "", "", false
	}
	kind, err := model.ParseKind(req.Type)
	if err != nil {
		handleServiceError(w, model.NewInvalidRequestError("typeはpaperまたはvideoを指定してください"))
		return "", "", false
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		handleServiceError(w, model.NewInvalidRequestError("idは必須です"))
		return "", "", false
	}
	return kind, id, true
}
