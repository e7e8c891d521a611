package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/robodigest/internal/model"
)

// TestWriteAPIError_StatusByCode はエラーコードごとのステータスと統一フォーマットを検証する。
func TestWriteAPIError_StatusByCode(t *testing.T) {
	tests := []struct {
		name       string
		apiErr     *model.APIError
		wantStatus int
	}{
		{"リクエスト不正", model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{"タブ不正", model.NewInvalidTabError("podcasts"), http.StatusBadRequest},
		{"並び順不正", model.NewInvalidSortError("bogus"), http.StatusBadRequest},
		{"CSRF", model.NewCSRFValidationFailedError(), http.StatusForbidden},
		{"アイテムなし", model.NewItemNotFoundError("v1"), http.StatusNotFound},
		{"要約処理中", model.NewSummaryInProgressError("2405.00001"), http.StatusConflict},
		{"レート制限", model.NewRateLimitExceededError(), http.StatusTooManyRequests},
		{"取得失敗", model.NewUpstreamFailedError("arXiv"), http.StatusBadGateway},
		{"要約失敗", model.NewSummaryFailedError(), http.StatusBadGateway},
		{"キー未設定", model.NewUpstreamNotConfiguredError("YouTube"), http.StatusServiceUnavailable},
		{"内部エラー", model.NewInternalError(), http.StatusInternalServerError},
		{"未知のコード", &model.APIError{Code: "SOMETHING_NEW"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAPIError(w, tt.apiErr)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var got ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			want := ErrorResponseBody{
				Code:     tt.apiErr.Code,
				Message:  tt.apiErr.Message,
				Category: tt.apiErr.Category,
				Action:   tt.apiErr.Action,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestWriteError_UnwrapsAPIError はラップされたAPIErrorをそのまま返すことを検証する。
func TestWriteError_UnwrapsAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, fmt.Errorf("toggle: %w", model.NewItemNotFoundError("p1")))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeItemNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeItemNotFound)
	}
}

// TestWriteError_HidesInternalDetails はAPIError以外のエラーの詳細を返さないことを検証する。
func TestWriteError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeInternal || body.Category != "system" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
	if body.Message == "pq: connection refused" {
		t.Error("内部エラーの詳細をレスポンスに含めてはならない")
	}
}
