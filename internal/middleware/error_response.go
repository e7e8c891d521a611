package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/robodigest/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// ミドルウェアとハンドラーのどちらが返すエラーもこの形になる。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// StatusCode はAPIErrorのコードに対応するHTTPステータスコードを返す。
// 未知のコードは500になる。
func StatusCode(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidTab, model.ErrCodeInvalidSort:
		return http.StatusBadRequest
	case model.ErrCodeCSRFValidationFailed:
		return http.StatusForbidden
	case model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeSummaryInProgress:
		return http.StatusConflict
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case model.ErrCodeUpstreamFailed, model.ErrCodeSummaryFailed:
		return http.StatusBadGateway
	case model.ErrCodeUpstreamNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteAPIError はapiErrをコードに対応するステータスで書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(apiErr))
	if err := json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}); err != nil {
		slog.Error("failed to encode error response", slog.String("error", err.Error()))
	}
}

// WriteError はerrを統一フォーマットで書き込む。
// APIErrorを含まないエラーは詳細をログにのみ残し、INTERNAL_ERRORとして返す。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteAPIError(w, apiErr)
		return
	}
	slog.Error("internal server error", slog.String("error", err.Error()))
	WriteAPIError(w, model.NewInternalError())
}
