// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/robodigest/internal/middleware"
	"github.com/hitoshi/robodigest/internal/model"
)

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを統一フォーマットで書き込む。
// ステータスコードはAPIErrorのコードから決まる。
func handleServiceError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}

// upstreamError は外部API呼び出しのエラーをAPIErrorに変換する。
func upstreamError(source string, err error) *model.APIError {
	if errors.Is(err, model.ErrUpstreamNotConfigured) {
		return model.NewUpstreamNotConfiguredError(source)
	}
	return model.NewUpstreamFailedError(source)
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 失敗時はINVALID_REQUESTを書き込みfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return false
	}
	return true
}

// maxRequestBodySize はリクエストボディの上限。要約対象のアブストラクトが収まる大きさにする。
const maxRequestBodySize = 64 * 1024
