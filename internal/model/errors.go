// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, upstream, summary, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 外部APIクライアントが返すセンチネルエラー。
var (
	// ErrUpstreamNotConfigured はAPIキーが未設定のため外部APIを呼べないことを表す。
	ErrUpstreamNotConfigured = errors.New("upstream not configured")
	// ErrMalformedSummary は要約レスポンスが期待する形でないことを表す。
	ErrMalformedSummary = errors.New("malformed summary response")
)

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeInvalidTab            = "INVALID_TAB"
	ErrCodeInvalidSort           = "INVALID_SORT"
	ErrCodeItemNotFound          = "ITEM_NOT_FOUND"
	ErrCodeUpstreamFailed        = "UPSTREAM_FAILED"
	ErrCodeUpstreamNotConfigured = "UPSTREAM_NOT_CONFIGURED"
	ErrCodeSummaryInProgress     = "SUMMARY_IN_PROGRESS"
	ErrCodeSummaryFailed         = "SUMMARY_FAILED"
	ErrCodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFValidationFailed  = "CSRF_VALIDATION_FAILED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidTabError は無効なタブ指定エラーを生成する。
func NewInvalidTabError(tab string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTab,
		Message:  fmt.Sprintf("無効なタブです: %s", tab),
		Category: "validation",
		Action:   "タブには papers、youtube のいずれかを指定してください。",
	}
}

// NewInvalidSortError は無効な並び順エラーを生成する。
func NewInvalidSortError(sort string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSort,
		Message:  fmt.Sprintf("無効な並び順です: %s", sort),
		Category: "validation",
		Action:   "論文は submittedDate、relevance、lastUpdatedDate、動画は date、relevance、viewCount、rating から指定してください。",
	}
}

// NewItemNotFoundError はアイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "validation",
		Action:   "一覧を再読み込みしてから再度お試しください。",
	}
}

// NewUpstreamFailedError は外部API呼び出し失敗エラーを生成する。
func NewUpstreamFailedError(source string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("%s からの取得に失敗しました。", source),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamNotConfiguredError はAPIキー未設定エラーを生成する。
func NewUpstreamNotConfiguredError(source string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamNotConfigured,
		Message:  fmt.Sprintf("%s のAPIキーが設定されていません。", source),
		Category: "system",
		Action:   "サーバーの環境変数を確認してください。",
	}
}

// NewSummaryInProgressError は要約処理中エラーを生成する。
func NewSummaryInProgressError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeSummaryInProgress,
		Message:  fmt.Sprintf("このアイテムは要約中です: %s", itemID),
		Category: "summary",
		Action:   "要約の完了をお待ちください。",
	}
}

// NewSummaryFailedError は要約生成失敗エラーを生成する。
func NewSummaryFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSummaryFailed,
		Message:  "要約の生成に失敗しました",
		Category: "summary",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewCSRFValidationFailedError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFValidationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFValidationFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "validation",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録し、ここには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
