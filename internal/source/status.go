// Package source は外部APIクライアントに共通する処理を提供する。
package source

// StatusClass はHTTPステータスコードによる呼び出し結果の分類。
// ログで一時的な失敗と恒久的な失敗を見分けるために使う。再試行はしない。
type StatusClass int

const (
	// StatusOK は成功（2xx）。
	StatusOK StatusClass = iota
	// StatusRetryable は時間を置けば成功しうる失敗（429/5xx）。
	StatusRetryable
	// StatusFailed はそれ以外の失敗。待っても結果は変わらない。
	StatusFailed
)

// String はログ出力用の文字列を返す。
func (c StatusClass) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusRetryable:
		return "retryable"
	default:
		return "failed"
	}
}

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		return StatusOK
	case statusCode == 429:
		return StatusRetryable
	case statusCode >= 500:
		return StatusRetryable
	default:
		return StatusFailed
	}
}
