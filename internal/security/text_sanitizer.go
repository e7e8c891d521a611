package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部APIから受け取った文字列からHTMLを取り除き、プレーンテキストにする。
// YouTubeのタイトル・説明文やLLMの出力はHTMLエスケープ済みの場合やタグを含む場合がある。
// 画面側はテキストとして描画する前提のため、タグは除去し実体参照は元の文字に戻す。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Plain はタグを除去し、実体参照を戻し、前後の空白を取り除く。
// 同一入力に対して常に同一出力を返す。
func (s *TextSanitizer) Plain(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// PlainAll はスライスの各要素にPlainを適用した新しいスライスを返す。
func (s *TextSanitizer) PlainAll(raw []string) []string {
	if raw == nil {
		return nil
	}
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = s.Plain(r)
	}
	return out
}
