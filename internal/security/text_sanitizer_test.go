package security

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestPlain はタグ除去と実体参照の復元を検証する。
func TestPlain(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"プレーンテキスト", "ROS 2 Navigation", "ROS 2 Navigation"},
		{"実体参照", "Robot&#39;s &amp; Humans", "Robot's & Humans"},
		{"タグ除去", "<b>Bold</b> claim", "Bold claim"},
		{"scriptは中身ごと除去", "<script>alert(1)</script>safe", "safe"},
		{"イベント属性", `<img src=x onerror="alert(1)">text`, "text"},
		{"前後の空白", "  padded \n", "padded"},
		{"日本語", "自律移動ロボット", "自律移動ロボット"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Plain(tt.input); got != tt.want {
				t.Errorf("Plain(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestPlain_Idempotent は2回適用しても結果が変わらないことを検証する。
func TestPlain_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := "<p>Grasping &amp; manipulation</p>"

	once := sanitizer.Plain(input)
	if twice := sanitizer.Plain(once); twice != once {
		t.Errorf("Plain is not idempotent: %q -> %q", once, twice)
	}
}

// TestPlainAll は各要素に適用されnilはnilのままであることを検証する。
func TestPlainAll(t *testing.T) {
	sanitizer := NewTextSanitizer()

	got := sanitizer.PlainAll([]string{"<i>a</i>", "b &amp; c"})
	if diff := cmp.Diff([]string{"a", "b & c"}, got); diff != "" {
		t.Errorf("PlainAll mismatch (-want +got):\n%s", diff)
	}
	if sanitizer.PlainAll(nil) != nil {
		t.Error("PlainAll(nil) は nil を返すべき")
	}
}
