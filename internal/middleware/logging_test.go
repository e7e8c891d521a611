package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// serveAndParseLog はハンドラーをロギングミドルウェア経由で呼び出し、出力されたJSONログを返す。
func serveAndParseLog(t *testing.T, h http.HandlerFunc, req *http.Request) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewLoggingMiddleware(logger)(h).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/news?q=humanoid&sortBy=relevance", nil)
	entry := serveAndParseLog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, req)

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %v, want GET", entry["method"])
	}
	if entry["path"] != "/api/news" {
		t.Errorf("path = %v, want /api/news", entry["path"])
	}
	if entry["query"] != "q=humanoid&sortBy=relevance" {
		t.Errorf("query = %v", entry["query"])
	}
	if status, _ := entry["status"].(float64); status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v, 0以上の数値であるべき", entry["duration_ms"])
	}
	if _, ok := entry["client_id"]; ok {
		t.Error("クライアントIDがない場合はclient_idを出力すべきではない")
	}
}

// TestLoggingMiddleware_IncludesClientID はクライアントIDがログに含まれることを検証する。
func TestLoggingMiddleware_IncludesClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req = req.WithContext(ContextWithClientID(req.Context(), "client-123"))

	entry := serveAndParseLog(t, func(w http.ResponseWriter, r *http.Request) {}, req)

	if entry["client_id"] != "client-123" {
		t.Errorf("client_id = %v, want client-123", entry["client_id"])
	}
}

// TestLoggingMiddleware_LevelByStatus はステータスコードに応じたログレベルとステータスの記録を検証する。
func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantLevel  string
	}{
		{"200 OK", http.StatusOK, "INFO"},
		{"409 Conflict", http.StatusConflict, "WARN"},
		{"429 Too Many Requests", http.StatusTooManyRequests, "WARN"},
		{"502 Bad Gateway", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := serveAndParseLog(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}, httptest.NewRequest(http.MethodPost, "/api/items/summarize", nil))

			if status := int(entry["status"].(float64)); status != tt.statusCode {
				t.Errorf("status = %d, want %d", status, tt.statusCode)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
		})
	}
}

// TestLoggingMiddleware_BodyWriteCapture はWriteHeaderなしの書き込みが200として記録されることを検証する。
func TestLoggingMiddleware_BodyWriteCapture(t *testing.T) {
	entry := serveAndParseLog(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}, httptest.NewRequest(http.MethodGet, "/health", nil))

	if status := int(entry["status"].(float64)); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
}
