// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// ClientCookieName はクライアントスコープIDを保持するCookieの名前。
const ClientCookieName = "robodigest_client"

// clientCookieMaxAge はクライアントCookieの有効期間（1年）。
const clientCookieMaxAge = 365 * 24 * 60 * 60

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// ClientScopeConfig はクライアントスコープミドルウェアの設定。
type ClientScopeConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewClientScopeMiddleware はCookieからクライアントIDを読み取り、コンテキストに注入するミドルウェアを返す。
// Cookieがないか値がUUIDとして不正な場合は新しいIDを発行してCookieに設定する。
// ダッシュボードの状態とブックマークはこのIDごとに分離される。
func NewClientScopeMiddleware(config ClientScopeConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				clientID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   clientCookieMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
				slog.Debug("issued client scope", slog.String("client_id", clientID))
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClientID(r.Context(), clientID)))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントスコープミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}
