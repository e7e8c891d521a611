// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は外部APIエンドポイントに許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は外部APIエンドポイントとして拒否するネットワーク範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル。クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// UpstreamGuard はarXiv・YouTube・Geminiへ接続するHTTPクライアントを生成し、
// 設定されたエンドポイントURLを検証する。
//
// エンドポイントは環境変数で差し替えられるため、誤設定で内部ネットワークへ
// リクエストしないように接続先を制限する。allowPrivateがtrueの場合は
// ローカルのモックサーバー向けに制限を外す。
type UpstreamGuard struct {
	allowPrivate bool
}

// NewUpstreamGuard はUpstreamGuardを生成する。
func NewUpstreamGuard(allowPrivate bool) *UpstreamGuard {
	return &UpstreamGuard{allowPrivate: allowPrivate}
}

// NewClient は外部API用のHTTPクライアントを生成する。
// safeurlのDialer検証により、DNS解決後のIPがプライベート・ループバック・
// リンクローカルの場合は接続を拒否する。ポートは80/443のみ許可する。
func (g *UpstreamGuard) NewClient(timeout time.Duration) *http.Client {
	if g.allowPrivate {
		return &http.Client{Timeout: timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoint はエンドポイントURLを起動時に静的に検証する。
// DNS解決は行わない。解決後のIP検証はNewClientのクライアント側で行う。
func (g *UpstreamGuard) ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if g.allowPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
