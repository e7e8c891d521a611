// Package repository はデータ永続化のインターフェースを定義する。
package repository

import "context"

// KVStore はスコープ付きのキー・バリューストアの永続化インターフェース。
// スコープはクライアント（ブラウザ）単位の名前空間を表す。
type KVStore interface {
	// Get は指定キーの値を取得する。存在しない場合はfalseを返す。
	Get(ctx context.Context, scope, key string) (string, bool, error)

	// Set は指定キーの値を上書き保存する。
	Set(ctx context.Context, scope, key, value string) error

	// Remove は指定キーを削除する。存在しない場合もエラーにならない。
	Remove(ctx context.Context, scope, key string) error
}

// ScopedKV は単一スコープに束縛されたKVStoreのビュー。
type ScopedKV struct {
	store KVStore
	scope string
}

// NewScopedKV はScopedKVを生成する。
func NewScopedKV(store KVStore, scope string) *ScopedKV {
	return &ScopedKV{store: store, scope: scope}
}

// Get は指定キーの値を取得する。
func (s *ScopedKV) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.scope, key)
}

// Set は指定キーの値を上書き保存する。
func (s *ScopedKV) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.scope, key, value)
}

// Remove は指定キーを削除する。
func (s *ScopedKV) Remove(ctx context.Context, key string) error {
	return s.store.Remove(ctx, s.scope, key)
}
