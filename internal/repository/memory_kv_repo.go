package repository

import (
	"context"
	"sync"
)

// MemoryKVStore はプロセス内メモリのKVストア。
// STORE_DRIVER=memory およびテストで使用する。再起動で内容は失われる。
type MemoryKVStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

// NewMemoryKVStore はMemoryKVStoreを生成する。
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{entries: make(map[string]map[string]string)}
}

// Get は指定キーの値を取得する。
func (r *MemoryKVStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[scope][key]
	return v, ok, nil
}

// Set は指定キーの値を上書き保存する。
func (r *MemoryKVStore) Set(_ context.Context, scope, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[scope] == nil {
		r.entries[scope] = make(map[string]string)
	}
	r.entries[scope][key] = value
	return nil
}

// Remove は指定キーを削除する。
func (r *MemoryKVStore) Remove(_ context.Context, scope, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries[scope], key)
	return nil
}

// compile-time interface check
var _ KVStore = (*MemoryKVStore)(nil)
