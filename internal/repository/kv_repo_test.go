package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hitoshi/robodigest/internal/database"
)

// TestKVStores_ImplementInterface は各実装がKVStoreを満たすことを検証する。
func TestKVStores_ImplementInterface(t *testing.T) {
	var _ KVStore = (*PostgresKVStore)(nil)
	var _ KVStore = (*SQLiteKVStore)(nil)
	var _ KVStore = (*MemoryKVStore)(nil)
}

func newSQLiteStore(t *testing.T) *SQLiteKVStore {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite がエラーを返した: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.RunSQLiteMigrations(db); err != nil {
		t.Fatalf("RunSQLiteMigrations がエラーを返した: %v", err)
	}
	return NewSQLiteKVStore(db)
}

// testKVStoreContract は全実装に共通する振る舞いを検証する。
func testKVStoreContract(t *testing.T, store KVStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "client-a", "k"); err != nil || ok {
		t.Fatalf("未保存キーの Get = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	if err := store.Set(ctx, "client-a", "k", "v1"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}
	if err := store.Set(ctx, "client-a", "k", "v2"); err != nil {
		t.Fatalf("上書き Set がエラーを返した: %v", err)
	}

	got, ok, err := store.Get(ctx, "client-a", "k")
	if err != nil || !ok || got != "v2" {
		t.Fatalf("Get = (%q, %v, %v), want (v2, true, nil)", got, ok, err)
	}

	// スコープが異なれば独立している
	if _, ok, _ := store.Get(ctx, "client-b", "k"); ok {
		t.Error("別スコープから値が見えてはならない")
	}

	if err := store.Remove(ctx, "client-a", "k"); err != nil {
		t.Fatalf("Remove がエラーを返した: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "client-a", "k"); ok {
		t.Error("Remove 後に値が残っている")
	}

	// 存在しないキーの削除はエラーにならない
	if err := store.Remove(ctx, "client-a", "missing"); err != nil {
		t.Errorf("存在しないキーの Remove がエラーを返した: %v", err)
	}
}

func TestMemoryKVStore_Contract(t *testing.T) {
	testKVStoreContract(t, NewMemoryKVStore())
}

func TestSQLiteKVStore_Contract(t *testing.T) {
	testKVStoreContract(t, newSQLiteStore(t))
}

func TestSQLiteMigrations_AreIdempotent(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite がエラーを返した: %v", err)
	}
	defer db.Close()

	if err := database.RunSQLiteMigrations(db); err != nil {
		t.Fatalf("1回目のマイグレーションに失敗: %v", err)
	}
	if err := database.RunSQLiteMigrations(db); err != nil {
		t.Fatalf("2回目のマイグレーションはErrNoChangeとして成功すべき: %v", err)
	}
}

func TestScopedKV_BindsScope(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKVStore()
	scoped := NewScopedKV(store, "client-a")

	if err := scoped.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set がエラーを返した: %v", err)
	}

	got, ok, _ := store.Get(ctx, "client-a", "k")
	if !ok || got != "v" {
		t.Errorf("基底ストアの値 = (%q, %v), want (v, true)", got, ok)
	}
}
