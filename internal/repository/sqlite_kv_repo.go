package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sqliteTimeLayout = "2006-01-02T15:04:05Z"

// SQLiteKVStore はSQLiteを使用したKVストア。
// 個人利用のデフォルトバックエンド。
type SQLiteKVStore struct {
	db *sql.DB
}

// NewSQLiteKVStore はSQLiteKVStoreを生成する。
func NewSQLiteKVStore(db *sql.DB) *SQLiteKVStore {
	return &SQLiteKVStore{db: db}
}

// Get は指定キーの値を取得する。存在しない場合はfalseを返す。
func (r *SQLiteKVStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE scope = ? AND key = ?`,
		scope, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("KVエントリの取得に失敗しました: %w", err)
	}
	return value, true, nil
}

// Set は指定キーの値をUPSERTする。
func (r *SQLiteKVStore) Set(ctx context.Context, scope, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_entries (scope, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (scope, key) DO UPDATE SET
		     value = excluded.value,
		     updated_at = excluded.updated_at`,
		scope, key, value, time.Now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("KVエントリの保存に失敗しました: %w", err)
	}
	return nil
}

// Remove は指定キーを削除する。
func (r *SQLiteKVStore) Remove(ctx context.Context, scope, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE scope = ? AND key = ?`,
		scope, key,
	)
	if err != nil {
		return fmt.Errorf("KVエントリの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ KVStore = (*SQLiteKVStore)(nil)
