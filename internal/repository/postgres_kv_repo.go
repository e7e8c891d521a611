package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresKVStore はPostgreSQLを使用したKVストア。
type PostgresKVStore struct {
	db *sql.DB
}

// NewPostgresKVStore はPostgresKVStoreを生成する。
func NewPostgresKVStore(db *sql.DB) *PostgresKVStore {
	return &PostgresKVStore{db: db}
}

// Get は指定キーの値を取得する。存在しない場合はfalseを返す。
func (r *PostgresKVStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE scope = $1 AND key = $2`,
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
func (r *PostgresKVStore) Set(ctx context.Context, scope, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_entries (scope, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (scope, key) DO UPDATE SET
		     value = EXCLUDED.value,
		     updated_at = EXCLUDED.updated_at`,
		scope, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("KVエントリの保存に失敗しました: %w", err)
	}
	return nil
}

// Remove は指定キーを削除する。
func (r *PostgresKVStore) Remove(ctx context.Context, scope, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE scope = $1 AND key = $2`,
		scope, key,
	)
	if err != nil {
		return fmt.Errorf("KVエントリの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ KVStore = (*PostgresKVStore)(nil)
