// Package database はSQLiteデータベース接続の生成を提供する。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath はインメモリデータベースを表すパス。
const MemoryPath = ":memory:"

// Open はSQLiteデータベースを開き、接続を検証して返す。
// SQLiteは書き込みが直列化されるため接続数は1に固定する。
// インメモリの場合も接続ごとに別のDBにならないよう同じ制約が必要になる。
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("データディレクトリの作成に失敗: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s の実行に失敗: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースへのPingに失敗: %w", err)
	}
	return db, nil
}
