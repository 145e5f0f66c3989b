package session

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/dimiximid/mentoring-plat/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// migrationComponent はschema_migrationsに記録するコンポーネント名。
const migrationComponent = "session"

// SQLiteStore はSQLiteに保存するセッションストア。
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore はスキーマを適用してSQLiteセッションストアを生成する。
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := migration.Run(ctx, db, migrationComponent, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("セッションスキーマの適用に失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save はセッションを保存する。
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, access_token, refresh_token, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at`,
		rec.ID, rec.UserID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt.UnixMilli())
	return err
}

// Get はIDでセッションを取得する。
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, bool, error) {
	var rec Record
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, access_token, refresh_token, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.UserID, &rec.AccessToken, &rec.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	rec.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return rec, true, nil
}

// Delete はセッションを削除する。
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// PurgeExpired は期限切れのセッションを削除する。
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
