package local

import (
	"context"
	"database/sql"
	"embed"

	"github.com/dimiximid/mentoring-plat/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// migrationComponent はschema_migrationsに記録するコンポーネント名。
const migrationComponent = "local_backend"

// initSchema はマイグレーションを実行してローカルバックエンドのスキーマを適用する。
func initSchema(ctx context.Context, db *sql.DB) error {
	return migration.Run(ctx, db, migrationComponent, migrationsFS, "migrations")
}
