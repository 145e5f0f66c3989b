package local

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"golang.org/x/crypto/bcrypt"
)

// timeLayout はcreated_atの保存形式。固定幅にして文字列順と時刻順を一致させる。
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// defaultTokenTTL はアクセストークンの既定の有効期間。
const defaultTokenTTL = time.Hour

// tokenIssuer はアクセストークンのissクレーム。
const tokenIssuer = "mentoring-local-auth"

// Backend はSQLiteを使ったローカルのマネージドバックエンド。
type Backend struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// secret はアクセストークンの署名鍵。
	secret []byte
	// bcryptCost はパスワードハッシュのコスト。
	bcryptCost int
	// tokenTTL はアクセストークンの有効期間。
	tokenTTL time.Duration
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

// Option はBackend生成時の設定を変更する。
type Option func(*Backend)

// WithBcryptCost はパスワードハッシュのコストを設定する。
func WithBcryptCost(cost int) Option {
	return func(b *Backend) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			b.bcryptCost = cost
		}
	}
}

// WithTokenTTL はアクセストークンの有効期間を設定する。
func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		if ttl > 0 {
			b.tokenTTL = ttl
		}
	}
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// New はスキーマを適用して新しいローカルバックエンドを生成する。
func New(ctx context.Context, db *sql.DB, secret string, opts ...Option) (*Backend, error) {
	if secret == "" {
		return nil, fmt.Errorf("トークン署名鍵が空です")
	}
	if err := initSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	b := &Backend{
		db:         db,
		secret:     []byte(secret),
		bcryptCost: bcrypt.DefaultCost,
		tokenTTL:   defaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// timestamp は現在時刻を保存形式で返す。
func (b *Backend) timestamp() string {
	return b.now().UTC().Format(timeLayout)
}

// parseTime は保存形式の時刻をパースする。
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("created_atのパースに失敗: %w", err)
	}
	return t, nil
}
