// Package session はゲートウェイのログインセッションを管理する。
//
// クライアントにはセッションIDをjtiに持つ署名済みJWTだけを渡し、
// マネージドバックエンドのトークンはサーバー側のストアに保持する。
// ストアはSQLiteとRedisの実装があり、複数インスタンスで共有できる。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenIssuer はセッショントークンのissクレーム。
const tokenIssuer = "mentoring-gateway"

// defaultTTL はセッションの既定の有効期間。
const defaultTTL = 24 * time.Hour

// ErrInvalidUserID はユーザーIDなしでセッションを作成しようとしたことを表す。
var ErrInvalidUserID = errors.New("userID is required")

// Record はストアに保存するセッション。
type Record struct {
	// ID はセッションID。トークンのjtiと一致する。
	ID string `json:"id"`
	// UserID は認証済みユーザーのID。
	UserID string `json:"user_id"`
	// AccessToken はマネージドバックエンドのアクセストークン。
	AccessToken string `json:"access_token"`
	// RefreshToken はマネージドバックエンドのリフレッシュトークン。
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt はセッションの有効期限。
	ExpiresAt time.Time `json:"expires_at"`
}

// Store はセッションの永続化先。
type Store interface {
	// Save はセッションを保存する。同じIDがあれば上書きする。
	Save(ctx context.Context, rec Record) error
	// Get はIDでセッションを取得する。存在しなければfalse。
	Get(ctx context.Context, id string) (Record, bool, error)
	// Delete はセッションを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, id string) error
	// PurgeExpired はnowより前に期限切れになったセッションを削除し、削除件数を返す。
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// claims はセッショントークンのクレーム。
type claims struct {
	jwt.RegisteredClaims
}

// Option はManager生成時の設定を変更する。
type Option func(*Manager)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager はセッションの発行・検証・失効を行う。
type Manager struct {
	// store はセッションの保存先。
	store Store
	// secret はセッショントークンの署名鍵。
	secret []byte
	// ttl はセッションの有効期間。
	ttl time.Duration
	// now は現在時刻を返す。
	now func() time.Time
}

// NewManager は新しいセッションマネージャーを生成する。ttlが0以下なら24時間。
func NewManager(store Store, secret string, ttl time.Duration, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("セッションストアが指定されていない")
	}
	if secret == "" {
		return nil, errors.New("セッション署名鍵が空です")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	m := &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL はセッションの有効期間を返す。Cookieのmax-ageに使う。
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create はユーザーのセッションを保存し、クライアントに渡す署名済みトークンを返す。
func (m *Manager) Create(ctx context.Context, userID string, tokens model.AuthSession) (string, Record, error) {
	if userID == "" {
		return "", Record{}, ErrInvalidUserID
	}

	now := m.now()
	rec := Record{
		ID:           uuid.New().String(),
		UserID:       userID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    now.Add(m.ttl).UTC(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rec.ID,
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}).SignedString(m.secret)
	if err != nil {
		return "", Record{}, fmt.Errorf("セッショントークンの署名に失敗: %w", err)
	}

	if err := m.store.Save(ctx, rec); err != nil {
		return "", Record{}, fmt.Errorf("セッションの保存に失敗: %w", err)
	}
	return token, rec, nil
}

// Resolve はトークンを検証してセッションを返す。
// 署名不正・期限切れ・失効済みの場合はfalseを返し、ストアの障害のみエラーにする。
func (m *Manager) Resolve(ctx context.Context, token string) (Record, bool, error) {
	if token == "" {
		return Record{}, false, nil
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || c.ID == "" {
		return Record{}, false, nil
	}

	rec, ok, err := m.store.Get(ctx, c.ID)
	if err != nil {
		return Record{}, false, fmt.Errorf("セッションの取得に失敗: %w", err)
	}
	if !ok || rec.UserID != c.Subject {
		return Record{}, false, nil
	}
	if !m.now().Before(rec.ExpiresAt) {
		_ = m.store.Delete(ctx, rec.ID)
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Revoke はセッションを失効させる。
func (m *Manager) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("セッションの削除に失敗: %w", err)
	}
	return nil
}

// PurgeExpired は期限切れのセッションをストアから削除する。
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.store.PurgeExpired(ctx, m.now())
}

// RunPurger はctxがキャンセルされるまでintervalごとに期限切れセッションを削除する。
// バックグラウンドgoroutineとして呼び出されることを想定している。
func (m *Manager) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				slog.Error("failed to purge expired sessions", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				slog.Info("expired sessions purged", slog.Int64("count", n))
			}
		}
	}
}
