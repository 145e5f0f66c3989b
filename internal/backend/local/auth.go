package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// accessClaims はアクセストークンのクレーム。
type accessClaims struct {
	jwt.RegisteredClaims
	// Email はアイデンティティのメールアドレス。
	Email string `json:"email"`
}

// normalizeEmail はメールアドレスを比較用に正規化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation はSQLiteの一意制約違反か判定する。
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// SignUp はアイデンティティを作成する。登録済みのメールアドレスは ErrConflict。
func (b *Backend) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.Identity{}, errors.New("メールアドレスとパスワードは必須です")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.bcryptCost)
	if err != nil {
		return model.Identity{}, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	identity := model.Identity{ID: uuid.New().String(), Email: email}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO identities (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		identity.ID, identity.Email, string(hash), b.timestamp())
	if isUniqueViolation(err) {
		return model.Identity{}, fmt.Errorf("sign up %s: %w", email, backend.ErrConflict)
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("アイデンティティの挿入に失敗: %w", err)
	}
	return identity, nil
}

// SignInWithPassword はパスワードを検証し、アクセストークンとリフレッシュトークンを発行する。
func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (model.Identity, model.AuthSession, error) {
	email = normalizeEmail(email)

	var identity model.Identity
	var hash string
	err := b.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM identities WHERE email = ?`, email,
	).Scan(&identity.ID, &identity.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Identity{}, model.AuthSession{}, backend.ErrInvalidCredentials
	}
	if err != nil {
		return model.Identity{}, model.AuthSession{}, fmt.Errorf("アイデンティティの取得に失敗: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return model.Identity{}, model.AuthSession{}, backend.ErrInvalidCredentials
	}

	accessToken, err := b.issueAccessToken(identity)
	if err != nil {
		return model.Identity{}, model.AuthSession{}, err
	}
	refreshToken := uuid.New().String()

	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (access_token, refresh_token, identity_id, created_at) VALUES (?, ?, ?, ?)`,
		accessToken, refreshToken, identity.ID, b.timestamp()); err != nil {
		return model.Identity{}, model.AuthSession{}, fmt.Errorf("トークンの保存に失敗: %w", err)
	}

	return identity, model.AuthSession{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(b.tokenTTL / time.Second),
	}, nil
}

// SignOut はアクセストークンを失効させる。無効または失効済みのトークンは ErrInvalidToken。
func (b *Backend) SignOut(ctx context.Context, accessToken string) error {
	if _, err := b.parseAccessToken(accessToken); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrInvalidToken, err)
	}

	res, err := b.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE access_token = ?`, accessToken)
	if err != nil {
		return fmt.Errorf("トークンの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return backend.ErrInvalidToken
	}
	return nil
}

// issueAccessToken はアイデンティティのアクセストークンを署名する。
func (b *Backend) issueAccessToken(identity model.Identity) (string, error) {
	now := b.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   identity.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.tokenTTL)),
		},
		Email: identity.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("アクセストークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// parseAccessToken はアクセストークンの署名と有効期限を検証する。
func (b *Backend) parseAccessToken(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
