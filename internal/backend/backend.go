// Package backend はマネージドバックエンドへの依存を表すインターフェースを定義する。
//
// ゲートウェイは認証（Auth）とデータ（Store）をこのインターフェース越しにのみ呼び出す。
// 実装はSupabase REST（supabaseパッケージ）とSQLiteによるローカル実装（localパッケージ）がある。
package backend

import (
	"context"
	"errors"

	"github.com/dimiximid/mentoring-plat/internal/model"
)

var (
	// ErrNotFound は対象レコードが存在しないことを表す。
	ErrNotFound = errors.New("record not found")
	// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っていることを表す。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict は一意制約に違反したことを表す（登録済みメールアドレス等）。
	ErrConflict = errors.New("already exists")
	// ErrInvalidToken はアクセストークンが無効であることを表す。
	ErrInvalidToken = errors.New("invalid access token")
)

// Auth はマネージドバックエンドの認証機能。
type Auth interface {
	// SignUp はアイデンティティを作成する。
	SignUp(ctx context.Context, email, password string) (model.Identity, error)
	// SignInWithPassword はパスワード認証を行いトークンを発行する。
	SignInWithPassword(ctx context.Context, email, password string) (model.Identity, model.AuthSession, error)
	// SignOut はアクセストークンに紐づくセッションを無効化する。
	SignOut(ctx context.Context, accessToken string) error
}

// Store はマネージドバックエンドのデータ機能。
// 参照整合性や一意性はバックエンド側に委ね、ここでは検証しない。
type Store interface {
	// CreateProfile はプロフィールを挿入し、保存された行を返す。
	CreateProfile(ctx context.Context, p model.NewProfile) (model.Profile, error)
	// GetProfile はIDでプロフィールを取得する。存在しなければ ErrNotFound。
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	// ListProfilesByRole は指定ロールのプロフィールを全件取得する。
	ListProfilesByRole(ctx context.Context, role model.Role) ([]model.Profile, error)
	// CreateConnection は接続を挿入し、保存された行を返す。
	CreateConnection(ctx context.Context, c model.NewConnection) (model.Connection, error)
	// ListConnections はユーザーがメンターまたはメンティーである接続を取得する。
	ListConnections(ctx context.Context, userID string) ([]model.Connection, error)
	// CreateMessage はメッセージを挿入し、保存された行を返す。
	CreateMessage(ctx context.Context, m model.NewMessage) (model.Message, error)
	// ListMessages はユーザーが送信者または受信者であるメッセージを作成日時の昇順で取得する。
	ListMessages(ctx context.Context, userID string) ([]model.Message, error)
}

// Backend は認証とデータの両方を提供するマネージドバックエンド。
type Backend interface {
	Auth
	Store
}
