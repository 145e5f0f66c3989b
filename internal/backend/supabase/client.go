// Package supabase はSupabase（GoTrue認証とPostgREST）をbackend.Backendとして扱うアダプタを提供する。
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/dimiximid/mentoring-plat/pkg/httpclient"
)

const (
	authPrefix = "/auth/v1"
	restPrefix = "/rest/v1"

	tableProfiles    = "profiles"
	tableConnections = "connections"
	tableMessages    = "messages"
)

// Client はSupabaseのREST APIを呼び出すbackend.Backend実装。
type Client struct {
	// http はapikeyとサービスキーを付与済みのHTTPクライアント。
	http *httpclient.Client
}

var _ backend.Backend = (*Client)(nil)

// New は新しいSupabaseクライアントを生成する。
// keyはapikeyヘッダーとデータAPIのベアラートークンの両方に使う。
func New(baseURL, key string, timeout time.Duration) *Client {
	return &Client{
		http: httpclient.New(strings.TrimRight(baseURL, "/"),
			httpclient.WithTimeout(timeout),
			httpclient.WithHeader("apikey", key),
			httpclient.WithHeader("Authorization", "Bearer "+key),
		),
	}
}

// authUser はGoTrueのユーザー表現のうち使用するフィールド。
type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// signUpResponse はサインアップ応答。
// メール確認が有効なプロジェクトではユーザーがトップレベルに、
// 自動確認のプロジェクトでは user フィールドにセッションと共に返る。
type signUpResponse struct {
	authUser
	User *authUser `json:"user"`
}

// tokenResponse はパスワードグラントの応答。
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	User         *authUser `json:"user"`
}

// authErrorBody はGoTrueのエラー応答。バージョンによってキーが異なる。
type authErrorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"msg"`
}

// SignUp はメールアドレスとパスワードでアイデンティティを作成する。
func (c *Client) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	var resp signUpResponse
	err := c.http.PostJSON(ctx, authPrefix+"/signup", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		if isAlreadyRegistered(err) {
			return model.Identity{}, fmt.Errorf("supabase signup: %w", backend.ErrConflict)
		}
		return model.Identity{}, fmt.Errorf("supabase signup: %w", err)
	}

	user := resp.authUser
	if resp.User != nil {
		user = *resp.User
	}
	if user.ID == "" {
		return model.Identity{}, errors.New("supabase signup: 応答にユーザーIDが含まれていない")
	}
	return model.Identity{ID: user.ID, Email: user.Email}, nil
}

// SignInWithPassword はパスワードグラントでトークンを取得する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (model.Identity, model.AuthSession, error) {
	var resp tokenResponse
	err := c.http.PostJSON(ctx, authPrefix+"/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		if isInvalidCredentials(err) {
			return model.Identity{}, model.AuthSession{}, fmt.Errorf("supabase signin: %w", backend.ErrInvalidCredentials)
		}
		return model.Identity{}, model.AuthSession{}, fmt.Errorf("supabase signin: %w", err)
	}
	if resp.User == nil || resp.User.ID == "" {
		return model.Identity{}, model.AuthSession{}, fmt.Errorf("supabase signin: %w", backend.ErrInvalidCredentials)
	}

	return model.Identity{ID: resp.User.ID, Email: resp.User.Email}, model.AuthSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// SignOut はユーザーのアクセストークンでログアウトを呼び出す。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	err := c.http.PostJSON(ctx, authPrefix+"/logout", nil, nil, httpclient.WithBearer(accessToken))
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("supabase logout: %w", backend.ErrInvalidToken)
		}
		return fmt.Errorf("supabase logout: %w", err)
	}
	return nil
}

// authError はGoTrueのエラー応答からステータスとエラーコード群を取り出す。
// 応答がStatusErrorでなければokはfalse。
func authError(err error) (status int, body authErrorBody, ok bool) {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return 0, authErrorBody{}, false
	}
	_ = json.Unmarshal(statusErr.Body, &body)
	return statusErr.StatusCode, body, true
}

// hasCode はエラー応答が指定コードのいずれかを含むか判定する。
func (b authErrorBody) hasCode(codes ...string) bool {
	for _, code := range codes {
		if b.Error == code || b.ErrorCode == code {
			return true
		}
	}
	return false
}

// isAlreadyRegistered は登録済みメールアドレスによるサインアップ失敗か判定する。
func isAlreadyRegistered(err error) bool {
	status, body, ok := authError(err)
	if !ok {
		return false
	}
	if body.hasCode("user_already_exists", "email_exists") {
		return true
	}
	return status == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(body.Message), "already registered")
}

// isInvalidCredentials は認証情報の誤りによるサインイン失敗か判定する。
// 旧バージョンは400とメッセージのみを返す。
func isInvalidCredentials(err error) bool {
	status, body, ok := authError(err)
	if !ok || status != http.StatusBadRequest {
		return false
	}
	return body.hasCode("invalid_grant", "invalid_credentials") ||
		strings.Contains(strings.ToLower(body.Message), "invalid login credentials")
}

// insert はPostgRESTにレコードを挿入し、return=representationで返った行をoutに格納する。
func (c *Client) insert(ctx context.Context, table string, row, out any) error {
	return c.http.PostJSON(ctx, restPrefix+"/"+table, row, out,
		httpclient.WithRequestHeader("Prefer", "return=representation"))
}

// selectRows はPostgRESTからクエリ条件に一致する行を取得する。
func (c *Client) selectRows(ctx context.Context, table string, query url.Values, out any) error {
	query.Set("select", "*")
	return c.http.GetJSON(ctx, restPrefix+"/"+table+"?"+query.Encode(), out)
}

// CreateProfile はprofilesテーブルに行を挿入する。
func (c *Client) CreateProfile(ctx context.Context, p model.NewProfile) (model.Profile, error) {
	var rows []model.Profile
	if err := c.insert(ctx, tableProfiles, p, &rows); err != nil {
		return model.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	if len(rows) == 0 {
		return model.Profile{}, errors.New("insert profile: 挿入結果が返らなかった")
	}
	return rows[0], nil
}

// GetProfile はIDでプロフィールを取得する。
func (c *Client) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	var rows []model.Profile
	if err := c.selectRows(ctx, tableProfiles, url.Values{"id": {"eq." + id}}, &rows); err != nil {
		return model.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	if len(rows) == 0 {
		return model.Profile{}, backend.ErrNotFound
	}
	return rows[0], nil
}

// ListProfilesByRole は指定ロールのプロフィールを取得する。
func (c *Client) ListProfilesByRole(ctx context.Context, role model.Role) ([]model.Profile, error) {
	rows := []model.Profile{}
	if err := c.selectRows(ctx, tableProfiles, url.Values{"role": {"eq." + string(role)}}, &rows); err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	return rows, nil
}

// CreateConnection はconnectionsテーブルに行を挿入する。
func (c *Client) CreateConnection(ctx context.Context, conn model.NewConnection) (model.Connection, error) {
	var rows []model.Connection
	if err := c.insert(ctx, tableConnections, conn, &rows); err != nil {
		return model.Connection{}, fmt.Errorf("insert connection: %w", err)
	}
	if len(rows) == 0 {
		return model.Connection{}, errors.New("insert connection: 挿入結果が返らなかった")
	}
	return rows[0], nil
}

// ListConnections はユーザーがメンターまたはメンティーである接続を取得する。
func (c *Client) ListConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	rows := []model.Connection{}
	query := url.Values{"or": {fmt.Sprintf("(mentor_id.eq.%s,mentee_id.eq.%s)", userID, userID)}}
	if err := c.selectRows(ctx, tableConnections, query, &rows); err != nil {
		return nil, fmt.Errorf("select connections: %w", err)
	}
	return rows, nil
}

// CreateMessage はmessagesテーブルに行を挿入する。
func (c *Client) CreateMessage(ctx context.Context, m model.NewMessage) (model.Message, error) {
	var rows []model.Message
	if err := c.insert(ctx, tableMessages, m, &rows); err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if len(rows) == 0 {
		return model.Message{}, errors.New("insert message: 挿入結果が返らなかった")
	}
	return rows[0], nil
}

// ListMessages はユーザーが送信者または受信者であるメッセージを作成日時の昇順で取得する。
func (c *Client) ListMessages(ctx context.Context, userID string) ([]model.Message, error) {
	rows := []model.Message{}
	query := url.Values{
		"or":    {fmt.Sprintf("(sender_id.eq.%s,receiver_id.eq.%s)", userID, userID)},
		"order": {"created_at.asc"},
	}
	if err := c.selectRows(ctx, tableMessages, query, &rows); err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	return rows, nil
}
