package local

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/database"
	"github.com/dimiximid/mentoring-plat/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// testSecret はテスト用のトークン署名鍵。
const testSecret = "local-backend-test-secret"

// fakeClock は呼び出しごとに進む時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

// newTestBackend はインメモリSQLiteでローカルバックエンドを生成する。
func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()

	db, err := database.Open(context.Background(), database.MemoryPath)
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	b, err := New(context.Background(), db, testSecret, opts...)
	if err != nil {
		t.Fatalf("ローカルバックエンドの生成に失敗: %v", err)
	}
	return b
}

// TestAuth は登録・サインイン・サインアウトを検証する。
func TestAuth(t *testing.T) {
	t.Parallel()

	t.Run("登録したアイデンティティでサインインできること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		ctx := context.Background()

		identity, err := b.SignUp(ctx, " Ann@Example.com ", "pw123456")
		if err != nil {
			t.Fatalf("SignUp()でエラーが発生: %v", err)
		}
		if identity.Email != "ann@example.com" {
			t.Errorf("Email = %q, want %q", identity.Email, "ann@example.com")
		}

		signedIn, session, err := b.SignInWithPassword(ctx, "ann@example.com", "pw123456")
		if err != nil {
			t.Fatalf("SignInWithPassword()でエラーが発生: %v", err)
		}
		if signedIn.ID != identity.ID {
			t.Errorf("ID = %q, want %q", signedIn.ID, identity.ID)
		}
		if session.AccessToken == "" || session.RefreshToken == "" {
			t.Errorf("トークンが空: %+v", session)
		}
		if session.ExpiresIn != 3600 {
			t.Errorf("ExpiresIn = %d, want 3600", session.ExpiresIn)
		}

		claims, err := b.parseAccessToken(session.AccessToken)
		if err != nil {
			t.Fatalf("アクセストークンの検証に失敗: %v", err)
		}
		if claims.Subject != identity.ID {
			t.Errorf("sub = %q, want %q", claims.Subject, identity.ID)
		}
	})

	t.Run("同じメールアドレスの再登録はErrConflictになること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		ctx := context.Background()

		if _, err := b.SignUp(ctx, "dup@example.com", "pw"); err != nil {
			t.Fatalf("SignUp()でエラーが発生: %v", err)
		}
		if _, err := b.SignUp(ctx, "DUP@example.com", "pw"); !errors.Is(err, backend.ErrConflict) {
			t.Errorf("ErrConflictが返るべき: %v", err)
		}
	})

	t.Run("誤ったパスワードと未登録のメールアドレスはErrInvalidCredentialsになること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		ctx := context.Background()

		if _, err := b.SignUp(ctx, "ann@example.com", "pw123456"); err != nil {
			t.Fatalf("SignUp()でエラーが発生: %v", err)
		}
		if _, _, err := b.SignInWithPassword(ctx, "ann@example.com", "wrong"); !errors.Is(err, backend.ErrInvalidCredentials) {
			t.Errorf("誤ったパスワード: ErrInvalidCredentialsが返るべき: %v", err)
		}
		if _, _, err := b.SignInWithPassword(ctx, "nobody@example.com", "pw123456"); !errors.Is(err, backend.ErrInvalidCredentials) {
			t.Errorf("未登録: ErrInvalidCredentialsが返るべき: %v", err)
		}
	})

	t.Run("サインアウトしたトークンは再度サインアウトできないこと", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		ctx := context.Background()

		if _, err := b.SignUp(ctx, "ann@example.com", "pw"); err != nil {
			t.Fatalf("SignUp()でエラーが発生: %v", err)
		}
		_, session, err := b.SignInWithPassword(ctx, "ann@example.com", "pw")
		if err != nil {
			t.Fatalf("SignInWithPassword()でエラーが発生: %v", err)
		}
		if err := b.SignOut(ctx, session.AccessToken); err != nil {
			t.Fatalf("SignOut()でエラーが発生: %v", err)
		}
		if err := b.SignOut(ctx, session.AccessToken); !errors.Is(err, backend.ErrInvalidToken) {
			t.Errorf("ErrInvalidTokenが返るべき: %v", err)
		}
	})

	t.Run("署名が不正なトークンはErrInvalidTokenになること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		if err := b.SignOut(context.Background(), "not-a-jwt"); !errors.Is(err, backend.ErrInvalidToken) {
			t.Errorf("ErrInvalidTokenが返るべき: %v", err)
		}
	})

	t.Run("期限切れのトークンはErrInvalidTokenになること", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
		b := newTestBackend(t, WithClock(clock.Now), WithTokenTTL(time.Minute))
		ctx := context.Background()

		if _, err := b.SignUp(ctx, "ann@example.com", "pw"); err != nil {
			t.Fatalf("SignUp()でエラーが発生: %v", err)
		}
		_, session, err := b.SignInWithPassword(ctx, "ann@example.com", "pw")
		if err != nil {
			t.Fatalf("SignInWithPassword()でエラーが発生: %v", err)
		}

		clock.mu.Lock()
		clock.now = clock.now.Add(2 * time.Minute)
		clock.mu.Unlock()

		if err := b.SignOut(ctx, session.AccessToken); !errors.Is(err, backend.ErrInvalidToken) {
			t.Errorf("ErrInvalidTokenが返るべき: %v", err)
		}
	})
}

// TestProfiles はプロフィールの保存と取得を検証する。
func TestProfiles(t *testing.T) {
	t.Parallel()

	t.Run("作成したプロフィールを取得できること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		ctx := context.Background()

		created, err := b.CreateProfile(ctx, model.NewProfile{ID: "p1", Name: "Ann", Role: model.RoleMentor, Expertise: "Go"})
		if err != nil {
			t.Fatalf("CreateProfile()でエラーが発生: %v", err)
		}
		if created.CreatedAt.IsZero() {
			t.Error("CreatedAtが設定されていない")
		}
		got, err := b.GetProfile(ctx, "p1")
		if err != nil {
			t.Fatalf("GetProfile()でエラーが発生: %v", err)
		}
		if got.Name != "Ann" || got.Role != model.RoleMentor || got.Expertise != "Go" || got.Bio != "" {
			t.Errorf("profile = %+v", got)
		}
	})

	t.Run("存在しないIDはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		if _, err := b.GetProfile(context.Background(), "missing"); !errors.Is(err, backend.ErrNotFound) {
			t.Errorf("ErrNotFoundが返るべき: %v", err)
		}
	})

	t.Run("ロールで絞り込めること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		ctx := context.Background()
		for _, p := range []model.NewProfile{
			{ID: "m1", Name: "Ann", Role: model.RoleMentor},
			{ID: "e1", Name: "Eve", Role: model.RoleMentee},
			{ID: "m2", Name: "Bob", Role: model.RoleMentor},
		} {
			if _, err := b.CreateProfile(ctx, p); err != nil {
				t.Fatalf("CreateProfile()でエラーが発生: %v", err)
			}
		}

		mentors, err := b.ListProfilesByRole(ctx, model.RoleMentor)
		if err != nil {
			t.Fatalf("ListProfilesByRole()でエラーが発生: %v", err)
		}
		if len(mentors) != 2 {
			t.Fatalf("件数 = %d, want 2", len(mentors))
		}
		for _, m := range mentors {
			if m.Role != model.RoleMentor {
				t.Errorf("メンター以外が含まれている: %+v", m)
			}
		}
	})

	t.Run("該当なしの一覧は空スライスであること", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		mentors, err := b.ListProfilesByRole(context.Background(), model.RoleMentor)
		if err != nil {
			t.Fatalf("ListProfilesByRole()でエラーが発生: %v", err)
		}
		if mentors == nil || len(mentors) != 0 {
			t.Errorf("mentors = %#v, want empty slice", mentors)
		}
	})
}

// TestConnections は接続の保存とor条件での取得を検証する。
func TestConnections(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	ctx := context.Background()

	rows := []model.NewConnection{
		{MentorID: "x", MenteeID: "a", Status: model.ConnectionStatusPending},
		{MentorID: "b", MenteeID: "x", Status: model.ConnectionStatusPending},
		{MentorID: "b", MenteeID: "c", Status: model.ConnectionStatusPending},
	}
	for _, r := range rows {
		if _, err := b.CreateConnection(ctx, r); err != nil {
			t.Fatalf("CreateConnection()でエラーが発生: %v", err)
		}
	}

	conns, err := b.ListConnections(ctx, "x")
	if err != nil {
		t.Fatalf("ListConnections()でエラーが発生: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("件数 = %d, want 2", len(conns))
	}
	for _, c := range conns {
		if c.MentorID != "x" && c.MenteeID != "x" {
			t.Errorf("xを含まない接続が返った: %+v", c)
		}
		if c.ID == "" || c.Status != model.ConnectionStatusPending {
			t.Errorf("conn = %+v", c)
		}
	}
}

// TestMessages はメッセージの双方向取得と並び順を検証する。
func TestMessages(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	b := newTestBackend(t, WithClock(clock.Now))
	ctx := context.Background()

	sent := []model.NewMessage{
		{SenderID: "x", ReceiverID: "y", Content: "1"},
		{SenderID: "y", ReceiverID: "x", Content: "2"},
		{SenderID: "y", ReceiverID: "z", Content: "other"},
		{SenderID: "x", ReceiverID: "z", Content: "3"},
	}
	for _, m := range sent {
		if _, err := b.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage()でエラーが発生: %v", err)
		}
	}

	msgs, err := b.ListMessages(ctx, "x")
	if err != nil {
		t.Fatalf("ListMessages()でエラーが発生: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("件数 = %d, want 3", len(msgs))
	}
	for i, want := range []string{"1", "2", "3"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d].Content = %q, want %q", i, msgs[i].Content, want)
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt.Time) {
			t.Errorf("作成日時の昇順になっていない: %v < %v", msgs[i].CreatedAt, msgs[i-1].CreatedAt)
		}
	}
}

// TestNew は生成時の検証を確認する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("署名鍵が空ならエラーになること", func(t *testing.T) {
		t.Parallel()

		db, err := database.Open(context.Background(), database.MemoryPath)
		if err != nil {
			t.Fatalf("インメモリDB接続に失敗: %v", err)
		}
		defer db.Close()

		if _, err := New(context.Background(), db, ""); err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
	})
}
