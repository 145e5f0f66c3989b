package backend

import (
	"context"
	"errors"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/model"
)

// Outcome はバックエンド呼び出しの結果区分。
type Outcome string

const (
	// OutcomeOK は成功。
	OutcomeOK Outcome = "ok"
	// OutcomeNotFound は対象なし。
	OutcomeNotFound Outcome = "not_found"
	// OutcomeRejected は認証情報やトークンの拒否、一意制約違反。
	OutcomeRejected Outcome = "rejected"
	// OutcomeError はそれ以外の失敗。
	OutcomeError Outcome = "error"
)

// Recorder はバックエンド呼び出しの計測結果を受け取る。
type Recorder interface {
	ObserveBackendCall(operation string, outcome Outcome, duration time.Duration)
}

// OutcomeOf はエラーを結果区分に変換する。
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrConflict):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

// instrumented は各呼び出しの所要時間と結果をRecorderに記録するBackend。
type instrumented struct {
	next     Backend
	recorder Recorder
}

// Instrument はbを計測付きBackendで包む。recorderがnilならbをそのまま返す。
func Instrument(b Backend, recorder Recorder) Backend {
	if recorder == nil {
		return b
	}
	return &instrumented{next: b, recorder: recorder}
}

func (i *instrumented) observe(operation string, start time.Time, err error) {
	i.recorder.ObserveBackendCall(operation, OutcomeOf(err), time.Since(start))
}

func (i *instrumented) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	start := time.Now()
	identity, err := i.next.SignUp(ctx, email, password)
	i.observe("sign_up", start, err)
	return identity, err
}

func (i *instrumented) SignInWithPassword(ctx context.Context, email, password string) (model.Identity, model.AuthSession, error) {
	start := time.Now()
	identity, session, err := i.next.SignInWithPassword(ctx, email, password)
	i.observe("sign_in", start, err)
	return identity, session, err
}

func (i *instrumented) SignOut(ctx context.Context, accessToken string) error {
	start := time.Now()
	err := i.next.SignOut(ctx, accessToken)
	i.observe("sign_out", start, err)
	return err
}

func (i *instrumented) CreateProfile(ctx context.Context, p model.NewProfile) (model.Profile, error) {
	start := time.Now()
	profile, err := i.next.CreateProfile(ctx, p)
	i.observe("create_profile", start, err)
	return profile, err
}

func (i *instrumented) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	start := time.Now()
	profile, err := i.next.GetProfile(ctx, id)
	i.observe("get_profile", start, err)
	return profile, err
}

func (i *instrumented) ListProfilesByRole(ctx context.Context, role model.Role) ([]model.Profile, error) {
	start := time.Now()
	profiles, err := i.next.ListProfilesByRole(ctx, role)
	i.observe("list_profiles", start, err)
	return profiles, err
}

func (i *instrumented) CreateConnection(ctx context.Context, c model.NewConnection) (model.Connection, error) {
	start := time.Now()
	conn, err := i.next.CreateConnection(ctx, c)
	i.observe("create_connection", start, err)
	return conn, err
}

func (i *instrumented) ListConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	start := time.Now()
	conns, err := i.next.ListConnections(ctx, userID)
	i.observe("list_connections", start, err)
	return conns, err
}

func (i *instrumented) CreateMessage(ctx context.Context, m model.NewMessage) (model.Message, error) {
	start := time.Now()
	msg, err := i.next.CreateMessage(ctx, m)
	i.observe("create_message", start, err)
	return msg, err
}

func (i *instrumented) ListMessages(ctx context.Context, userID string) ([]model.Message, error) {
	start := time.Now()
	msgs, err := i.next.ListMessages(ctx, userID)
	i.observe("list_messages", start, err)
	return msgs, err
}
