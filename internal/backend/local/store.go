package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/google/uuid"
)

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var p model.Profile
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Expertise, &p.Bio, &createdAt); err != nil {
		return model.Profile{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return model.Profile{}, err
	}
	p.CreatedAt = model.NewTimestamp(t)
	return p, nil
}

func scanConnection(row rowScanner) (model.Connection, error) {
	var c model.Connection
	var createdAt string
	if err := row.Scan(&c.ID, &c.MentorID, &c.MenteeID, &c.Status, &createdAt); err != nil {
		return model.Connection{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return model.Connection{}, err
	}
	c.CreatedAt = model.NewTimestamp(t)
	return c, nil
}

func scanMessage(row rowScanner) (model.Message, error) {
	var m model.Message
	var createdAt string
	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &createdAt); err != nil {
		return model.Message{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return model.Message{}, err
	}
	m.CreatedAt = model.NewTimestamp(t)
	return m, nil
}

// CreateProfile はプロフィールを挿入する。同じIDが存在すれば ErrConflict。
func (b *Backend) CreateProfile(ctx context.Context, p model.NewProfile) (model.Profile, error) {
	createdAt := b.timestamp()
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, role, expertise, bio, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Role), p.Expertise, p.Bio, createdAt)
	if isUniqueViolation(err) {
		return model.Profile{}, fmt.Errorf("insert profile %s: %w", p.ID, backend.ErrConflict)
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("プロフィールの挿入に失敗: %w", err)
	}
	return b.GetProfile(ctx, p.ID)
}

// GetProfile はIDでプロフィールを取得する。
func (b *Backend) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	p, err := scanProfile(b.db.QueryRowContext(ctx,
		`SELECT id, name, role, expertise, bio, created_at FROM profiles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, backend.ErrNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("プロフィールの取得に失敗: %w", err)
	}
	return p, nil
}

// ListProfilesByRole は指定ロールのプロフィールを作成順に取得する。
func (b *Backend) ListProfilesByRole(ctx context.Context, role model.Role) ([]model.Profile, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, name, role, expertise, bio, created_at FROM profiles WHERE role = ? ORDER BY created_at, id`,
		string(role))
	if err != nil {
		return nil, fmt.Errorf("プロフィール一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	profiles := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("プロフィールの読み取りに失敗: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CreateConnection は接続を挿入する。
func (b *Backend) CreateConnection(ctx context.Context, c model.NewConnection) (model.Connection, error) {
	id := uuid.New().String()
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO connections (id, mentor_id, mentee_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, c.MentorID, c.MenteeID, string(c.Status), b.timestamp()); err != nil {
		return model.Connection{}, fmt.Errorf("接続の挿入に失敗: %w", err)
	}

	conn, err := scanConnection(b.db.QueryRowContext(ctx,
		`SELECT id, mentor_id, mentee_id, status, created_at FROM connections WHERE id = ?`, id))
	if err != nil {
		return model.Connection{}, fmt.Errorf("挿入した接続の取得に失敗: %w", err)
	}
	return conn, nil
}

// ListConnections はユーザーがメンターまたはメンティーである接続を取得する。
func (b *Backend) ListConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, mentor_id, mentee_id, status, created_at FROM connections
		 WHERE mentor_id = ? OR mentee_id = ? ORDER BY seq`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("接続一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	conns := []model.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("接続の読み取りに失敗: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// CreateMessage はメッセージを挿入する。
func (b *Backend) CreateMessage(ctx context.Context, m model.NewMessage) (model.Message, error) {
	id := uuid.New().String()
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, m.SenderID, m.ReceiverID, m.Content, b.timestamp()); err != nil {
		return model.Message{}, fmt.Errorf("メッセージの挿入に失敗: %w", err)
	}

	msg, err := scanMessage(b.db.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, content, created_at FROM messages WHERE id = ?`, id))
	if err != nil {
		return model.Message{}, fmt.Errorf("挿入したメッセージの取得に失敗: %w", err)
	}
	return msg, nil
}

// ListMessages はユーザーが送信者または受信者であるメッセージを作成日時の昇順で取得する。
func (b *Backend) ListMessages(ctx context.Context, userID string) ([]model.Message, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, created_at FROM messages
		 WHERE sender_id = ? OR receiver_id = ? ORDER BY created_at ASC, seq ASC`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("メッセージの読み取りに失敗: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
