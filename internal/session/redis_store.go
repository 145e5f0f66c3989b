package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// defaultKeyPrefix はRedisキーの既定のプレフィックス。
const defaultKeyPrefix = "mentoring:session:"

// RedisConfig はRedisセッションストアの接続設定。
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// DialTimeout は0なら go-redis の既定値。
	DialTimeout time.Duration
}

// RedisStore はRedisに保存するセッションストア。
// 有効期限はキーのTTLで管理するため PurgeExpired は何もしない。
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore はRedisセッションストアを生成する。接続確認はPingで行う。
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{addr},
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		MaxRetries:  -1,
	})
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Save はセッションを有効期限までのTTL付きで保存する。
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, rec.ID)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.key(rec.ID), payload, ttl).Err()
}

// Get はIDでセッションを取得する。
func (s *RedisStore) Get(ctx context.Context, id string) (Record, bool, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, false, fmt.Errorf("unmarshal session: %w", err)
	}
	return rec, true, nil
}

// Delete はセッションを削除する。
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// PurgeExpired はキーのTTLに任せるため0を返す。
func (s *RedisStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
