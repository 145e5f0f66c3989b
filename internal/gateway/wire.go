package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/backend/local"
	"github.com/dimiximid/mentoring-plat/internal/backend/supabase"
	"github.com/dimiximid/mentoring-plat/internal/config"
	"github.com/dimiximid/mentoring-plat/internal/database"
	"github.com/dimiximid/mentoring-plat/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// redisPingTimeout はRedis接続確認の待ち時間。
const redisPingTimeout = 5 * time.Second

// NewServer は設定からバックエンドとセッションストアを構築してサーバーを生成する。
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	var closers []io.Closer
	fail := func(err error) (*Server, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	b, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	store, closer, err := openSessionStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closer)

	sessions, err := session.NewManager(store, cfg.SecretKey, cfg.SessionTTL)
	if err != nil {
		return fail(err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := New(Options{
		Port:              cfg.Port,
		CookieName:        cfg.SessionCookieName,
		CookieSecure:      cfg.SessionCookieSecure,
		CORSOrigins:       cfg.CORSOrigins,
		TrustedProxies:    cfg.TrustedProxies,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		Logger:            logger,
	}, Deps{
		Backend:  b,
		Sessions: sessions,
		Registry: registry,
	})
	if err != nil {
		return fail(err)
	}
	s.closers = closers
	return s, nil
}

// openBackend は設定に応じたマネージドバックエンドを生成する。
// ローカルバックエンドの場合はデータベース接続をcloserとして返す。
func openBackend(ctx context.Context, cfg *config.Config) (backend.Backend, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		db, err := database.Open(ctx, cfg.LocalDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("ローカルバックエンドのDB接続に失敗: %w", err)
		}
		b, err := local.New(ctx, db, cfg.SecretKey)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ローカルバックエンドの初期化に失敗: %w", err)
		}
		slog.Info("using local backend", slog.String("path", cfg.LocalDBPath))
		return b, db, nil
	case config.BackendSupabase:
		slog.Info("using supabase backend", slog.String("url", cfg.SupabaseURL))
		return supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.UpstreamTimeout), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend: %q", cfg.Backend)
	}
}

// openSessionStore は設定に応じたセッションストアを生成する。
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, io.Closer, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		store, err := session.NewRedisStore(session.RedisConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			KeyPrefix:   cfg.RedisKeyPrefix,
			DialTimeout: cfg.RedisDialTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
		}
		slog.Info("using redis session store", slog.String("addr", cfg.RedisAddr))
		return store, store, nil
	case config.SessionStoreSQLite:
		db, err := database.Open(ctx, cfg.SessionDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("セッションDB接続に失敗: %w", err)
		}
		store, err := session.NewSQLiteStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		slog.Info("using sqlite session store", slog.String("path", cfg.SessionDBPath))
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store: %q", cfg.SessionStore)
	}
}
