package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dimiximid/mentoring-plat/internal/backend"
	"github.com/dimiximid/mentoring-plat/internal/metrics"
	"github.com/dimiximid/mentoring-plat/internal/session"
	"github.com/dimiximid/mentoring-plat/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 10 * time.Second
	// sessionPurgeInterval は期限切れセッションを掃除する間隔。
	sessionPurgeInterval = 10 * time.Minute
)

// Options はサーバーの動作設定。
type Options struct {
	// Port はリッスンポート。
	Port string
	// CookieName はセッションCookieの名前。
	CookieName string
	// CookieSecure はCookieにSecureとSameSite=Noneを付けるかどうか。
	CookieSecure bool
	// CORSOrigins はクロスオリジンアクセスを許可するオリジン。
	CORSOrigins []string
	// TrustedProxies はX-Forwarded-Forを信頼するプロキシのIPまたはCIDR。
	// 空ならヘッダーを無視し、接続元アドレスをクライアントIPとする。
	TrustedProxies []string
	// AuthRatePerMinute は登録・ログインのクライアントIPごとの上限。
	AuthRatePerMinute int
	// Logger はリクエストログの出力先。nilならslog.Default()。
	Logger *slog.Logger
}

// Deps はサーバーが利用する外部依存。
type Deps struct {
	// Backend はマネージドバックエンド。
	Backend backend.Backend
	// Sessions はセッションマネージャー。
	Sessions *session.Manager
	// Registry はメトリクスの登録先。nilなら新しいレジストリを作成する。
	Registry *prometheus.Registry
}

// Server はゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// backend は計測付きのマネージドバックエンド。
	backend backend.Backend
	// sessions はログインセッションの管理。
	sessions *session.Manager
	// cookieName はセッションCookieの名前。
	cookieName string
	// cookieSecure はCookieのSecure属性。
	cookieSecure bool
	// authLimiter は登録・ログインのレート制限。
	authLimiter *middleware.RateLimiter
	// registry は/metricsで公開するレジストリ。
	registry *prometheus.Registry
	// closers はClose時に閉じるリソース。
	closers []io.Closer
}

// New は依存を受け取ってサーバーを生成する。
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Backend == nil {
		return nil, errors.New("バックエンドが指定されていない")
	}
	if deps.Sessions == nil {
		return nil, errors.New("セッションマネージャーが指定されていない")
	}
	if opts.Port == "" {
		opts.Port = "5000"
	}
	if opts.CookieName == "" {
		opts.CookieName = "mentoring_session"
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	collector := metrics.NewCollector(registry)
	limiterCfg := middleware.PerMinute(opts.AuthRatePerMinute)
	limiterCfg.OnLimited = collector.RecordRateLimited
	limiterCfg.Reject = rejectRateLimited

	sessions := deps.Sessions
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	router.Use(collector.Middleware())
	router.Use(middleware.Logging(opts.Logger))
	router.Use(middleware.Recovery(opts.Logger))
	router.Use(middleware.CORS(opts.CORSOrigins))
	router.Use(middleware.LoadSession(sessionResolver{manager: sessions}, opts.CookieName))

	s := &Server{
		router:       router,
		port:         opts.Port,
		backend:      backend.Instrument(deps.Backend, collector),
		sessions:     sessions,
		cookieName:   opts.CookieName,
		cookieSecure: opts.CookieSecure,
		authLimiter:  middleware.NewRateLimiter(limiterCfg),
		registry:     registry,
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth())

		// 認証（レート制限あり）
		api.POST("/register", s.authLimiter.Middleware(), s.handleRegister())
		api.POST("/login", s.authLimiter.Middleware(), s.handleLogin())
		api.POST("/logout", s.handleLogout())

		// 公開プロフィール
		api.GET("/profile/:user_id", s.handleGetProfile())
		api.GET("/mentors", s.handleListMentors())
	}

	// セッション必須のエンドポイント
	authed := api.Group("")
	authed.Use(middleware.RequireSession())
	{
		authed.POST("/connections", s.handleCreateConnection())
		authed.GET("/connections/:user_id", s.handleListConnections())
		authed.POST("/messages", s.handleSendMessage())
		authed.GET("/messages/:user_id", s.handleListMessages())
	}

	s.router.GET("/metrics", gin.WrapH(metrics.Handler(s.registry)))
}

// handleHealth はヘルスチェックのハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Mentoring platform API is running!",
		})
	}
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go s.sessions.RunPurger(purgeCtx, sessionPurgeInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// Close はバックグラウンド処理を止め、保持しているリソースを閉じる。
func (s *Server) Close() error {
	s.authLimiter.Stop()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sessionResolver はセッションマネージャーをミドルウェアのリゾルバーに適合させる。
type sessionResolver struct {
	manager *session.Manager
}

func (r sessionResolver) ResolveSession(ctx context.Context, token string) (middleware.Session, bool, error) {
	rec, ok, err := r.manager.Resolve(ctx, token)
	if err != nil || !ok {
		return middleware.Session{}, false, err
	}
	return middleware.Session{
		ID:          rec.ID,
		UserID:      rec.UserID,
		AccessToken: rec.AccessToken,
	}, true, nil
}
