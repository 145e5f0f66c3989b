// Package config は環境変数からゲートウェイの設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	// BackendSupabase はSupabaseのREST APIをバックエンドに使う。
	BackendSupabase = "supabase"
	// BackendLocal はローカルのSQLiteをバックエンドに使う。
	BackendLocal = "local"

	// SessionStoreSQLite はSQLiteにセッションを保存する。
	SessionStoreSQLite = "sqlite"
	// SessionStoreRedis はRedisにセッションを保存する。
	SessionStoreRedis = "redis"

	// DefaultSecretKey は開発用の署名鍵。本番では必ず上書きする。
	DefaultSecretKey = "dev-secret-key"
)

// Config はゲートウェイの設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	Port string `validate:"required,numeric"`

	// Logging
	LogLevel string

	// Backend
	Backend         string        `validate:"oneof=supabase local"`
	SupabaseURL     string        `validate:"required_if=Backend supabase,omitempty,url"`
	SupabaseKey     string        `validate:"required_if=Backend supabase"`
	LocalDBPath     string        `validate:"required_if=Backend local"`
	UpstreamTimeout time.Duration `validate:"gt=0"`

	// Session
	SecretKey         string        `validate:"required"`
	SessionStore      string        `validate:"oneof=sqlite redis"`
	SessionDBPath     string        `validate:"required_if=SessionStore sqlite"`
	SessionTTL        time.Duration `validate:"gt=0"`
	SessionCookieName string        `validate:"required"`

	// Cookie
	SessionCookieSecure bool

	// Redis
	RedisAddr        string        `validate:"required_if=SessionStore redis"`
	RedisDB          int           `validate:"gte=0"`
	RedisPassword    string
	RedisKeyPrefix   string        `validate:"required"`
	RedisDialTimeout time.Duration `validate:"gt=0"`

	// CORS
	CORSOrigins []string

	// Proxy
	TrustedProxies []string `validate:"dive,cidr|ip"`

	// Rate Limit
	AuthRatePerMinute int `validate:"gt=0"`
}

// LoadDotEnv は指定された.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%sの読み込みに失敗: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合や必須の環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvString("PORT", "5000"),
		LogLevel:          getEnvString("LOG_LEVEL", "info"),
		Backend:           strings.ToLower(getEnvString("BACKEND", BackendSupabase)),
		SupabaseURL:       strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseKey:       strings.TrimSpace(os.Getenv("SUPABASE_KEY")),
		LocalDBPath:       getEnvString("LOCAL_DB_PATH", "./data/mentoring.db"),
		SecretKey:         getEnvString("SECRET_KEY", DefaultSecretKey),
		SessionStore:      strings.ToLower(getEnvString("SESSION_STORE", SessionStoreSQLite)),
		SessionDBPath:     getEnvString("SESSION_DB_PATH", "./data/sessions.db"),
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		SessionCookieName: getEnvString("SESSION_COOKIE_NAME", "mentoring_session"),
		CORSOrigins:       splitList(getEnvString("CORS_ORIGINS", "http://localhost:3000,https://*.vercel.app")),
		TrustedProxies:    splitList(os.Getenv("TRUSTED_PROXIES")),
		RedisKeyPrefix:    getEnvString("REDIS_KEY_PREFIX", "mentoring:session:"),
	}

	var errs []error
	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.AuthRatePerMinute, err = getEnvInt("AUTH_RATE_PER_MINUTE", 30); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.UpstreamTimeout, err = getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.RedisDialTimeout, err = getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	// 別サイトのフロントエンドにCookieを送らせるにはSecureとSameSite=Noneが必要
	if cfg.SessionCookieSecure, err = getEnvBool("SESSION_COOKIE_SECURE", hasCrossSiteOrigin(cfg.CORSOrigins)); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, describeValidation(err)
	}

	if cfg.SecretKey == DefaultSecretKey {
		slog.Warn("SECRET_KEY is not set; using the development default")
	}

	return cfg, nil
}

// describeValidation は検証エラーをフィールド名の一覧にまとめる。
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("設定の検証に失敗: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %q", key, v)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %q", key, v)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %q", key, v)
	}
	return d, nil
}

// hasCrossSiteOrigin はlocalhost以外のオリジンが含まれるか判定する。
func hasCrossSiteOrigin(origins []string) bool {
	for _, origin := range origins {
		_, host, _ := strings.Cut(origin, "://")
		if strings.HasPrefix(host, "[") {
			host, _, _ = strings.Cut(host, "]")
			host += "]"
		} else {
			host, _, _ = strings.Cut(host, ":")
		}
		if host != "localhost" && host != "127.0.0.1" && host != "[::1]" {
			return true
		}
	}
	return false
}

// splitList はカンマ区切りの値を空要素を除いて分割する。
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
