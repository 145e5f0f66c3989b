package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// configEnvKeys はLoadが参照する環境変数の一覧。
var configEnvKeys = []string{
	"PORT", "BACKEND", "SUPABASE_URL", "SUPABASE_KEY", "LOCAL_DB_PATH",
	"SECRET_KEY", "SESSION_STORE", "SESSION_DB_PATH", "REDIS_ADDR", "REDIS_PASSWORD",
	"REDIS_DB", "SESSION_TTL", "SESSION_COOKIE_NAME", "SESSION_COOKIE_SECURE",
	"CORS_ORIGINS", "UPSTREAM_TIMEOUT", "AUTH_RATE_PER_MINUTE", "TRUSTED_PROXIES",
	"REDIS_KEY_PREFIX", "REDIS_DIAL_TIMEOUT",
}

// clearEnv はテスト中だけ設定用の環境変数を空にする。
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

// setSupabaseEnv はSupabaseバックエンドの必須値を設定する。
func setSupabaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "service-key")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setSupabaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load()でエラーが発生: %v", err)
	}

	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want 5000", cfg.Port)
	}
	if cfg.Backend != BackendSupabase {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendSupabase)
	}
	if cfg.SecretKey != DefaultSecretKey {
		t.Errorf("SecretKey = %q, want %q", cfg.SecretKey, DefaultSecretKey)
	}
	if cfg.SessionStore != SessionStoreSQLite {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, SessionStoreSQLite)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.SessionCookieName != "mentoring_session" {
		t.Errorf("SessionCookieName = %q", cfg.SessionCookieName)
	}
	if !cfg.SessionCookieSecure {
		t.Error("既定のCORS許可リストに別サイトのオリジンがあるのにSessionCookieSecure = false")
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, want empty", cfg.TrustedProxies)
	}
	if cfg.RedisKeyPrefix != "mentoring:session:" || cfg.RedisDialTimeout != 5*time.Second {
		t.Errorf("redis = %q %v", cfg.RedisKeyPrefix, cfg.RedisDialTimeout)
	}
	if cfg.UpstreamTimeout != 30*time.Second {
		t.Errorf("UpstreamTimeout = %v, want 30s", cfg.UpstreamTimeout)
	}
	if cfg.AuthRatePerMinute != 30 {
		t.Errorf("AuthRatePerMinute = %d, want 30", cfg.AuthRatePerMinute)
	}
	wantOrigins := []string{"http://localhost:3000", "https://*.vercel.app"}
	if len(cfg.CORSOrigins) != len(wantOrigins) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.CORSOrigins, wantOrigins)
	}
	for i, o := range wantOrigins {
		if cfg.CORSOrigins[i] != o {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], o)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("BACKEND", "LOCAL")
	t.Setenv("LOCAL_DB_PATH", "/tmp/local.db")
	t.Setenv("SECRET_KEY", "prod-secret")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("CORS_ORIGINS", " https://a.example.com , ,https://b.example.com")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("AUTH_RATE_PER_MINUTE", "10")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")
	t.Setenv("REDIS_KEY_PREFIX", "app:sess:")
	t.Setenv("REDIS_DIAL_TIMEOUT", "1s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load()でエラーが発生: %v", err)
	}

	if cfg.Port != "8080" || cfg.Backend != BackendLocal || cfg.LocalDBPath != "/tmp/local.db" {
		t.Errorf("server/backend = %q %q %q", cfg.Port, cfg.Backend, cfg.LocalDBPath)
	}
	if cfg.SessionStore != SessionStoreRedis || cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("session store = %q %q %d", cfg.SessionStore, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.SessionTTL != 2*time.Hour || !cfg.SessionCookieSecure {
		t.Errorf("session = %v %v", cfg.SessionTTL, cfg.SessionCookieSecure)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.UpstreamTimeout != 5*time.Second || cfg.AuthRatePerMinute != 10 {
		t.Errorf("timeout/rate = %v %d", cfg.UpstreamTimeout, cfg.AuthRatePerMinute)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "192.168.1.1" {
		t.Errorf("TrustedProxies = %v", cfg.TrustedProxies)
	}
	if cfg.RedisKeyPrefix != "app:sess:" || cfg.RedisDialTimeout != time.Second {
		t.Errorf("redis = %q %v", cfg.RedisKeyPrefix, cfg.RedisDialTimeout)
	}
}

func TestLoad_CookieSecureDefault(t *testing.T) {
	tests := []struct {
		name    string
		origins string
		secure  string
		want    bool
	}{
		{name: "localhostのみならSecureにしない", origins: "http://localhost:3000,http://127.0.0.1:5173", want: false},
		{name: "IPv6のループバックのみならSecureにしない", origins: "http://[::1]:3000", want: false},
		{name: "別サイトのオリジンがあればSecureにする", origins: "http://localhost:3000,https://app.example.com", want: true},
		{name: "明示した値が優先されること", origins: "https://app.example.com", secure: "false", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BACKEND", "local")
			t.Setenv("CORS_ORIGINS", tt.origins)
			t.Setenv("SESSION_COOKIE_SECURE", tt.secure)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load()でエラーが発生: %v", err)
			}
			if cfg.SessionCookieSecure != tt.want {
				t.Errorf("SessionCookieSecure = %v, want %v", cfg.SessionCookieSecure, tt.want)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "Supabaseの設定が無い", env: map[string]string{}},
		{name: "Supabase URLが不正", env: map[string]string{"SUPABASE_URL": "not a url", "SUPABASE_KEY": "k"}},
		{name: "未知のバックエンド", env: map[string]string{"BACKEND": "firebase"}},
		{name: "未知のセッションストア", env: map[string]string{"BACKEND": "local", "SESSION_STORE": "memcached"}},
		{name: "RedisのアドレスがRedisストアで未設定", env: map[string]string{"BACKEND": "local", "SESSION_STORE": "redis"}},
		{name: "不正なTTL", env: map[string]string{"BACKEND": "local", "SESSION_TTL": "forever"}},
		{name: "0以下のTTL", env: map[string]string{"BACKEND": "local", "SESSION_TTL": "0s"}},
		{name: "不正なタイムアウト", env: map[string]string{"BACKEND": "local", "UPSTREAM_TIMEOUT": "soon"}},
		{name: "数値でないポート", env: map[string]string{"BACKEND": "local", "PORT": "http"}},
		{name: "数値でないレート", env: map[string]string{"BACKEND": "local", "AUTH_RATE_PER_MINUTE": "many"}},
		{name: "不正な真偽値", env: map[string]string{"BACKEND": "local", "SESSION_COOKIE_SECURE": "maybe"}},
		{name: "不正なプロキシ指定", env: map[string]string{"BACKEND": "local", "TRUSTED_PROXIES": "proxy.internal"}},
		{name: "不正なRedis接続タイムアウト", env: map[string]string{"BACKEND": "local", "REDIS_DIAL_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Fatal("Load()がエラーを返すべきだが、nilが返った")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("ファイルが無い場合は何もしないこと", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("LoadDotEnv()でエラーが発生: %v", err)
		}
	})

	t.Run("ファイルの値が環境変数に読み込まれ既存値は上書きされないこと", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		content := "MENTORING_TEST_DOTENV=from-file\nMENTORING_TEST_EXISTING=from-file\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("ファイル作成に失敗: %v", err)
		}
		t.Setenv("MENTORING_TEST_DOTENV", "")
		os.Unsetenv("MENTORING_TEST_DOTENV")
		t.Setenv("MENTORING_TEST_EXISTING", "from-env")

		if err := LoadDotEnv(path); err != nil {
			t.Fatalf("LoadDotEnv()でエラーが発生: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("MENTORING_TEST_DOTENV") })

		if got := os.Getenv("MENTORING_TEST_DOTENV"); got != "from-file" {
			t.Errorf("MENTORING_TEST_DOTENV = %q, want from-file", got)
		}
		if got := os.Getenv("MENTORING_TEST_EXISTING"); got != "from-env" {
			t.Errorf("MENTORING_TEST_EXISTING = %q, want from-env", got)
		}
	})
}
