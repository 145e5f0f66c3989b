package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// originPattern は許可オリジンの1エントリ。
// "https://*.vercel.app" のように先頭ラベルのみワイルドカードにできる。
type originPattern struct {
	exact  string
	prefix string
	suffix string
}

func parseOriginPattern(raw string) originPattern {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	scheme, host, ok := strings.Cut(raw, "://")
	if ok && strings.HasPrefix(host, "*.") {
		return originPattern{prefix: scheme + "://", suffix: host[1:]}
	}
	return originPattern{exact: raw}
}

func (p originPattern) match(origin string) bool {
	if p.exact != "" {
		return origin == p.exact
	}
	if len(origin) <= len(p.prefix)+len(p.suffix) {
		return false
	}
	if !strings.HasPrefix(origin, p.prefix) || !strings.HasSuffix(origin, p.suffix) {
		return false
	}
	label := origin[len(p.prefix) : len(origin)-len(p.suffix)]
	return !strings.ContainsAny(label, "./:")
}

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// セッションCookieを送れるようにAllow-Credentialsを付け、オリジンはリクエストの値をそのまま返す。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	patterns := make([]originPattern, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if strings.TrimSpace(o) == "" {
			continue
		}
		patterns = append(patterns, parseOriginPattern(o))
	}

	allowed := func(origin string) bool {
		for _, p := range patterns {
			if p.match(origin) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Writer.Header().Add("Vary", "Origin")
		}
		if origin != "" && allowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
