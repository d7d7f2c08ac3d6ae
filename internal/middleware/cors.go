package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/photogate/backend/internal/config"
)

// CORS restricts cross-origin access to the configured allowlist. Origins are
// compared after trimming whitespace and any trailing slash; in development
// every origin is admitted so local frontends need no configuration. OPTIONS
// preflights are answered here and never reach a handler.
func CORS(cfg *config.Config) gin.HandlerFunc {
	allowlist := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowlist[normalizeOrigin(origin)] = struct{}{}
	}
	allowHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	allowMethods := strings.Join(cfg.AllowedMethods, ", ")
	dev := cfg.Env == "development"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Max-Age", "86400")

		if origin := normalizeOrigin(c.Request.Header.Get("Origin")); origin != "" {
			if _, ok := allowlist[origin]; ok || dev {
				h.Set("Access-Control-Allow-Origin", origin)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}
