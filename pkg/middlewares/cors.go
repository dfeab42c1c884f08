package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// originAllowed reports whether origin is exactly one of the configured
// static origins, or matches a wildcard entry. An entry of exactly "*"
// matches anything. An entry containing one "*" is split into a prefix and
// suffix around it (e.g. "dob-edge*.pages.dev" -> prefix "dob-edge", suffix
// ".pages.dev") and matches any origin that starts with prefix, ends with
// suffix, and is long enough for the two not to overlap.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" {
			return true
		}
		if star := strings.IndexByte(a, '*'); star >= 0 {
			prefix, suffix := a[:star], a[star+1:]
			if len(origin) >= len(prefix)+len(suffix) &&
				strings.HasPrefix(origin, prefix) &&
				strings.HasSuffix(origin, suffix) {
				return true
			}
			continue
		}
		if a == origin {
			return true
		}
	}
	return false
}

// CORSMiddleware allows any origin matching one of allowed (exact match or
// a "prefix*suffix" wildcard pattern), reflecting it back on Access-Control-
// Allow-Origin rather than echoing a static value, since edge preview
// deployments each get a distinct subdomain.
func CORSMiddleware(allowed ...string) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		origin := gctx.Request.Header.Get("Origin")
		gctx.Writer.Header().Set("Vary", "Origin")

		if originAllowed(origin, allowed) {
			gctx.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		if gctx.Request.Method == "OPTIONS" {
			gctx.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			gctx.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			gctx.Writer.Header().Set("Access-Control-Max-Age", "86400")
			gctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		gctx.Next()
	}
}
