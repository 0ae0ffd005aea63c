// Package auth is gateway-delegated authentication for the control plane's
// admin surface: provider health overrides, experiment and flag CRUD.
// Grounded on the teacher's JWTMiddleware header-trust model (a frontend
// gateway verifies the JWT and forwards identity via headers), adapted from
// net/http middleware to a gin.HandlerFunc and from tenant scoping to
// operator scoping.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type contextKey string

const (
	OperatorIDKey contextKey = "operator_id"
	ScopesKey     contextKey = "scopes"
)

// Config controls how the admin-auth middleware trusts gateway headers.
type Config struct {
	Enabled          bool
	RequireVerified  bool
	OperatorIDHeader string
	ScopesHeader     string
	VerifiedHeader   string
	RequiredScope    string
}

// DefaultConfig returns production defaults: trust nothing unless the
// gateway explicitly marked the request verified, and require the "admin"
// scope for every guarded route.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		RequireVerified:  true,
		OperatorIDHeader: "X-Operator-ID",
		ScopesHeader:     "X-Scopes",
		VerifiedHeader:   "X-Auth-Verified",
		RequiredScope:    "admin",
	}
}

// Middleware validates gateway-verified identity headers and enforces
// RequiredScope. It never itself parses or verifies a JWT: that is the
// gateway's job, matching the teacher's header-trust boundary.
func Middleware(cfg *Config) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		if cfg.RequireVerified && c.GetHeader(cfg.VerifiedHeader) != "true" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "admin endpoint requires gateway-verified identity",
				"kind":  "Unauthorized",
			})
			return
		}

		operatorID := c.GetHeader(cfg.OperatorIDHeader)
		scopes := splitScopes(c.GetHeader(cfg.ScopesHeader))

		if cfg.RequiredScope != "" && !hasScope(scopes, cfg.RequiredScope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "missing required scope: " + cfg.RequiredScope,
				"kind":  "Forbidden",
			})
			return
		}

		ctx := context.WithValue(c.Request.Context(), OperatorIDKey, operatorID)
		ctx = context.WithValue(ctx, ScopesKey, scopes)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func splitScopes(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}

// OperatorID extracts the gateway-forwarded operator identity, if any.
func OperatorID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(OperatorIDKey).(string)
	return v, ok
}
