// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides bearer-token authentication for the recruiter-facing API.
// Candidate-facing booking endpoints are deliberately left outside this
// middleware: possession of a scheduling-link token is their authorization.
//
// Behavior:
//   - When a JWT HMAC secret is configured, requests must carry
//     "Authorization: Bearer <jwt>". The token is verified (HMAC only) and the
//     "sub" and "tenant_id" claims are stored in the Gin context under the
//     "userID" and "tenantID" keys used by handlers and the rate limiter.
//   - When no secret is configured (local development), identity falls back to
//     the X-User-ID and X-Tenant-ID headers so the API stays exercisable
//     without an identity provider.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey   = "userID"
	tenantIDKey = "tenantID"
)

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	// JWTSecret is the HMAC signing secret. Empty disables verification and
	// enables the header fallback.
	JWTSecret string
	// Leeway tolerates small clock skew when validating exp/nbf. Defaults to
	// 5 seconds when zero.
	Leeway time.Duration
}

// Auth returns a Gin middleware that authenticates requests and populates the
// "userID" and "tenantID" context keys.
func Auth(opts AuthOptions) gin.HandlerFunc {
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = 5 * time.Second
	}

	return func(c *gin.Context) {
		if opts.JWTSecret == "" {
			// Dev fallback: trust identity headers.
			if v := c.GetHeader("X-User-ID"); v != "" {
				c.Set(userIDKey, v)
			}
			if v := c.GetHeader("X-Tenant-ID"); v != "" {
				c.Set(tenantIDKey, v)
			}
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			abortUnauthorized(c, "missing authorization")
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(opts.JWTSecret), nil
		}, jwt.WithLeeway(leeway))
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		if sub, ok := claims["sub"].(string); ok && sub != "" {
			c.Set(userIDKey, sub)
		}
		if tid, ok := claims["tenant_id"].(string); ok && tid != "" {
			c.Set(tenantIDKey, tid)
		}
		c.Next()
	}
}

// abortUnauthorized writes the standard error envelope for auth failures.
func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
