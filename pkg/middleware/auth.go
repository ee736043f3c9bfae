package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares.
const (
	ClaimsKey   = "claims"
	TokenKey    = "token"
	RejectedKey = "auth_rejected"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Revocations reports access tokens revoked before their expiry.
type Revocations interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type authError struct {
	status int
	body   gin.H
}

func bearer(c *gin.Context) (string, *authError) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", &authError{http.StatusUnauthorized, gin.H{"error": "missing Authorization header"}}
	}
	scheme, token, ok := strings.Cut(auth, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", &authError{http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"}}
	}
	return token, nil
}

func authenticate(c *gin.Context, ver Verifier, rev Revocations) *authError {
	token, aerr := bearer(c)
	if aerr == nil {
		aerr = check(c, ver, rev, token)
	}
	if aerr != nil && c.GetHeader("Authorization") != "" {
		c.Set(RejectedKey, true)
	}
	return aerr
}

func check(c *gin.Context, ver Verifier, rev Revocations, token string) *authError {
	if rev != nil {
		revoked, err := rev.IsRevoked(c.Request.Context(), token)
		if err != nil {
			return &authError{http.StatusInternalServerError, gin.H{"error": "token check failed"}}
		}
		if revoked {
			return &authError{http.StatusUnauthorized, gin.H{"error": "token revoked"}}
		}
	}

	verified, err := ver.Verify(c.Request.Context(), token)
	if err != nil {
		return &authError{http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()}}
	}
	var claims map[string]interface{}
	if err := verified.Claims(&claims); err != nil {
		return &authError{http.StatusUnauthorized, gin.H{"error": "failed to parse claims"}}
	}
	c.Set(ClaimsKey, claims)
	c.Set(TokenKey, token)
	return nil
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using
// the provided verifier. rev may be nil.
func AuthMiddleware(ver Verifier, rev Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		if aerr := authenticate(c, ver, rev); aerr != nil {
			c.AbortWithStatusJSON(aerr.status, aerr.body)
			return
		}
		c.Next()
	}
}

// OptionalAuth lets anonymous requests through but answers 401 to a request
// whose Authorization header does not carry a valid, unrevoked bearer token.
func OptionalAuth(ver Verifier, rev Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if aerr := authenticate(c, ver, rev); aerr != nil {
				c.AbortWithStatusJSON(aerr.status, aerr.body)
				return
			}
		}
		c.Next()
	}
}

// LenientAuth sets claims for a valid bearer token and otherwise carries on
// without them, marking a bad token as rejected. Used on sign-in and refresh,
// where callers may still hold an expired token.
func LenientAuth(ver Verifier, rev Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			_ = authenticate(c, ver, rev)
		}
		c.Next()
	}
}

// Rejected reports whether the request presented a bearer token that failed
// verification or was revoked.
func Rejected(c *gin.Context) bool {
	return c.GetBool(RejectedKey)
}

// Subject returns the sub claim set by the auth middlewares, or "".
func Subject(c *gin.Context) string {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return ""
	}
	cm, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	sub, _ := cm["sub"].(string)
	return sub
}
