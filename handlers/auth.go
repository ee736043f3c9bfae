package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/config"
	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/identity"
	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/sessions"
	"github.com/Noel-Mtf/yesshare/internal/tokens"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/Noel-Mtf/yesshare/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRequest creates an account with the identity provider.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest signs in with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	provider    identity.Provider
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	blacklist   *sessions.Blacklist
	verifier    *tokens.Verifier
}

func NewAuthHandler(cfg *config.Config, p identity.Provider, u *users.Service, s *sessions.Service, bl *sessions.Blacklist) *AuthHandler {
	return &AuthHandler{cfg: cfg, provider: p, usersSvc: u, sessionsSvc: s, blacklist: bl, verifier: tokens.NewVerifier(cfg.JWT.Secret)}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/register", h.SignUp)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

func (h *AuthHandler) accessTTL() time.Duration {
	if h.cfg.JWT.AccessTokenTTL > 0 {
		return h.cfg.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}

func (h *AuthHandler) refreshTTL() time.Duration {
	if h.cfg.JWT.RefreshTokenTTL > 0 {
		return h.cfg.JWT.RefreshTokenTTL
	}
	return 7 * 24 * time.Hour
}

// SignUp creates the account, writes its profile and signs it in.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	uid, err := h.provider.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.usersSvc.Register(c.Request.Context(), uid, req.Username, req.Email); err != nil {
		respondError(c, err)
		return
	}
	h.signIn(c, http.StatusCreated, req.Email, req.Password)
}

// Login authenticates with the identity provider and issues service tokens.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.signIn(c, http.StatusOK, req.Email, req.Password)
}

func (h *AuthHandler) signIn(c *gin.Context, status int, email, password string) {
	ctx := c.Request.Context()
	id, err := h.provider.Login(ctx, email, password)
	if err != nil {
		respondError(c, err)
		return
	}
	claims := id.Claims
	if claims == nil {
		claims = map[string]interface{}{"sub": id.UID, "email": id.Email, "preferred_username": id.Username}
	}
	u, err := h.usersSvc.EnsureFromClaims(ctx, claims)
	if err != nil {
		respondError(c, err)
		return
	}
	if u == nil {
		respondError(c, failure.Newf(failure.KindIdentity, "auth.Login", "identity has no subject"))
		return
	}
	rft, err := h.sessionsSvc.CreateSession(ctx, u.UID, id.RefreshToken, h.refreshTTL())
	if err != nil {
		respondError(c, failure.E(failure.KindStore, "auth.Login", err))
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.accessTTL())
	if err != nil {
		respondError(c, failure.E(failure.KindOther, "auth.Login", err))
		return
	}
	if st := currentViewer(c); st != nil {
		st.SetUser(u)
	}
	c.JSON(status, gin.H{"accessToken": access, "refreshToken": rft, "user": u, "expiresIn": int(h.accessTTL().Seconds())})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	sess, err := h.sessionsSvc.ValidateRefresh(ctx, req.RefreshToken)
	if err != nil {
		respondError(c, failure.E(failure.KindStore, "auth.Refresh", err))
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token", "kind": failure.KindUnauthenticated.String()})
		return
	}
	u, err := h.usersSvc.Get(ctx, sess.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	if u == nil {
		u = &models.User{UID: sess.UID}
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.accessTTL())
	if err != nil {
		respondError(c, failure.E(failure.KindOther, "auth.Refresh", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "expires_in": int(h.accessTTL().Seconds())})
}

// Logout ends the refresh session and the provider session, revokes the
// presented access token and signs the viewer out.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if raw, ok := c.Get(middleware.TokenKey); ok {
		if err := h.revoke(ctx, raw.(string)); err != nil {
			respondError(c, failure.E(failure.KindStore, "auth.Logout", err))
			return
		}
	}
	sess, err := h.sessionsSvc.DeleteRefresh(ctx, req.RefreshToken)
	if err != nil {
		respondError(c, failure.E(failure.KindStore, "auth.Logout", err))
		return
	}
	if sess != nil && sess.ProviderRefresh != "" {
		if err := h.provider.Logout(ctx, sess.ProviderRefresh); err != nil {
			logger.Warnf("logout: provider session of %s: %v", sess.UID, err)
		}
	}
	if st := currentViewer(c); st != nil {
		st.SetUser(nil)
		st.SetDraft(nil)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) revoke(ctx context.Context, raw string) error {
	exp, err := h.verifier.ExpiresAt(raw)
	if err != nil {
		return nil
	}
	return h.blacklist.Revoke(ctx, raw, time.Until(exp))
}
