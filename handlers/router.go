package handlers

import (
	"github.com/Noel-Mtf/yesshare/internal/channel"
	"github.com/Noel-Mtf/yesshare/internal/comments"
	"github.com/Noel-Mtf/yesshare/internal/config"
	"github.com/Noel-Mtf/yesshare/internal/pages"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	"github.com/Noel-Mtf/yesshare/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Deps are the services behind the HTTP surface. Auth and Verifier are
// optional: without them the service is read-only. Auth needs a Verifier.
type Deps struct {
	Limits      config.LimitsConfig
	Viewers     *viewer.Registry
	Blobs       render.Blobs
	Pages       *pages.Service
	Slugs       *slug.Checker
	Users       *users.Service
	Comments    *comments.Service
	Auth        *AuthHandler
	Verifier    middleware.Verifier
	Revocations middleware.Revocations
}

// RegisterRoutes mounts the auth, API and frame routes on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	frames := NewFrameHandler(d.Blobs, d.Viewers, channel.NewDispatcher(d.Users, d.Comments, d.Limits.RelayedCommentMax))

	// documents are served outside any viewer or auth context
	frames.Register(r, r.Group("/api"))

	// public routes accept anonymous callers, private ones need a bearer
	// token; without a verifier the service is read-only and writes fail in
	// the services for lack of a caller.
	viewers, signIn := Viewers(d.Viewers), signInViewer(d.Users)
	public := []gin.HandlerFunc{viewers}
	private := []gin.HandlerFunc{viewers}
	if d.Verifier != nil {
		public = append(public, middleware.OptionalAuth(d.Verifier, d.Revocations))
		private = append(private, middleware.AuthMiddleware(d.Verifier, d.Revocations))
	}
	public = append(public, signIn)
	private = append(private, signIn)

	if d.Auth != nil && d.Verifier != nil {
		d.Auth.Register(r.Group("/", viewers, middleware.LenientAuth(d.Verifier, d.Revocations), signIn))
	}

	pub, priv := r.Group("/api", public...), r.Group("/api", private...)
	NewPageHandler(d.Pages, d.Slugs, d.Comments, d.Limits.CommentMax).Register(pub, priv)
	NewProfileHandler(d.Users, d.Limits.AvatarSoftLimit, d.Limits.AvatarSourceLimit).Register(pub, priv)
	NewLiveHandler(d.Slugs).Register(pub)
}
