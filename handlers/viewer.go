package handlers

import (
	"net/http"

	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/Noel-Mtf/yesshare/pkg/middleware"
	"github.com/gin-gonic/gin"
)

const (
	ViewerCookie = "ys_viewer"
	ViewerHeader = "X-Viewer-ID"
	viewerKey    = "viewer"
)

func viewerID(c *gin.Context) string {
	if id := c.GetHeader(ViewerHeader); id != "" {
		return id
	}
	if id, err := c.Cookie(ViewerCookie); err == nil {
		return id
	}
	return c.Query("viewer")
}

// Viewers attaches the caller's viewer state, issuing a new one when the
// request carries none. A bearer token that an auth middleware further down
// rejected with 401 signs the viewer out.
func Viewers(reg *viewer.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, created := reg.Ensure(viewerID(c))
		if created {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ViewerCookie, st.ID, 0, "/", "", false, true)
		}
		c.Header(ViewerHeader, st.ID)
		c.Set(viewerKey, st)
		c.Next()
		if c.IsAborted() && middleware.Rejected(c) && st.User() != nil {
			logger.Debugf("viewer %s: token rejected, signing out", st.ID)
			st.SetUser(nil)
		}
	}
}

// signInViewer records the verified token subject as the viewer's user, which
// is who frame channel requests act for. A rejected token signs it out.
func signInViewer(profiles *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := currentViewer(c)
		if st != nil && middleware.Rejected(c) {
			st.SetUser(nil)
		}
		if sub := middleware.Subject(c); sub != "" && st != nil && sub != st.CurrentUID() && profiles != nil {
			u, err := profiles.Get(c.Request.Context(), sub)
			if err != nil {
				logger.Warnf("viewer %s: load user %s: %v", st.ID, sub, err)
			} else if u != nil {
				st.SetUser(u)
			}
		}
		c.Next()
	}
}

func currentViewer(c *gin.Context) *viewer.State {
	v, ok := c.Get(viewerKey)
	if !ok {
		return nil
	}
	st, _ := v.(*viewer.State)
	return st
}

// callerUID is the verified token subject. The viewer's signed-in user is
// not consulted: REST writes need a live token.
func callerUID(c *gin.Context) string {
	return middleware.Subject(c)
}
