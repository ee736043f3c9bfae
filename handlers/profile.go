package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/Noel-Mtf/yesshare/internal/avatar"
	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/gin-gonic/gin"
)

// ProfileHandler serves the signed-in user's profile and owner summaries.
type ProfileHandler struct {
	users  *users.Service
	limits avatar.Options
}

func NewProfileHandler(u *users.Service, softLimit, sourceLimit int) *ProfileHandler {
	return &ProfileHandler{users: u, limits: avatar.Options{SoftLimit: softLimit, SourceLimit: sourceLimit}}
}

func (h *ProfileHandler) Register(public, private gin.IRoutes) {
	private.GET("/me", h.Me)
	private.PUT("/me/avatar", h.SetAvatar)
	public.GET("/users/:uid/summary", h.Summary)
}

func (h *ProfileHandler) Me(c *gin.Context) {
	uid := callerUID(c)
	if uid == "" {
		respondError(c, failure.Newf(failure.KindUnauthenticated, "profile.Me", "not signed in"))
		return
	}
	ctx := c.Request.Context()
	u, err := h.users.Get(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if u == nil {
		respondError(c, failure.Newf(failure.KindNotFound, "profile.Me", "no profile for %s", uid))
		return
	}
	sum, err := h.users.Summary(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "summary": sum})
}

// SetAvatar ingests an image sent as the "avatar" form file or as the raw
// request body. Large images need ?confirm=true.
func (h *ProfileHandler) SetAvatar(c *gin.Context) {
	uid := callerUID(c)
	if uid == "" {
		respondError(c, failure.Newf(failure.KindUnauthenticated, "profile.SetAvatar", "sign in to change your avatar"))
		return
	}
	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("avatar")
		if err != nil {
			badRequest(c, err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer f.Close()
		src = f
	}
	opt := h.limits
	opt.Confirmed = c.Query("confirm") == "true"
	res, err := avatar.Ingest(src, opt)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.users.SetAvatar(c.Request.Context(), uid, uid, res.DataURL); err != nil {
		respondError(c, err)
		return
	}
	if st := currentViewer(c); st != nil {
		st.Authors.Forget(uid)
		if u := st.User(); u != nil && u.UID == uid {
			cp := *u
			cp.Photo = res.DataURL
			st.SetUser(&cp)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"photo":     res.DataURL,
		"width":     res.Width,
		"height":    res.Height,
		"quality":   res.Quality,
		"bytes":     res.Bytes,
		"oversized": res.Oversized,
	})
}

func (h *ProfileHandler) Summary(c *gin.Context) {
	sum, err := h.users.Summary(c.Request.Context(), c.Param("uid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ownerUid": c.Param("uid"), "meta": sum})
}
