package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/channel"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

const (
	channelReadLimit = 64 << 10
	writeTimeout     = 10 * time.Second
)

// FrameHandler serves sandboxed page documents and their message channel.
type FrameHandler struct {
	blobs      render.Blobs
	viewers    *viewer.Registry
	dispatcher *channel.Dispatcher
}

func NewFrameHandler(b render.Blobs, reg *viewer.Registry, d *channel.Dispatcher) *FrameHandler {
	return &FrameHandler{blobs: b, viewers: reg, dispatcher: d}
}

// Register mounts the document route on r and the channel on api. The
// channel needs no viewer: the capability alone routes its messages.
func (h *FrameHandler) Register(r gin.IRoutes, api gin.IRoutes) {
	r.GET("/frames/:handle", h.Document)
	api.GET("/frames/channel", h.Channel)
}

// Document serves an HTML page under a CSP sandbox without allow-same-origin,
// so it runs in an opaque origin whatever the frame attribute says.
func (h *FrameHandler) Document(c *gin.Context) {
	doc, err := h.blobs.Get(c.Request.Context(), c.Param("handle"))
	if errors.Is(err, render.ErrBlobNotFound) {
		c.String(http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		logger.Errorf("frames: get %s: %v", c.Param("handle"), err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Header("Content-Security-Policy", "sandbox "+render.SandboxPolicy)
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Referrer-Policy", "no-referrer")
	c.Data(http.StatusOK, "text/html; charset=utf-8", doc)
}

// Channel relays frame messages to the dispatcher. Frames have an opaque
// origin, so the origin check is skipped and the capability authorizes.
func (h *FrameHandler) Channel(c *gin.Context) {
	capability := c.Query("cap")
	if capability == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing capability"})
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.Debugf("frames: channel upgrade: %v", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(channelReadLimit)

	ctx := c.Request.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				logger.Debugf("frames: channel read: %v", err)
			}
			return
		}
		var sess channel.Session
		if st, ok := h.viewers.ByCapability(capability); ok {
			sess = st
		}
		reply := h.dispatcher.Handle(ctx, sess, capability, data)
		if reply == nil {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = wsjson.Write(wctx, conn, reply)
		cancel()
		if err != nil {
			return
		}
	}
}
