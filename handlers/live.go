package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

// Live socket message types sent by the host.
const (
	LiveCheckSlug  = "checkSlug"
	LiveCancelSlug = "cancelSlug"
)

const slugCheckTimeout = 5 * time.Second

// LiveHandler pushes viewer events to the host page and runs debounced slug
// checks while the user types.
type LiveHandler struct {
	slugs *slug.Checker
}

func NewLiveHandler(s *slug.Checker) *LiveHandler {
	return &LiveHandler{slugs: s}
}

func (h *LiveHandler) Register(api gin.IRoutes) {
	api.GET("/viewer/live", h.Live)
}

type liveMessage struct {
	Type string `json:"type"`
	Slug string `json:"slug"`
}

func (h *LiveHandler) Live(c *gin.Context) {
	st := currentViewer(c)
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debugf("live: upgrade: %v", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(channelReadLimit)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.pump(ctx, conn, st)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			st.Debouncer.Cancel()
			return
		}
		var msg liveMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		switch msg.Type {
		case LiveCheckSlug:
			raw := msg.Slug
			st.Debouncer.Trigger(func() { h.check(st, raw) })
		case LiveCancelSlug:
			st.Debouncer.Cancel()
		}
	}
}

func (h *LiveHandler) check(st *viewer.State, raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), slugCheckTimeout)
	defer cancel()
	s, status, err := h.slugs.Check(ctx, raw)
	if err != nil {
		logger.Warnf("live: slug check %q: %v", raw, err)
		st.Notify(viewer.Event{Type: viewer.EventSlugStatus, Slug: s, Status: "error"})
		return
	}
	st.Notify(viewer.Event{Type: viewer.EventSlugStatus, Slug: s, Status: string(status)})
}

func (h *LiveHandler) pump(ctx context.Context, conn *websocket.Conn, st *viewer.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-st.Events():
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
