// Package render decides how a page is displayed. Rich pages are embedded
// directly; HTML pages are served from a throwaway handle into a frame that is
// sandboxed without same-origin rights, and talk back only over a channel
// bound to a capability minted for that one frame.
package render

import (
	"context"
	"strings"
	"sync"

	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/google/uuid"
)

// SandboxPolicy is used both as the iframe sandbox attribute and as the CSP
// sandbox directive of the served document. It deliberately lacks allow-same-origin.
const SandboxPolicy = "allow-scripts allow-forms allow-popups allow-modals allow-top-navigation-by-user-activation"

// Artifact kinds.
const (
	KindInline   = "inline"
	KindFrame    = "frame"
	KindNotFound = "not-found"
)

// Artifact is what a client needs to display a page.
type Artifact struct {
	Kind    string       `json:"kind"`
	Slug    string       `json:"slug"`
	Page    *models.Page `json:"page,omitempty"`
	Src     string       `json:"src,omitempty"`
	Sandbox string       `json:"sandbox,omitempty"`
	Channel string       `json:"channel,omitempty"`
}

// CapabilityIndex learns which capabilities are live so inbound channel
// messages can be routed back to their renderer.
type CapabilityIndex interface {
	Bind(capability string)
	Unbind(capability string)
}

// Config holds the URL layout of frames.
type Config struct {
	FramePrefix string // e.g. "/frames/"
	ChannelPath string // e.g. "/api/frames/channel"
}

// Renderer tracks the single active frame of one viewer. Only the renderer
// changes the active capability.
type Renderer struct {
	blobs Blobs
	index CapabilityIndex
	cfg   Config

	mu         sync.Mutex
	slug       string
	handle     string
	capability string
}

func NewRenderer(b Blobs, idx CapabilityIndex, cfg Config) *Renderer {
	if cfg.FramePrefix == "" {
		cfg.FramePrefix = "/frames/"
	}
	if cfg.ChannelPath == "" {
		cfg.ChannelPath = "/api/frames/channel"
	}
	return &Renderer{blobs: b, index: idx, cfg: cfg}
}

// Render displays p, releasing whatever was displayed before. A nil page
// yields a not-found artifact and leaves no frame active.
func (r *Renderer) Render(ctx context.Context, s string, p *models.Page) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.releaseLocked(ctx); err != nil {
		return nil, err
	}
	r.slug = s
	if p == nil {
		return &Artifact{Kind: KindNotFound, Slug: s}, nil
	}
	if !p.IsHTML {
		return &Artifact{Kind: KindInline, Slug: s, Page: p}, nil
	}

	handle := uuid.NewString()
	capID, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	capability := capID.String()
	if err := r.blobs.Put(ctx, handle, FrameDocument(p.Content, r.cfg.ChannelPath)); err != nil {
		return nil, err
	}
	r.handle = handle
	r.capability = capability
	if r.index != nil {
		r.index.Bind(capability)
	}
	meta := *p
	meta.Content = ""
	return &Artifact{
		Kind:    KindFrame,
		Slug:    s,
		Page:    &meta,
		Src:     r.cfg.FramePrefix + handle + "#cap=" + capability,
		Sandbox: SandboxPolicy,
		Channel: r.cfg.ChannelPath,
	}, nil
}

// IsActive reports whether capability belongs to the frame on display.
func (r *Renderer) IsActive(capability string) bool {
	if capability == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return capability == r.capability
}

// OpenSlug is the slug last rendered, found or not.
func (r *Renderer) OpenSlug() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slug
}

// Clear releases the active frame and forgets the open slug. It is also how a
// viewer's renderer is torn down.
func (r *Renderer) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slug = ""
	return r.releaseLocked(ctx)
}

func (r *Renderer) releaseLocked(ctx context.Context) error {
	if r.capability != "" && r.index != nil {
		r.index.Unbind(r.capability)
	}
	r.capability = ""
	if r.handle == "" {
		return nil
	}
	h := r.handle
	r.handle = ""
	return r.blobs.Release(ctx, h)
}

// FrameDocument prefixes content with a small bridge script. The bridge reads
// the capability from the fragment, opens the channel socket and re-dispatches
// replies as window message events; pages call yesshare.send(msg) to post.
func FrameDocument(content, channelPath string) []byte {
	var b strings.Builder
	b.WriteString("<!doctype html><meta charset=\"utf-8\"><script>")
	b.WriteString(strings.ReplaceAll(bridgeScript, "{{CHANNEL}}", channelPath))
	b.WriteString("</script>\n")
	b.WriteString(content)
	return []byte(b.String())
}

const bridgeScript = `(function(){var cap=(location.hash.match(/cap=([^&]+)/)||[])[1];var q=[];var ws=null;` +
	`function open(){if(!cap)return;` +
	`ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"{{CHANNEL}}?cap="+encodeURIComponent(cap));` +
	`ws.onopen=function(){q.splice(0).forEach(function(m){ws.send(m)})};` +
	`ws.onmessage=function(e){try{window.dispatchEvent(new MessageEvent("message",{data:JSON.parse(e.data)}))}catch(_){}}}` +
	`window.yesshare={send:function(m){var s=JSON.stringify(m);if(ws&&ws.readyState===1)ws.send(s);else q.push(s)}};open();})();`
