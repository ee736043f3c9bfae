// Package viewer holds the per-viewer session state of the service. Every
// field has a single writer: auth handlers set the user, the publication flow
// sets the draft, and the renderer owns the active frame.
package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/pages"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/users"
)

// Event types pushed to the host socket.
const (
	EventCommentsChanged = "commentsChanged"
	EventSlugStatus      = "slugStatus"
)

// Event is a notification for the viewer's host page.
type Event struct {
	Type   string `json:"type"`
	Slug   string `json:"slug,omitempty"`
	Status string `json:"status,omitempty"`
}

const eventBuffer = 16

// State is one viewer's session.
type State struct {
	ID        string
	Renderer  *render.Renderer
	Authors   *users.Cache
	Debouncer *slug.Debouncer

	events chan Event

	mu       sync.Mutex
	user     *models.User
	draft    *pages.Draft
	lastSeen time.Time
}

// SetUser records who is signed in on this viewer; nil signs out.
func (s *State) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

func (s *State) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// CurrentUID is the signed-in uid, or "".
func (s *State) CurrentUID() string {
	if u := s.User(); u != nil {
		return u.UID
	}
	return ""
}

func (s *State) SetDraft(d *pages.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = d
}

func (s *State) Draft() *pages.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SwapDraft replaces the staged draft with next only if it is still old.
// It reports false when the draft was restaged or cleared in the meantime.
func (s *State) SwapDraft(old, next *pages.Draft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft != old {
		return false
	}
	s.draft = next
	return true
}

// WithDraft runs fn while holding the state lock. fn must not block.
func (s *State) WithDraft(fn func(d *pages.Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.draft)
}

// IsActive reports whether capability is the one of the frame on display.
func (s *State) IsActive(capability string) bool {
	return s.Renderer.IsActive(capability)
}

// OpenSlug is the slug currently displayed.
func (s *State) OpenSlug() string {
	return s.Renderer.OpenSlug()
}

// CommentsChanged tells the host to reload comments, unless it has moved on.
func (s *State) CommentsChanged(pageSlug string) {
	if s.OpenSlug() != pageSlug {
		return
	}
	s.Notify(Event{Type: EventCommentsChanged, Slug: pageSlug})
}

// Notify queues ev for the host socket. When nobody drains the queue the
// oldest pending event is dropped.
func (s *State) Notify(ev Event) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// Events is drained by the host socket.
func (s *State) Events() <-chan Event {
	return s.events
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *State) close(ctx context.Context) error {
	s.Debouncer.Stop()
	return s.Renderer.Clear(ctx)
}
