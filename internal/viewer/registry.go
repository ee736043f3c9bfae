package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/google/uuid"
)

// Options configure a Registry.
type Options struct {
	Blobs    render.Blobs
	Profiles users.Loader
	Render   render.Config
	Debounce time.Duration
	IdleTTL  time.Duration
}

// Registry owns every live viewer and the capability index used to route
// frame channel messages back to the viewer that minted them.
type Registry struct {
	opt Options
	now func() time.Time

	mu     sync.RWMutex
	states map[string]*State
	caps   map[string]*State
}

func NewRegistry(opt Options) *Registry {
	if opt.Blobs == nil {
		opt.Blobs = render.NewMemoryBlobs()
	}
	if opt.Profiles == nil {
		opt.Profiles = noProfiles{}
	}
	if opt.IdleTTL <= 0 {
		opt.IdleTTL = 30 * time.Minute
	}
	return &Registry{
		opt:    opt,
		now:    time.Now,
		states: make(map[string]*State),
		caps:   make(map[string]*State),
	}
}

type noProfiles struct{}

func (noProfiles) Get(ctx context.Context, uid string) (*models.User, error) { return nil, nil }

type binder struct {
	reg *Registry
	st  *State
}

func (b binder) Bind(c string) {
	b.reg.mu.Lock()
	b.reg.caps[c] = b.st
	b.reg.mu.Unlock()
}

func (b binder) Unbind(c string) {
	b.reg.mu.Lock()
	if b.reg.caps[c] == b.st {
		delete(b.reg.caps, c)
	}
	b.reg.mu.Unlock()
}

// Ensure returns the state for id, creating it when id is empty or unknown.
// Unknown ids are not adopted: a fresh id is issued instead.
func (r *Registry) Ensure(id string) (*State, bool) {
	if id != "" {
		if st, ok := r.Get(id); ok {
			return st, false
		}
	}
	st := &State{
		ID:        uuid.NewString(),
		Debouncer: slug.NewDebouncer(r.opt.Debounce),
		events:    make(chan Event, eventBuffer),
		lastSeen:  r.now(),
	}
	st.Renderer = render.NewRenderer(r.opt.Blobs, binder{reg: r, st: st}, r.opt.Render)
	st.Authors = users.NewCache(r.opt.Profiles)
	r.mu.Lock()
	r.states[st.ID] = st
	r.mu.Unlock()
	return st, true
}

// Get looks up a live viewer and marks it as seen.
func (r *Registry) Get(id string) (*State, bool) {
	r.mu.RLock()
	st, ok := r.states[id]
	r.mu.RUnlock()
	if ok {
		st.touch(r.now())
	}
	return st, ok
}

// ByCapability finds the viewer that minted capability, if it is still bound.
func (r *Registry) ByCapability(capability string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.caps[capability]
	return st, ok
}

// Len is the number of live viewers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// Remove closes and forgets the viewer id.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	st, ok := r.states[id]
	delete(r.states, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return st.close(ctx)
}

// Sweep removes viewers idle for longer than the configured TTL and returns
// how many were removed.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.opt.IdleTTL)
	r.mu.RLock()
	var stale []string
	for id, st := range r.states {
		if st.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()
	for _, id := range stale {
		if err := r.Remove(ctx, id); err != nil {
			logger.Warnf("viewer sweep: release %s: %v", id, err)
		}
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(ctx); n > 0 {
				logger.Debugf("viewer sweep: removed %d idle viewers", n)
			}
		}
	}
}

// Close releases every viewer.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	all := r.states
	r.states = make(map[string]*State)
	r.mu.Unlock()
	var errs []error
	for _, st := range all {
		if err := st.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
