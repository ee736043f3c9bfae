package users

import (
	"context"
	"sync"

	"github.com/Noel-Mtf/yesshare/internal/models"
	"golang.org/x/sync/singleflight"
)

// Author is the display metadata attached to comments and search hits.
type Author struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Photo    string `json:"photo,omitempty"`
}

// AuthorOf projects u into display metadata, filling placeholders.
func AuthorOf(uid string, u *models.User) Author {
	a := Author{UID: uid, Username: NoName, Email: NoEmail}
	if u == nil {
		return a
	}
	if u.Username != "" {
		a.Username = u.Username
	}
	if u.Email != "" {
		a.Email = u.Email
	}
	a.Photo = u.Photo
	return a
}

// Loader reads a single profile; (nil, nil) means absent.
type Loader interface {
	Get(ctx context.Context, uid string) (*models.User, error)
}

// Cache memoizes profile reads for one viewer. Absent profiles are cached too,
// and concurrent misses for the same uid share a single read. Entries may be
// stale; they are never refreshed until Reset.
type Cache struct {
	load  Loader
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*models.User
}

func NewCache(l Loader) *Cache {
	return &Cache{load: l, entries: make(map[string]*models.User)}
}

// Lookup returns the cached profile for uid, reading it on first use.
func (c *Cache) Lookup(ctx context.Context, uid string) (*models.User, error) {
	c.mu.RLock()
	u, ok := c.entries[uid]
	c.mu.RUnlock()
	if ok {
		return u, nil
	}
	v, err, _ := c.group.Do(uid, func() (interface{}, error) {
		u, err := c.load.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[uid] = u
		c.mu.Unlock()
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.User), nil
}

// Author is Lookup projected through AuthorOf.
func (c *Cache) Author(ctx context.Context, uid string) (Author, error) {
	u, err := c.Lookup(ctx, uid)
	if err != nil {
		return Author{}, err
	}
	return AuthorOf(uid, u), nil
}

// Forget drops uid so the next lookup reads it again.
func (c *Cache) Forget(uid string) {
	c.mu.Lock()
	delete(c.entries, uid)
	c.mu.Unlock()
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*models.User)
	c.mu.Unlock()
}
