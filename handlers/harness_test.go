package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/comments"
	"github.com/Noel-Mtf/yesshare/internal/config"
	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/identity"
	"github.com/Noel-Mtf/yesshare/internal/pages"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/sessions"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/store"
	"github.com/Noel-Mtf/yesshare/internal/tokens"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type account struct {
	uid, username, password string
}

// fakeProvider is an in-process identity provider.
type fakeProvider struct {
	mu        sync.Mutex
	accounts  map[string]account // by email
	loggedOut []string
}

func (f *fakeProvider) Register(ctx context.Context, username, email, password string) (string, error) {
	if err := identity.ValidateRegistration(username, email, password); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return "", failure.Newf(failure.KindIdentity, "fake.Register", "The email address is already in use")
	}
	uid := "uid-" + username
	f.accounts[email] = account{uid: uid, username: username, password: password}
	return uid, nil
}

func (f *fakeProvider) Login(ctx context.Context, email, password string) (*identity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[email]
	if !ok || a.password != password {
		return nil, failure.Newf(failure.KindIdentity, "fake.Login", "Invalid user credentials")
	}
	id := identity.FromClaims(map[string]interface{}{
		"sub": a.uid, "email": email, "preferred_username": a.username,
	})
	id.RefreshToken = "kc-" + a.uid
	return id, nil
}

func (f *fakeProvider) Logout(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, refreshToken)
	return nil
}

type harness struct {
	t         *testing.T
	r         *gin.Engine
	tree      *store.MemoryTree
	blobs     *render.MemoryBlobs
	viewers   *viewer.Registry
	provider  *fakeProvider
	sessions  *sessions.Service
	blacklist *sessions.Blacklist
}

// newHarness builds the service on a memory tree. wrap, when given, sits in
// front of that tree for every service.
func newHarness(t *testing.T, wrap ...func(store.Tree) store.Tree) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	cfg := &config.Config{}
	cfg.JWT.Secret = "handlers-test-secret-32-bytes-xxxx"
	cfg.Limits = config.LimitsConfig{
		CommentMax:        comments.MaxFormLength,
		RelayedCommentMax: comments.MaxRelayedLength,
	}

	tree := store.NewMemoryTree()
	var backing store.Tree = tree
	for _, w := range wrap {
		backing = w(backing)
	}
	pageSvc := pages.NewService(pages.NewTreeRepository(backing))
	userSvc := users.NewService(users.NewTreeUserRepository(backing), pageSvc)
	blobs := render.NewMemoryBlobs()
	reg := viewer.NewRegistry(viewer.Options{Blobs: blobs, Profiles: userSvc, Debounce: 10 * time.Millisecond})
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	provider := &fakeProvider{accounts: map[string]account{}}
	sessSvc := sessions.NewService(sessions.NewMemoryRepository())
	bl := sessions.NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	r := gin.New()
	RegisterRoutes(r, Deps{
		Limits:      cfg.Limits,
		Viewers:     reg,
		Blobs:       blobs,
		Pages:       pageSvc,
		Slugs:       slug.NewChecker(backing),
		Users:       userSvc,
		Comments:    comments.NewService(backing),
		Auth:        NewAuthHandler(cfg, provider, userSvc, sessSvc, bl),
		Verifier:    tokens.NewVerifier(cfg.JWT.Secret),
		Revocations: bl,
	})
	return &harness{t: t, r: r, tree: tree, blobs: blobs, viewers: reg, provider: provider, sessions: sessSvc, blacklist: bl}
}

// client carries a viewer id and, once signed in, its tokens.
type client struct {
	h       *harness
	viewer  string
	access  string
	refresh string
	uid     string
}

func (h *harness) client() *client {
	c := &client{h: h}
	w := c.do(http.MethodGet, "/api/bootstrap", nil)
	require.Equal(h.t, http.StatusOK, w.Code)
	c.viewer = w.Header().Get(ViewerHeader)
	require.NotEmpty(h.t, c.viewer)
	return c
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	case string:
		rd = strings.NewReader(b)
	default:
		js, err := json.Marshal(b)
		require.NoError(c.h.t, err)
		rd = bytes.NewReader(js)
	}
	req := httptest.NewRequest(method, path, rd)
	if _, ok := body.([]byte); !ok && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.viewer != "" {
		req.Header.Set(ViewerHeader, c.viewer)
	}
	if c.access != "" {
		req.Header.Set("Authorization", "Bearer "+c.access)
	}
	w := httptest.NewRecorder()
	c.h.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signUp registers username and keeps the issued tokens.
func (c *client) signUp(username string) *client {
	t := c.h.t
	w := c.do(http.MethodPost, "/auth/register", gin.H{"username": username, "email": username + "@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode(t, w)
	c.access = got["accessToken"].(string)
	c.refresh = got["refreshToken"].(string)
	c.uid = got["user"].(map[string]interface{})["uid"].(string)
	return c
}

func (c *client) publish(title, content, kind, sl string) {
	w := c.do(http.MethodPost, "/api/pages", gin.H{"kind": kind, "title": title, "content": content, "slug": sl})
	require.Equal(c.h.t, http.StatusCreated, w.Code, w.Body.String())
}
