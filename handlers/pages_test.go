package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/avatar"
	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/store"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestTwoPhasePublish(t *testing.T) {
	h := newHarness(t)
	alice := h.client().signUp("alice")

	w := alice.do(http.MethodPost, "/api/drafts", gin.H{"kind": "rich", "title": "Hello", "content": "<p>hi</p>"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "slug-pending", decode(t, w)["draft"].(map[string]interface{})["state"])

	w = alice.do(http.MethodPost, "/api/drafts/publish", gin.H{"slug": "  Demo "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode(t, w)
	require.Equal(t, "demo.yes", got["address"])
	require.Equal(t, "demo", got["page"].(map[string]interface{})["slug"])

	// a second author loses the slug and keeps the draft
	bob := h.client().signUp("bob")
	w = bob.do(http.MethodPost, "/api/drafts", gin.H{"kind": "rich", "title": "Mine", "content": "bob's text"})
	require.Equal(t, http.StatusOK, w.Code)
	w = bob.do(http.MethodPost, "/api/drafts/publish", gin.H{"slug": "demo"})
	require.Equal(t, http.StatusConflict, w.Code)
	got = decode(t, w)
	require.Equal(t, "taken", got["kind"])
	draft := got["draft"].(map[string]interface{})
	require.Equal(t, "bob's text", draft["content"])
	require.Equal(t, "slug-pending", draft["state"])

	w = bob.do(http.MethodPost, "/api/drafts/back", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "editing", decode(t, w)["draft"].(map[string]interface{})["state"])

	// the original page is untouched
	w = bob.do(http.MethodGet, "/api/pages/demo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	open := decode(t, w)["open"].(map[string]interface{})
	require.Equal(t, render.KindInline, open["kind"])
	require.Equal(t, "<p>hi</p>", open["page"].(map[string]interface{})["content"])
}

func TestPublishRequiresSignIn(t *testing.T) {
	h := newHarness(t)
	anon := h.client()

	w := anon.do(http.MethodPost, "/api/pages", gin.H{"title": "x", "content": "y", "slug": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = anon.do(http.MethodPost, "/api/drafts", gin.H{"content": "y"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = anon.do(http.MethodPost, "/api/drafts/publish", gin.H{"slug": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublishValidation(t *testing.T) {
	h := newHarness(t)
	c := h.client().signUp("alice")

	w := c.do(http.MethodPost, "/api/pages", gin.H{"title": "x", "content": "", "slug": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = c.do(http.MethodPost, "/api/pages", gin.H{"title": "x", "content": "y", "slug": "no spaces"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodPost, "/api/pages", gin.H{"content": "y", "slug": "untitled"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "(no title)", decode(t, w)["page"].(map[string]interface{})["title"])
}

func TestSlugAvailability(t *testing.T) {
	h := newHarness(t)
	c := h.client().signUp("alice")
	c.publish("T", "x", "rich", "demo")

	for path, want := range map[string]string{
		"/api/slugs/" + url.PathEscape("bad slug"): "invalid",
		"/api/slugs/DEMO":                          "taken",
		"/api/slugs/free":                          "available",
	} {
		w := c.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, want, decode(t, w)["status"], path)
	}
}

func TestSearchAndDirectOpen(t *testing.T) {
	h := newHarness(t)
	c := h.client().signUp("alice")
	c.publish("Tomato soup", "<p>red</p>", "rich", "soup")
	c.publish("Bread", "<p>tomato on toast</p>", "rich", "bread")
	c.publish("Other", "nothing", "rich", "other")

	w := c.do(http.MethodGet, "/api/pages?q=tomato", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w)["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	require.Equal(t, "soup", first["slug"])
	require.Equal(t, "soup.yes", first["address"])
	require.Equal(t, "alice", first["owner"].(map[string]interface{})["username"])

	w = c.do(http.MethodGet, "/api/pages?q="+url.QueryEscape("  "), nil)
	require.Empty(t, decode(t, w)["results"])

	w = c.do(http.MethodGet, "/api/pages?q=bread.yes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	open := decode(t, w)["open"].(map[string]interface{})
	require.Equal(t, "bread", open["slug"])

	w = c.do(http.MethodGet, "/api/pages?q=missing.yes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, render.KindNotFound, decode(t, w)["open"].(map[string]interface{})["kind"])
}

func TestHTMLPageIsServedSandboxed(t *testing.T) {
	h := newHarness(t)
	c := h.client().signUp("alice")
	c.publish("Site", "<h1>mine</h1>", "html", "site")
	c.publish("Plain", "text", "rich", "plain")

	w := c.do(http.MethodGet, "/api/pages/site", nil)
	require.Equal(t, http.StatusOK, w.Code)
	open := decode(t, w)["open"].(map[string]interface{})
	require.Equal(t, render.KindFrame, open["kind"])
	require.Equal(t, render.SandboxPolicy, open["sandbox"])
	require.Empty(t, open["page"].(map[string]interface{})["content"])
	src := open["src"].(string)
	require.Contains(t, src, "#cap=")
	docPath := src[:strings.Index(src, "#")]

	w = c.do(http.MethodGet, docPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "sandbox "+render.SandboxPolicy, w.Header().Get("Content-Security-Policy"))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Contains(t, w.Body.String(), "<h1>mine</h1>")

	// moving on releases the previous document
	w = c.do(http.MethodGet, "/api/pages/plain", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = c.do(http.MethodGet, docPath, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Zero(t, h.blobs.Len())
}

func TestOpenMissingPage(t *testing.T) {
	h := newHarness(t)
	w := h.client().do(http.MethodGet, "/api/pages/nothing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	got := decode(t, w)
	require.Equal(t, "not-found", got["kind"])
	require.Equal(t, render.KindNotFound, got["open"].(map[string]interface{})["kind"])
}

func TestBootstrapOpensSlug(t *testing.T) {
	h := newHarness(t)
	h.client().signUp("alice").publish("T", "body", "rich", "demo")

	w := h.client().do(http.MethodGet, "/api/bootstrap?slug=Demo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	require.NotEmpty(t, got["viewerId"])
	require.Equal(t, "demo", got["open"].(map[string]interface{})["slug"])
}

func TestComments(t *testing.T) {
	h := newHarness(t)
	alice := h.client().signUp("alice")
	alice.publish("T", "body", "rich", "demo")

	anon := h.client()
	w := anon.do(http.MethodPost, "/api/pages/demo/comments", gin.H{"text": "hi"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = alice.do(http.MethodPost, "/api/pages/demo/comments", gin.H{"text": "  first  "})
	require.Equal(t, http.StatusCreated, w.Code)
	w = alice.do(http.MethodPost, "/api/pages/demo/comments", gin.H{"text": strings.Repeat("é", 1600)})
	require.Equal(t, http.StatusCreated, w.Code)
	w = alice.do(http.MethodPost, "/api/pages/demo/comments", gin.H{"text": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = alice.do(http.MethodPost, "/api/pages/gone/comments", gin.H{"text": "hello"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = anon.do(http.MethodGet, "/api/pages/demo/comments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["comments"].([]interface{})
	require.Len(t, list, 2)
	first := list[0].(map[string]interface{})
	require.Equal(t, "first", first["text"])
	require.Equal(t, "alice", first["author"].(map[string]interface{})["username"])
	require.Len(t, []rune(list[1].(map[string]interface{})["text"].(string)), 1500)
}

func pngBytes(t *testing.T, w, hgt int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, hgt))
	for x := 0; x < w; x++ {
		for y := 0; y < hgt; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAvatarAndSummary(t *testing.T) {
	h := newHarness(t)
	c := h.client().signUp("alice")
	c.publish("A", "a", "rich", "a")
	c.publish("B", "b", "rich", "b")

	w := h.client().do(http.MethodPut, "/api/me/avatar", pngBytes(t, 10, 10))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPut, "/api/me/avatar", pngBytes(t, 256, 128))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	require.True(t, strings.HasPrefix(got["photo"].(string), avatar.DataURLPrefix))
	require.EqualValues(t, 128, got["width"])
	require.EqualValues(t, 64, got["height"])

	w = c.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, got["photo"], decode(t, w)["user"].(map[string]interface{})["photo"])

	w = c.do(http.MethodPut, "/api/me/avatar", []byte("not an image"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = h.client().do(http.MethodGet, "/api/users/"+c.uid+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)["meta"].(map[string]interface{})
	require.Equal(t, "alice", meta["username"])
	require.EqualValues(t, 2, meta["count"])

	w = h.client().do(http.MethodGet, "/api/users/nobody/summary", nil)
	meta = decode(t, w)["meta"].(map[string]interface{})
	require.Equal(t, users.NoName, meta["username"])
	require.Equal(t, users.NoEmail, meta["email"])
}

type brokenProfiles struct{}

func (brokenProfiles) Get(ctx context.Context, uid string) (*models.User, error) {
	return nil, errors.New("store unavailable")
}

func TestAuthorFallsBackWhenProfileLookupFails(t *testing.T) {
	got := authorOrPlaceholder(context.Background(), users.NewCache(brokenProfiles{}), "uid-1")
	require.Equal(t, users.AuthorOf("uid-1", nil), got)
	require.Equal(t, users.NoName, got.Username)
}

// gatedTree parks page creation until released.
type gatedTree struct {
	store.Tree
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTree) Create(ctx context.Context, path string, v interface{}) error {
	if strings.HasPrefix(path, "pages/") {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Tree.Create(ctx, path, v)
}

func TestPublishLeavesViewerUsableDuringWrite(t *testing.T) {
	gate := &gatedTree{entered: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, func(tr store.Tree) store.Tree {
		gate.Tree = tr
		return gate
	})
	alice := h.client().signUp("alice")
	w := alice.do(http.MethodPost, "/api/drafts", gin.H{"kind": "rich", "title": "G", "content": "gated"})
	require.Equal(t, http.StatusOK, w.Code)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- alice.do(http.MethodPost, "/api/drafts/publish", gin.H{"slug": "gated"}) }()
	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("publish never reached the store")
	}

	st, _ := h.viewers.Get(alice.viewer)
	uid := make(chan string, 1)
	go func() { uid <- st.CurrentUID() }()
	select {
	case got := <-uid:
		require.Equal(t, "uid-alice", got)
	case <-time.After(time.Second):
		close(gate.release)
		t.Fatal("viewer state stayed locked while the page was written")
	}

	close(gate.release)
	w = <-done
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Nil(t, st.Draft())
}
