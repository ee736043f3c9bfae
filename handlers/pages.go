package handlers

import (
	"context"
	"net/http"

	"github.com/Noel-Mtf/yesshare/internal/comments"
	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/pages"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/gin-gonic/gin"
)

// PageHandler serves browsing, publishing and commenting.
type PageHandler struct {
	pages      *pages.Service
	slugs      *slug.Checker
	comments   *comments.Service
	commentMax int
}

func NewPageHandler(p *pages.Service, s *slug.Checker, cm *comments.Service, commentMax int) *PageHandler {
	if commentMax <= 0 {
		commentMax = comments.MaxFormLength
	}
	return &PageHandler{pages: p, slugs: s, comments: cm, commentMax: commentMax}
}

func (h *PageHandler) Register(public, private gin.IRoutes) {
	public.GET("/bootstrap", h.Bootstrap)
	public.GET("/pages", h.Search)
	public.GET("/pages/:slug", h.Open)
	public.GET("/pages/:slug/comments", h.ListComments)
	public.GET("/slugs/:slug", h.CheckSlug)

	private.POST("/pages", h.PublishNow)
	private.POST("/pages/:slug/comments", h.AddComment)
	private.POST("/drafts", h.Stage)
	private.POST("/drafts/back", h.Back)
	private.POST("/drafts/publish", h.Publish)
}

// Hit is one search result with its owner's display metadata.
type Hit struct {
	Slug      string       `json:"slug"`
	Address   string       `json:"address"`
	Title     string       `json:"title"`
	IsHTML    bool         `json:"isHtml"`
	OwnerUID  string       `json:"ownerUid"`
	CreatedAt int64        `json:"createdAt"`
	Score     int          `json:"score"`
	Owner     users.Author `json:"owner"`
}

// open renders sl in the viewer. A missing page clears the viewer's active
// frame and yields a not-found artifact together with the not-found failure.
func (h *PageHandler) open(ctx context.Context, st *viewer.State, sl string) (*render.Artifact, error) {
	p, err := h.pages.Get(ctx, sl)
	if err != nil && !failure.Is(err, failure.KindNotFound) {
		return nil, err
	}
	art, rerr := st.Renderer.Render(ctx, slug.Normalize(sl), p)
	if rerr != nil {
		return nil, failure.E(failure.KindStore, "pages.Open", rerr)
	}
	return art, err
}

// Bootstrap creates the viewer and, given ?slug=, opens that page straight away.
func (h *PageHandler) Bootstrap(c *gin.Context) {
	st := currentViewer(c)
	out := gin.H{"viewerId": st.ID, "user": st.User()}
	if sl := c.Query("slug"); sl != "" {
		art, err := h.open(c.Request.Context(), st, sl)
		if art == nil {
			respondError(c, err)
			return
		}
		out["open"] = art
	}
	c.JSON(http.StatusOK, out)
}

// Search runs a scored search, or opens the page directly when q is a
// "<slug>.yes" address.
func (h *PageHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	st := currentViewer(c)
	q := c.Query("q")
	if sl, ok := slug.ParseAddress(q); ok {
		art, err := h.open(ctx, st, sl)
		if art == nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"open": art})
		return
	}
	res, err := h.pages.Search(ctx, q)
	if err != nil {
		respondError(c, err)
		return
	}
	hits := make([]Hit, 0, len(res))
	for _, r := range res {
		owner, err := st.Authors.Author(ctx, r.Page.OwnerUID)
		if err != nil {
			respondError(c, failure.E(failure.KindStore, "pages.Search", err))
			return
		}
		hits = append(hits, Hit{
			Slug:      r.Page.Slug,
			Address:   slug.Address(r.Page.Slug),
			Title:     r.Page.Title,
			IsHTML:    r.Page.IsHTML,
			OwnerUID:  r.Page.OwnerUID,
			CreatedAt: r.Page.CreatedAt,
			Score:     r.Score,
			Owner:     owner,
		})
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": hits})
}

// Open displays a page in the viewer.
func (h *PageHandler) Open(c *gin.Context) {
	art, err := h.open(c.Request.Context(), currentViewer(c), c.Param("slug"))
	if err != nil {
		if art != nil {
			c.JSON(statusOf(failure.KindOf(err)), gin.H{"error": failure.Message(err), "kind": failure.KindOf(err).String(), "open": art})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": art})
}

func (h *PageHandler) CheckSlug(c *gin.Context) {
	s, status, err := h.slugs.Check(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, failure.E(failure.KindStore, "slugs.Check", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": s, "address": slug.Address(s), "status": status})
}

type pageRequest struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Slug    string `json:"slug"`
}

// PublishNow runs both publication phases in one request.
func (h *PageHandler) PublishNow(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.pages.PublishNow(c.Request.Context(), callerUID(c), models.ParseContentKind(req.Kind), req.Title, req.Content, req.Slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": p, "address": slug.Address(p.Slug)})
}

// Stage moves the viewer's editor content to the slug step.
func (h *PageHandler) Stage(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.pages.Stage(callerUID(c), models.ParseContentKind(req.Kind), req.Title, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	currentViewer(c).SetDraft(d)
	c.JSON(http.StatusOK, gin.H{"draft": d})
}

var errNothingStaged = failure.Newf(failure.KindValidation, "drafts", "nothing staged")

// Back returns the staged draft to editing, content intact.
func (h *PageHandler) Back(c *gin.Context) {
	var out *pages.Draft
	err := currentViewer(c).WithDraft(func(d *pages.Draft) error {
		if d == nil {
			return errNothingStaged
		}
		d.Back()
		cp := *d
		out = &cp
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": out})
}

// Publish writes the staged draft under the requested slug. On failure the
// draft stays staged so the user can pick another slug.
func (h *PageHandler) Publish(c *gin.Context) {
	var req struct {
		Slug string `json:"slug"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	uid := callerUID(c)
	st := currentViewer(c)
	staged := st.Draft()
	if staged == nil {
		respondError(c, errNothingStaged)
		return
	}
	// publish a copy so the viewer stays usable during the store round-trips
	d := *staged
	if uid == "" || uid != d.Owner {
		err := failure.Newf(failure.KindUnauthenticated, "drafts.Publish", "sign in as the draft's author to publish")
		c.AbortWithStatusJSON(statusOf(failure.KindOf(err)), gin.H{"error": failure.Message(err), "kind": failure.KindOf(err).String(), "draft": d})
		return
	}
	page, err := h.pages.Publish(c.Request.Context(), &d, req.Slug)
	if err != nil {
		st.SwapDraft(staged, &d)
		c.AbortWithStatusJSON(statusOf(failure.KindOf(err)), gin.H{"error": failure.Message(err), "kind": failure.KindOf(err).String(), "draft": d})
		return
	}
	st.SwapDraft(staged, nil)
	c.JSON(http.StatusCreated, gin.H{"page": page, "address": slug.Address(page.Slug)})
}

func (h *PageHandler) ListComments(c *gin.Context) {
	list, err := h.comments.List(c.Request.Context(), c.Param("slug"), currentViewer(c).Authors)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": list})
}

func (h *PageHandler) AddComment(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st := currentViewer(c)
	cm, err := h.comments.Add(c.Request.Context(), c.Param("slug"), callerUID(c), req.Text, h.commentMax, comments.SourceForm)
	if err != nil {
		respondError(c, err)
		return
	}
	author := authorOrPlaceholder(c.Request.Context(), st.Authors, cm.UID)
	c.JSON(http.StatusCreated, gin.H{"comment": comments.View{Comment: *cm, Author: author}})
}

// authorOrPlaceholder resolves uid for display. The comment is already stored,
// so a failed profile lookup falls back to the placeholder author.
func authorOrPlaceholder(ctx context.Context, authors *users.Cache, uid string) users.Author {
	a, err := authors.Author(ctx, uid)
	if err != nil {
		logger.Warnf("author %s: %v", uid, err)
		return users.AuthorOf(uid, nil)
	}
	return a
}
