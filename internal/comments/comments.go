// Package comments appends and lists the comments kept under a page.
package comments

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/store"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/pkg/metrics"
)

// Length limits, in runes, applied when a comment is written.
const (
	MaxFormLength    = 1500
	MaxRelayedLength = 2000
)

// Source labels where a comment came from.
type Source string

const (
	SourceForm  Source = "form"
	SourceFrame Source = "frame"
)

// AuthorResolver maps a uid to display metadata. *users.Cache implements it.
type AuthorResolver interface {
	Author(ctx context.Context, uid string) (users.Author, error)
}

// View is a comment together with its author's display metadata.
type View struct {
	models.Comment
	Author users.Author `json:"author"`
}

type Service struct {
	tree store.Tree
	now  func() time.Time
}

func NewService(t store.Tree) *Service {
	return &Service{tree: t, now: time.Now}
}

func commentsPath(s string) string {
	return store.Join(slug.PagePath(s), "comments")
}

// Add appends a comment by uid to the page at pageSlug. The text is trimmed and
// cut to max runes; empty text and missing pages are rejected.
func (s *Service) Add(ctx context.Context, pageSlug, uid, text string, max int, src Source) (*models.Comment, error) {
	const op = "comments.Add"
	if uid == "" {
		return nil, failure.Newf(failure.KindUnauthenticated, op, "sign in to comment")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, failure.Newf(failure.KindValidation, op, "comment is empty")
	}
	pageSlug = slug.Normalize(pageSlug)
	if !slug.IsWellFormed(pageSlug) {
		return nil, failure.Newf(failure.KindValidation, op, "invalid slug %q", pageSlug)
	}
	exists, err := s.tree.Exists(ctx, slug.PagePath(pageSlug))
	if err != nil {
		return nil, failure.E(failure.KindStore, op, err)
	}
	if !exists {
		return nil, failure.Newf(failure.KindNotFound, op, "no page at %s", slug.Address(pageSlug))
	}
	c := &models.Comment{UID: uid, Text: Truncate(text, max), CreatedAt: s.now().UnixMilli()}
	key, err := s.tree.Push(ctx, commentsPath(pageSlug), c)
	if err != nil {
		return nil, failure.E(failure.KindStore, op, err)
	}
	c.ID = key
	metrics.CommentsAdded.WithLabelValues(string(src)).Inc()
	return c, nil
}

// List returns the comments of pageSlug oldest first, each with its author.
// Comments without a timestamp sort as if written at time zero.
func (s *Service) List(ctx context.Context, pageSlug string, authors AuthorResolver) ([]View, error) {
	const op = "comments.List"
	entries, err := s.tree.Children(ctx, commentsPath(slug.Normalize(pageSlug)))
	if err != nil {
		return nil, failure.E(failure.KindStore, op, err)
	}
	out := make([]View, 0, len(entries))
	for _, e := range entries {
		var c models.Comment
		if err := e.Decode(&c); err != nil {
			return nil, failure.E(failure.KindStore, op, err)
		}
		c.ID = e.Key
		out = append(out, View{Comment: c})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	for i := range out {
		a, err := authors.Author(ctx, out[i].UID)
		if err != nil {
			return nil, failure.E(failure.KindStore, op, err)
		}
		out[i].Author = a
	}
	return out, nil
}

// Truncate cuts s to at most max runes. A non-positive max leaves s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
