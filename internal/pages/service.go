// Package pages implements page storage and the two-phase publication flow:
// content is staged first, then published under a slug that is checked twice,
// once when chosen and again by a conditional write.
package pages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/search"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/Noel-Mtf/yesshare/pkg/metrics"
)

// NoTitle replaces an empty title at publish time.
const NoTitle = "(no title)"

// Service implements page business operations
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, now: time.Now}
}

// Stage starts the flow for owner. Whitespace-only content keeps the draft in
// the editing phase and reports a validation error.
func (s *Service) Stage(owner string, kind models.ContentKind, title, content string) (*Draft, error) {
	const op = "pages.Stage"
	if owner == "" {
		return nil, failure.Newf(failure.KindUnauthenticated, op, "sign in to publish")
	}
	d := &Draft{Owner: owner, Kind: kind, Title: strings.TrimSpace(title), Content: content, State: StateEditing}
	if strings.TrimSpace(content) == "" {
		return d, failure.Newf(failure.KindValidation, op, "content is empty")
	}
	d.State = StateSlugPending
	return d, nil
}

// Publish writes the staged draft under rawSlug. On any failure the draft
// stays in the slug phase with its content intact.
func (s *Service) Publish(ctx context.Context, d *Draft, rawSlug string) (*models.Page, error) {
	const op = "pages.Publish"
	if d == nil || d.State != StateSlugPending {
		return nil, failure.Newf(failure.KindValidation, op, "nothing staged for publication")
	}
	sl := slug.Normalize(rawSlug)
	d.Slug = sl
	if !slug.IsWellFormed(sl) {
		return nil, failure.Newf(failure.KindValidation, op, "invalid slug: only a-z, 0-9 and -_()!+?:% are allowed")
	}
	exists, err := s.repo.Exists(ctx, sl)
	if err != nil {
		return nil, failure.E(failure.KindStore, op, err)
	}
	if exists {
		return nil, failure.Newf(failure.KindTaken, op, "slug %q is already taken", sl)
	}

	title := d.Title
	if title == "" {
		title = NoTitle
	}
	p := &models.Page{
		Slug:      sl,
		Title:     title,
		Content:   d.Content,
		IsHTML:    d.Kind == models.KindHTML,
		OwnerUID:  d.Owner,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrTaken) {
			metrics.PublishConflicts.Inc()
			logger.Infof("publish: slug %q was claimed between check and write", sl)
			return nil, failure.Newf(failure.KindTaken, op, "slug %q just became taken", sl)
		}
		return nil, failure.E(failure.KindStore, op, err)
	}
	d.State = StatePublished
	metrics.PagesPublished.Inc()
	logger.Debugf("publish: %s by %s (html=%t)", sl, d.Owner, p.IsHTML)
	return p, nil
}

// PublishNow runs both phases in one call.
func (s *Service) PublishNow(ctx context.Context, owner string, kind models.ContentKind, title, content, rawSlug string) (*models.Page, error) {
	d, err := s.Stage(owner, kind, title, content)
	if err != nil {
		return nil, err
	}
	return s.Publish(ctx, d, rawSlug)
}

// Get returns the page at slug or a not-found failure.
func (s *Service) Get(ctx context.Context, sl string) (*models.Page, error) {
	const op = "pages.Get"
	p, err := s.repo.Get(ctx, slug.Normalize(sl))
	if err != nil {
		return nil, failure.E(failure.KindStore, op, err)
	}
	if p == nil {
		return nil, failure.Newf(failure.KindNotFound, op, "no page at %s", slug.Address(slug.Normalize(sl)))
	}
	return p, nil
}

// Search scores a fresh snapshot of all pages against query.
func (s *Service) Search(ctx context.Context, query string) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return []search.Result{}, nil
	}
	start := time.Now()
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, failure.E(failure.KindStore, "pages.Search", err)
	}
	res := search.Search(query, all)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	return res, nil
}

// CountByOwner satisfies users.PageCounter.
func (s *Service) CountByOwner(ctx context.Context, uid string) (int, error) {
	return s.repo.CountByOwner(ctx, uid)
}
