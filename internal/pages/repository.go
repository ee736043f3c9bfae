package pages

import (
	"context"
	"errors"

	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/store"
)

// ErrTaken is returned by Repository.Create when the slug already has a page.
var ErrTaken = errors.New("slug already taken")

// Repository defines page persistence operations
type Repository interface {
	// Get returns (nil, nil) when there is no page at slug.
	Get(ctx context.Context, s string) (*models.Page, error)
	Exists(ctx context.Context, s string) (bool, error)
	// Create writes p as a single record, failing with ErrTaken if its slug is in use.
	Create(ctx context.Context, p *models.Page) error
	// List returns every page ordered by slug.
	List(ctx context.Context) ([]models.Page, error)
	CountByOwner(ctx context.Context, uid string) (int, error)
}

// TreeRepository stores pages at pages/{slug}
type TreeRepository struct {
	tree store.Tree
}

func NewTreeRepository(t store.Tree) *TreeRepository {
	return &TreeRepository{tree: t}
}

func (r *TreeRepository) Get(ctx context.Context, s string) (*models.Page, error) {
	var p models.Page
	found, err := r.tree.Get(ctx, slug.PagePath(s), &p)
	if err != nil || !found {
		return nil, err
	}
	if p.Slug == "" {
		p.Slug = s
	}
	return &p, nil
}

func (r *TreeRepository) Exists(ctx context.Context, s string) (bool, error) {
	return r.tree.Exists(ctx, slug.PagePath(s))
}

func (r *TreeRepository) Create(ctx context.Context, p *models.Page) error {
	err := r.tree.Create(ctx, slug.PagePath(p.Slug), p)
	if errors.Is(err, store.ErrExists) {
		return ErrTaken
	}
	return err
}

func (r *TreeRepository) List(ctx context.Context) ([]models.Page, error) {
	entries, err := r.tree.Children(ctx, "pages")
	if err != nil {
		return nil, err
	}
	out := make([]models.Page, 0, len(entries))
	for _, e := range entries {
		var p models.Page
		if err := e.Decode(&p); err != nil {
			return nil, err
		}
		if p.Slug == "" {
			p.Slug = e.Key
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *TreeRepository) CountByOwner(ctx context.Context, uid string) (int, error) {
	all, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range all {
		if all[i].OwnerUID == uid {
			n++
		}
	}
	return n, nil
}
