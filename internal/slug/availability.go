package slug

import (
	"context"

	"github.com/Noel-Mtf/yesshare/internal/store"
	"github.com/Noel-Mtf/yesshare/pkg/metrics"
)

// Status is the outcome of an availability check.
type Status string

const (
	StatusInvalid   Status = "invalid"
	StatusTaken     Status = "taken"
	StatusAvailable Status = "available"
)

// PagePath is where the page for slug lives in the tree.
func PagePath(slug string) string {
	return store.Join("pages", slug)
}

// Checker answers "is this slug free right now?" by reading the tree.
// The answer is advisory: another writer may claim the slug before the caller
// publishes, which is why publishing re-checks and writes conditionally.
type Checker struct {
	tree store.Tree
}

func NewChecker(t store.Tree) *Checker {
	return &Checker{tree: t}
}

// Check normalises raw and classifies it. Malformed input never reaches the store.
func (c *Checker) Check(ctx context.Context, raw string) (string, Status, error) {
	s := Normalize(raw)
	if !IsWellFormed(s) {
		metrics.SlugChecks.WithLabelValues(string(StatusInvalid)).Inc()
		return s, StatusInvalid, nil
	}
	exists, err := c.tree.Exists(ctx, PagePath(s))
	if err != nil {
		return s, "", err
	}
	st := StatusAvailable
	if exists {
		st = StatusTaken
	}
	metrics.SlugChecks.WithLabelValues(string(st)).Inc()
	return s, st, nil
}
