// Package search scores pages against a free-text query.
//
// The engine is a linear scan over a snapshot of every page with no index. That
// is fine for a few thousand pages; beyond that the scan dominates request
// latency. Adding an index would also change how ties are broken, since ties
// keep the snapshot's encounter order.
package search

import (
	"sort"
	"strings"

	"github.com/Noel-Mtf/yesshare/internal/models"
)

const (
	wholeQueryInTitle = 5
	tokenInTitle      = 3
)

// Result is one scored hit.
type Result struct {
	Page  models.Page `json:"page"`
	Score int         `json:"score"`
}

// Score computes the relevance of page for an already normalised query:
// 5 if the whole query occurs in the title, 3 per token occurring in the
// title, plus one per occurrence of each token in the tag-stripped content.
func Score(normQuery string, tokens []string, p *models.Page) int {
	title := Normalize(p.Title)
	content := Normalize(StripTags(p.Content))
	score := 0
	if strings.Contains(title, normQuery) {
		score += wholeQueryInTitle
	}
	for _, tok := range tokens {
		if strings.Contains(title, tok) {
			score += tokenInTitle
		}
		score += strings.Count(content, tok)
	}
	return score
}

// Search returns the pages scoring above zero, best first. Pages with equal
// scores keep the order in which they appear in pages. A blank query matches
// nothing.
func Search(query string, pages []models.Page) []Result {
	q := Normalize(strings.TrimSpace(query))
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return []Result{}
	}
	out := make([]Result, 0)
	for i := range pages {
		if s := Score(q, tokens, &pages[i]); s > 0 {
			out = append(out, Result{Page: pages[i], Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
