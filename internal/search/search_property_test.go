package search

import (
	"strings"
	"testing"

	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSearchProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 150

	properties := gopter.NewProperties(parameters)
	word := gen.RegexMatch(`[a-z]{3,10}`)

	properties.Property("a title hit outranks a single content hit", prop.ForAll(
		func(w string) bool {
			pages := []models.Page{
				{Slug: "content", Title: "---", Content: "x " + w + " x"},
				{Slug: "title", Title: w, Content: ""},
			}
			res := Search(w, pages)
			return len(res) == 2 && res[0].Page.Slug == "title"
		},
		word,
	))

	properties.Property("results are sorted by non-increasing score", prop.ForAll(
		func(q string, titles []string) bool {
			pages := make([]models.Page, len(titles))
			for i, ti := range titles {
				pages[i] = models.Page{Slug: ti, Title: ti, Content: strings.Repeat(q+" ", i%3)}
			}
			res := Search(q, pages)
			for i := 1; i < len(res); i++ {
				if res[i].Score > res[i-1].Score {
					return false
				}
			}
			for _, r := range res {
				if r.Score <= 0 {
					return false
				}
			}
			return true
		},
		word,
		gen.SliceOf(word),
	))

	properties.Property("case and accents do not change the score", prop.ForAll(
		func(w string) bool {
			pages := []models.Page{{Slug: "p", Title: w + "é", Content: w}}
			a := Search(w+"e", pages)
			b := Search(strings.ToUpper(w)+"É", pages)
			return len(a) == 1 && len(b) == 1 && a[0].Score == b[0].Score
		},
		word,
	))

	properties.TestingRun(t)
}
