package pages

import "github.com/Noel-Mtf/yesshare/internal/models"

// State is the position of a draft in the two-phase publication flow.
type State int

const (
	StateEditing State = iota
	StateSlugPending
	StatePublished
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSlugPending:
		return "slug-pending"
	case StatePublished:
		return "published"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Draft is content staged for publication. Its content survives failed publish
// attempts so the author can retry with another slug.
type Draft struct {
	Owner   string             `json:"ownerUid"`
	Kind    models.ContentKind `json:"kind"`
	Title   string             `json:"title"`
	Content string             `json:"content"`
	State   State              `json:"state"`
	// Slug is the last candidate tried, or the published slug.
	Slug string `json:"slug,omitempty"`
}

// Back returns a draft waiting for its slug to the editing phase.
func (d *Draft) Back() {
	if d.State == StateSlugPending {
		d.State = StateEditing
	}
}
