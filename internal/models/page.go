package models

// ContentKind tells how a page body must be rendered.
type ContentKind string

const (
	// KindRich content comes from the app's own editor and renders inline.
	KindRich ContentKind = "rich"
	// KindHTML content is untrusted markup and renders only inside a sandboxed frame.
	KindHTML ContentKind = "html"
)

// ParseContentKind maps a client supplied kind, defaulting to rich.
func ParseContentKind(s string) ContentKind {
	if ContentKind(s) == KindHTML {
		return KindHTML
	}
	return KindRich
}

// Page is the record stored at pages/{slug}. It is written once, as a single unit.
type Page struct {
	Slug      string `json:"slug" bson:"slug"`
	Title     string `json:"title" bson:"title"`
	Content   string `json:"content" bson:"content"`
	IsHTML    bool   `json:"isHtml" bson:"isHtml"`
	OwnerUID  string `json:"ownerUid" bson:"ownerUid"`
	CreatedAt int64  `json:"createdAt" bson:"createdAt"`
}

// Kind returns the content kind recorded by IsHTML.
func (p *Page) Kind() ContentKind {
	if p.IsHTML {
		return KindHTML
	}
	return KindRich
}

// Comment is stored at pages/{slug}/comments/{id}; comments are append-only.
type Comment struct {
	ID        string `json:"id,omitempty" bson:"-"`
	UID       string `json:"uid" bson:"uid"`
	Text      string `json:"text" bson:"text"`
	CreatedAt int64  `json:"createdAt" bson:"createdAt"`
}
