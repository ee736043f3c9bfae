// Package channel implements the message protocol between a sandboxed page
// frame and the service. A frame can only reach the service through the
// capability it was given when rendered, and only while it is the frame on
// display.
package channel

import (
	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/users"
)

// Message types.
const (
	TypeRequestUserMeta   = "requestUserMeta"
	TypeUserMetaResponse  = "userMetaResponse"
	TypeRequestAddComment = "requestAddComment"
	TypeCommentAdded      = "commentAdded"
	TypeError             = "error"
)

// ReasonNotAuth is the commentAdded reason when nobody is signed in.
const ReasonNotAuth = "not-auth"

// Request is any inbound message; fields irrelevant to Type are ignored.
type Request struct {
	Type     string `json:"type"`
	OwnerUID string `json:"ownerUid,omitempty"`
	Slug     string `json:"slug,omitempty"`
	Text     string `json:"text,omitempty"`
}

type UserMetaResponse struct {
	Type     string        `json:"type"`
	OwnerUID string        `json:"ownerUid"`
	Meta     users.Summary `json:"meta"`
}

type CommentAdded struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Reason  string          `json:"reason,omitempty"`
	Comment *models.Comment `json:"comment,omitempty"`
}

type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
