package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Noel-Mtf/yesshare/internal/comments"
	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/Noel-Mtf/yesshare/pkg/metrics"
)

// Session is the viewer side of a channel.
type Session interface {
	// IsActive reports whether capability belongs to the frame on display.
	IsActive(capability string) bool
	CurrentUID() string
	// CommentsChanged asks the host to refresh comments of slug if it is still open.
	CommentsChanged(slug string)
}

// MetaSource supplies owner summaries.
type MetaSource interface {
	Summary(ctx context.Context, uid string) (*users.Summary, error)
}

// CommentWriter appends comments.
type CommentWriter interface {
	Add(ctx context.Context, slug, uid, text string, max int, src comments.Source) (*models.Comment, error)
}

// Dispatcher answers frame requests.
type Dispatcher struct {
	meta     MetaSource
	comments CommentWriter
	maxText  int
}

func NewDispatcher(m MetaSource, c CommentWriter, maxText int) *Dispatcher {
	if maxText <= 0 {
		maxText = comments.MaxRelayedLength
	}
	return &Dispatcher{meta: m, comments: c, maxText: maxText}
}

// Handle processes one raw message sent with capability. It returns the reply
// to send back, or nil when the message must be ignored: a capability that is
// not the session's active one, input that is not a JSON object, an unknown
// type or missing required fields. Handler failures, panics included, become
// an error reply.
func (d *Dispatcher) Handle(ctx context.Context, sess Session, capability string, raw []byte) (reply interface{}) {
	if sess == nil || !sess.IsActive(capability) {
		metrics.ChannelMessages.WithLabelValues("unknown", "dropped").Inc()
		return nil
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		metrics.ChannelMessages.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("channel: %s handler panic: %v", req.Type, r)
			metrics.ChannelMessages.WithLabelValues(req.Type, "error").Inc()
			reply = ErrorReply{Type: TypeError, Message: fmt.Sprint(r)}
		}
	}()

	var err error
	switch {
	case req.Type == TypeRequestUserMeta && req.OwnerUID != "":
		reply, err = d.userMeta(ctx, req)
	case req.Type == TypeRequestAddComment && req.Slug != "" && req.Text != "":
		reply, err = d.addComment(ctx, sess, req)
	default:
		metrics.ChannelMessages.WithLabelValues("unknown", "ignored").Inc()
		return nil
	}
	if err != nil {
		metrics.ChannelMessages.WithLabelValues(req.Type, "error").Inc()
		return ErrorReply{Type: TypeError, Message: failure.Message(err)}
	}
	metrics.ChannelMessages.WithLabelValues(req.Type, "ok").Inc()
	return reply
}

func (d *Dispatcher) userMeta(ctx context.Context, req Request) (interface{}, error) {
	sum, err := d.meta.Summary(ctx, req.OwnerUID)
	if err != nil {
		return nil, err
	}
	return UserMetaResponse{Type: TypeUserMetaResponse, OwnerUID: req.OwnerUID, Meta: *sum}, nil
}

func (d *Dispatcher) addComment(ctx context.Context, sess Session, req Request) (interface{}, error) {
	uid := sess.CurrentUID()
	if uid == "" {
		return CommentAdded{Type: TypeCommentAdded, Success: false, Reason: ReasonNotAuth}, nil
	}
	c, err := d.comments.Add(ctx, req.Slug, uid, req.Text, d.maxText, comments.SourceFrame)
	if err != nil {
		return nil, err
	}
	sess.CommentsChanged(slug.Normalize(req.Slug))
	return CommentAdded{Type: TypeCommentAdded, Success: true, Comment: c}, nil
}
