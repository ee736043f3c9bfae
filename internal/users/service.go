package users

import (
	"context"
	"strings"
	"time"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/internal/models"
)

// Placeholders shown when a profile or one of its fields is missing.
const (
	NoName  = "(no-name)"
	NoEmail = "\u2014"
)

// PageCounter counts the pages published by an owner.
type PageCounter interface {
	CountByOwner(ctx context.Context, uid string) (int, error)
}

// Summary is the public metadata of a page owner.
type Summary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Count    int    `json:"count"`
}

// Service encapsulates profile business logic
type Service struct {
	repo  UserRepository
	pages PageCounter
	now   func() time.Time
}

func NewService(r UserRepository, pages PageCounter) *Service {
	return &Service{repo: r, pages: pages, now: time.Now}
}

// Register writes the profile of an account the identity provider just created.
func (s *Service) Register(ctx context.Context, uid, username, email string) (*models.User, error) {
	const op = "users.Register"
	if uid == "" {
		return nil, failure.Newf(failure.KindValidation, op, "missing user id")
	}
	u := &models.User{
		UID:       uid,
		Username:  strings.TrimSpace(username),
		Email:     strings.TrimSpace(email),
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, failure.E(failure.KindStore, op, err)
	}
	return u, nil
}

// EnsureFromClaims returns the profile for the token subject, creating it from the
// claims when the account predates its profile. Missing sub yields (nil, nil).
func (s *Service) EnsureFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, nil
	}
	u, err := s.repo.Get(ctx, sub)
	if err != nil {
		return nil, failure.E(failure.KindStore, "users.EnsureFromClaims", err)
	}
	if u != nil {
		return u, nil
	}
	email, _ := claims["email"].(string)
	name, _ := claims["preferred_username"].(string)
	if name == "" {
		name, _ = claims["name"].(string)
	}
	return s.Register(ctx, sub, name, email)
}

func (s *Service) Get(ctx context.Context, uid string) (*models.User, error) {
	u, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, failure.E(failure.KindStore, "users.Get", err)
	}
	return u, nil
}

// SetAvatar stores photo on the caller's own profile. Only the owner may change it.
func (s *Service) SetAvatar(ctx context.Context, caller, uid, photo string) error {
	const op = "users.SetAvatar"
	if caller == "" {
		return failure.Newf(failure.KindUnauthenticated, op, "sign in to change your avatar")
	}
	if caller != uid {
		return failure.Newf(failure.KindForbidden, op, "only the owner may change this avatar")
	}
	u, err := s.repo.Get(ctx, uid)
	if err != nil {
		return failure.E(failure.KindStore, op, err)
	}
	if u == nil {
		return failure.Newf(failure.KindNotFound, op, "no profile for %s", uid)
	}
	if err := s.repo.Merge(ctx, uid, map[string]interface{}{"photo": photo}); err != nil {
		return failure.E(failure.KindStore, op, err)
	}
	return nil
}

// Summary reports the owner's name, email and published page count, falling back
// to placeholders when the profile is missing.
func (s *Service) Summary(ctx context.Context, uid string) (*Summary, error) {
	const op = "users.Summary"
	u, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, failure.E(failure.KindStore, op, err)
	}
	sum := &Summary{Username: NoName, Email: NoEmail}
	if u != nil {
		if u.Username != "" {
			sum.Username = u.Username
		}
		if u.Email != "" {
			sum.Email = u.Email
		}
	}
	if s.pages != nil {
		n, err := s.pages.CountByOwner(ctx, uid)
		if err != nil {
			return nil, failure.E(failure.KindStore, op, err)
		}
		sum.Count = n
	}
	return sum, nil
}
