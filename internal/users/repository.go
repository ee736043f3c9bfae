package users

import (
	"context"

	"github.com/Noel-Mtf/yesshare/internal/models"
	"github.com/Noel-Mtf/yesshare/internal/store"
)

// UserRepository defines persistence operations for profiles
type UserRepository interface {
	// Get returns (nil, nil) when no profile exists for uid.
	Get(ctx context.Context, uid string) (*models.User, error)
	Put(ctx context.Context, u *models.User) error
	Merge(ctx context.Context, uid string, fields map[string]interface{}) error
}

// TreeUserRepository keeps profiles at users/{uid} in a key-tree store
type TreeUserRepository struct {
	tree store.Tree
}

func NewTreeUserRepository(t store.Tree) *TreeUserRepository {
	return &TreeUserRepository{tree: t}
}

func userPath(uid string) string {
	return store.Join("users", uid)
}

func (r *TreeUserRepository) Get(ctx context.Context, uid string) (*models.User, error) {
	var u models.User
	found, err := r.tree.Get(ctx, userPath(uid), &u)
	if err != nil || !found {
		return nil, err
	}
	u.UID = uid
	return &u, nil
}

func (r *TreeUserRepository) Put(ctx context.Context, u *models.User) error {
	return r.tree.Set(ctx, userPath(u.UID), u)
}

func (r *TreeUserRepository) Merge(ctx context.Context, uid string, fields map[string]interface{}) error {
	return r.tree.Update(ctx, userPath(uid), fields)
}
