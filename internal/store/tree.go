package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("node not found")
	ErrExists      = errors.New("node already exists")
	ErrInvalidPath = errors.New("invalid path")
)

// Tree is a key-tree document store addressed by slash separated paths
// such as "pages/demo" or "pages/demo/comments/<key>".
//
// Every path holds an independent record: writing "pages/demo" never touches
// the records below it, and Children only returns direct descendants.
type Tree interface {
	// Get decodes the record at path into out. found is false when absent.
	Get(ctx context.Context, path string, out interface{}) (found bool, err error)
	Exists(ctx context.Context, path string) (bool, error)
	// Set writes v at path, replacing any previous record.
	Set(ctx context.Context, path string, v interface{}) error
	// Create writes v at path only when nothing is there yet; ErrExists otherwise.
	Create(ctx context.Context, path string, v interface{}) error
	// Update merges the top-level fields of partial into the record at path.
	Update(ctx context.Context, path string, partial map[string]interface{}) error
	// Push stores v under a generated, insertion-ordered key below path.
	Push(ctx context.Context, path string, v interface{}) (string, error)
	// Children lists the direct children of path ordered by key.
	Children(ctx context.Context, path string) ([]Entry, error)
}

// Entry is one child record returned by Tree.Children.
type Entry struct {
	Key    string
	decode func(out interface{}) error
}

// Decode unmarshals the child record into out.
func (e Entry) Decode(out interface{}) error {
	if e.decode == nil {
		return fmt.Errorf("entry %q: no value", e.Key)
	}
	return e.decode(out)
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func validatePath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

func splitParent(path string) (parent, key string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
