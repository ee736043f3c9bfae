package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryTree is an in-process Tree used for development and tests.
// Records are kept JSON encoded so callers never share memory with the store.
type MemoryTree struct {
	mu    sync.RWMutex
	nodes map[string][]byte
}

func NewMemoryTree() *MemoryTree {
	return &MemoryTree{nodes: make(map[string][]byte)}
}

func (m *MemoryTree) Get(ctx context.Context, path string, out interface{}) (bool, error) {
	if err := validatePath(path); err != nil {
		return false, err
	}
	m.mu.RLock()
	b, ok := m.nodes[path]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	return true, json.Unmarshal(b, out)
}

func (m *MemoryTree) Exists(ctx context.Context, path string) (bool, error) {
	return m.Get(ctx, path, nil)
}

func (m *MemoryTree) Set(ctx context.Context, path string, v interface{}) error {
	if err := validatePath(path); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[path] = b
	return nil
}

func (m *MemoryTree) Create(ctx context.Context, path string, v interface{}) error {
	if err := validatePath(path); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[path]; ok {
		return ErrExists
	}
	m.nodes[path] = b
	return nil
}

func (m *MemoryTree) Update(ctx context.Context, path string, partial map[string]interface{}) error {
	if err := validatePath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.nodes[path]
	if !ok {
		return ErrNotFound
	}
	rec := map[string]interface{}{}
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	for k, v := range partial {
		rec[k] = v
	}
	nb, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.nodes[path] = nb
	return nil
}

func (m *MemoryTree) Push(ctx context.Context, path string, v interface{}) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	key := id.String()
	if err := m.Create(ctx, Join(path, key), v); err != nil {
		return "", err
	}
	return key, nil
}

func (m *MemoryTree) Children(ctx context.Context, path string) ([]Entry, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	prefix := path + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Entry{}
	for p, b := range m.nodes {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		key := p[len(prefix):]
		if strings.Contains(key, "/") {
			continue
		}
		raw := b
		out = append(out, Entry{Key: key, decode: func(v interface{}) error { return json.Unmarshal(raw, v) }})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
