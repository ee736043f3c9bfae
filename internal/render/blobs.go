package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
)

// ErrBlobNotFound is returned for handles that were never issued or already released.
var ErrBlobNotFound = errors.New("frame document not found")

// Blobs holds the documents served to sandboxed frames, one per handle.
type Blobs interface {
	Put(ctx context.Context, handle string, doc []byte) error
	Get(ctx context.Context, handle string) ([]byte, error)
	Release(ctx context.Context, handle string) error
}

// MemoryBlobs keeps frame documents in process.
type MemoryBlobs struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{docs: make(map[string][]byte)}
}

func (m *MemoryBlobs) Put(ctx context.Context, handle string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[handle] = append([]byte(nil), doc...)
	return nil
}

func (m *MemoryBlobs) Get(ctx context.Context, handle string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[handle]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return d, nil
}

func (m *MemoryBlobs) Release(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, handle)
	return nil
}

// Len reports how many documents are held.
func (m *MemoryBlobs) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// ObjectStore is the subset of storage.MinIOStorage used for frame documents.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	RemoveFile(ctx context.Context, key string) error
}

// MinioBlobs keeps frame documents as objects under a key prefix.
type MinioBlobs struct {
	store  ObjectStore
	prefix string
}

func NewMinioBlobs(s ObjectStore, prefix string) *MinioBlobs {
	if prefix == "" {
		prefix = "frames/"
	}
	return &MinioBlobs{store: s, prefix: prefix}
}

func (b *MinioBlobs) Put(ctx context.Context, handle string, doc []byte) error {
	return b.store.UploadFile(ctx, b.prefix+handle, bytes.NewReader(doc), int64(len(doc)), "text/html; charset=utf-8")
}

func (b *MinioBlobs) Get(ctx context.Context, handle string) ([]byte, error) {
	rc, err := b.store.DownloadFile(ctx, b.prefix+handle)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (b *MinioBlobs) Release(ctx context.Context, handle string) error {
	return b.store.RemoveFile(ctx, b.prefix+handle)
}
