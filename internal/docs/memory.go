package docs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func (s *MemoryStore) Create(ctx context.Context, d *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	cp := *d
	cp.Files = append([]FileRef(nil), d.Files...)
	s.docs[d.ID] = &cp
	return nil
}

func (s *MemoryStore) ByManager(ctx context.Context, managerID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Document
	for _, d := range s.docs {
		if d.ManagerID == managerID {
			cp := *d
			cp.Files = append([]FileRef(nil), d.Files...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// MemoryBlobStore is a BlobStore for tests and local development: blobs stay
// in process and the URL is a synthetic reference.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	seq   int
}

var _ BlobStore = (*MemoryBlobStore)(nil)

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, name, mimeType string, r io.Reader) (FileRef, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return FileRef{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	url := fmt.Sprintf("mem://blobs/%d/%s", s.seq, name)
	s.blobs[url] = buf.Bytes()
	return FileRef{Filename: name, URL: url, Size: n, MimeType: mimeType}, nil
}
