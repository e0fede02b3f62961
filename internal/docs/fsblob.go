package docs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"societyos.org/internal/ids"
)

// FSBlobStore writes blobs under a local directory and serves them back
// through a base URL prefix. Good enough for single-node deployments; swap
// in an object-store implementation behind the same interface otherwise.
type FSBlobStore struct {
	root    string
	baseURL string
}

var _ BlobStore = (*FSBlobStore)(nil)

func NewFSBlobStore(root, baseURL string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSBlobStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSBlobStore) Put(ctx context.Context, name, mimeType string, r io.Reader) (FileRef, error) {
	// Each file gets its own directory so equal names cannot clobber
	// each other.
	key := ids.New()
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = "upload"
	}
	dir := filepath.Join(s.root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FileRef{}, err
	}
	f, err := os.Create(filepath.Join(dir, base))
	if err != nil {
		return FileRef{}, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{
		Filename: base,
		URL:      s.baseURL + "/" + path.Join(key, base),
		Size:     n,
		MimeType: mimeType,
	}, nil
}
