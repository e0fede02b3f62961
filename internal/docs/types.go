package docs

import (
	"context"
	"errors"
	"io"
	"time"
)

// FileRef points at one stored blob. The blob itself lives behind a
// BlobStore; only the reference is persisted here.
type FileRef struct {
	Filename string `json:"filename"`
	URL      string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimetype"`
}

// Document is manager-uploaded paperwork (notices, bylaws, invoices).
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ManagerID   string    `json:"manager"`
	Files       []FileRef `json:"files"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BlobStore is the external binary storage collaborator. The service only
// needs to put bytes somewhere and get a URL back; retrieval happens out of
// band through that URL.
type BlobStore interface {
	Put(ctx context.Context, name, mimeType string, r io.Reader) (FileRef, error)
}

// Store persists document metadata.
type Store interface {
	Create(ctx context.Context, d *Document) error
	ByManager(ctx context.Context, managerID string) ([]Document, error)
}

var (
	ErrNotFound     = errors.New("docs: not found")
	ErrInvalidInput = errors.New("docs: invalid input")
)
