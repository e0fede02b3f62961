package docs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"societyos.org/internal/audit"
	"societyos.org/internal/ids"
)

// Upload carries one file of an upload request.
type Upload struct {
	Filename string
	MimeType string
	Content  io.Reader
}

// Service stores document metadata and pushes blobs to the external store.
type Service struct {
	store Store
	blobs BlobStore
}

func NewService(store Store, blobs BlobStore) *Service {
	return &Service{store: store, blobs: blobs}
}

// UploadDocument validates the request, stores each blob and persists the
// document metadata with the returned references.
func (s *Service) UploadDocument(ctx context.Context, title, description, managerID string, uploads []Upload) (*Document, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	managerID = strings.TrimSpace(managerID)
	if title == "" || description == "" || managerID == "" {
		return nil, fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrInvalidInput)
	}

	doc := &Document{
		ID:          ids.New(),
		Title:       title,
		Description: description,
		ManagerID:   managerID,
	}
	for _, up := range uploads {
		ref, err := s.blobs.Put(ctx, up.Filename, up.MimeType, up.Content)
		if err != nil {
			return nil, err
		}
		doc.Files = append(doc.Files, ref)
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}

	_ = audit.LogEvent(ctx, "document.upload", map[string]any{
		"document_id": doc.ID,
		"manager_id":  managerID,
		"files":       len(doc.Files),
	})
	return doc, nil
}

// ByManager lists a manager's documents, newest first.
func (s *Service) ByManager(ctx context.Context, managerID string) ([]Document, error) {
	if strings.TrimSpace(managerID) == "" {
		return nil, fmt.Errorf("%w: managerId is required", ErrInvalidInput)
	}
	out, err := s.store.ByManager(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Document{}
	}
	return out, nil
}
