package docs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"societyos.org/internal/ids"
)

// PGStore implements Store using PostgreSQL. File references are stored as
// a jsonb column; the blobs themselves never touch the database.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, d *Document) error {
	if d.ID == "" {
		d.ID = ids.New()
	}
	files, err := json.Marshal(d.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`insert into documents(id, title, description, manager_id, files)
		 values($1,$2,$3,$4,$5)`,
		d.ID, d.Title, d.Description, d.ManagerID, files,
	)
	return err
}

func (s *PGStore) ByManager(ctx context.Context, managerID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, title, description, manager_id, files, created_at
		 from documents where manager_id=$1 order by created_at desc, id desc`, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var files []byte
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.ManagerID, &files, &d.CreatedAt); err != nil {
			return nil, err
		}
		if len(files) > 0 {
			if err := json.Unmarshal(files, &d.Files); err != nil {
				return nil, fmt.Errorf("decode files: %w", err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
