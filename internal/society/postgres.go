package society

import (
	"context"
	"database/sql"
	"errors"

	"societyos.org/internal/ids"
)

// PGStore implements Store using PostgreSQL. The roster is the
// society_members relation; AddMember is one conflict-ignoring insert, so
// concurrent admissions cannot lose each other.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, soc *Society) error {
	if soc.ID == "" {
		soc.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into societies(id, name, address, city, state, pin_code, manager_id)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		soc.ID, soc.Name, soc.Address, soc.City, soc.State, soc.PinCode, soc.ManagerID,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Society, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, address, city, state, pin_code, manager_id, created_at
		 from societies where id=$1`, id)
	var soc Society
	err := row.Scan(&soc.ID, &soc.Name, &soc.Address, &soc.City, &soc.State,
		&soc.PinCode, &soc.ManagerID, &soc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &soc, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from societies where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) AddMember(ctx context.Context, societyID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`insert into society_members(society_id, user_id)
		 values($1,$2)
		 on conflict (society_id, user_id) do nothing`,
		societyID, userID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}

func (s *PGStore) Members(ctx context.Context, societyID string) ([]string, error) {
	if _, err := s.Find(ctx, societyID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select user_id from society_members where society_id=$1 order by added_at asc`,
		societyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23503"
	}
	return false
}
