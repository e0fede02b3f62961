package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"societyos.org/internal/ids"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, name, phone, email, password_hash, role, society_id, refresh_token, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u       User
		society sql.NullString
		refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.PasswordHash, &u.Role,
		&society, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.SocietyID = society.String
	u.RefreshToken = refresh.String
	return &u, nil
}

func (s *PGStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, name, phone, email, password_hash, role)
		 values($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Phone, u.Email, u.PasswordHash, u.Role,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *PGStore) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where phone=$1`, phone))
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *PGStore) FindByRefreshToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where refresh_token=$1`, token))
}

func (s *PGStore) SetRefreshToken(ctx context.Context, userID, token string) error {
	return s.updateOne(ctx,
		`update users set refresh_token=nullif($2,''), updated_at=now() where id=$1`,
		userID, token)
}

func (s *PGStore) SetSociety(ctx context.Context, userID, societyID string) error {
	return s.updateOne(ctx,
		`update users set society_id=$2, updated_at=now() where id=$1`,
		userID, societyID)
}

func (s *PGStore) Delete(ctx context.Context, userID string) error {
	return s.updateOne(ctx, `delete from users where id=$1`, userID)
}

func (s *PGStore) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation matches Postgres error code 23505 without importing the
// driver's error type into every call site.
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
