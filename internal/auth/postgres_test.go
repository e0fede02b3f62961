package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "phone", "email", "password_hash", "role",
		"society_id", "refresh_token", "created_at", "updated_at",
	})
}

func TestPGStoreFindByPhone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`select .* from users where phone=\$1`).
		WithArgs("9000000001").
		WillReturnRows(userRows().AddRow(
			"u1", "Asha Rao", "9000000001", "asha@example.com", "hash", "member",
			nil, nil, now, now,
		))

	store := NewPGStore(db)
	u, err := store.FindByPhone(context.Background(), "9000000001")
	if err != nil {
		t.Fatalf("FindByPhone: %v", err)
	}
	if u.ID != "u1" || u.Role != RoleMember || u.SocietyID != "" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreCreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`insert into users`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "users_phone_key" (SQLSTATE 23505)`))

	store := NewPGStore(db)
	err = store.Create(context.Background(), &User{
		Name: "A", Phone: "9000000001", Email: "a@example.com", PasswordHash: "h", Role: RoleMember,
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPGStoreSetRefreshToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`update users set refresh_token=nullif\(\$2,''\)`).
		WithArgs("u1", "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update users set refresh_token=nullif\(\$2,''\)`).
		WithArgs("missing", "tok").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.SetRefreshToken(context.Background(), "u1", "tok"); err != nil {
		t.Fatalf("SetRefreshToken: %v", err)
	}
	if err := store.SetRefreshToken(context.Background(), "missing", "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select .* from users where id=\$1`).
		WithArgs("nope").
		WillReturnRows(userRows())

	store := NewPGStore(db)
	if _, err := store.Find(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
