package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mgr := NewManager(NewDatastore(db))
	mgr.cost = bcrypt.MinCost
	return mgr, mock
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func userRows(id uuid.UUID, username, email, hash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at"}).
		AddRow(id.String(), username, email, hash, time.Now())
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"alice@example.com", "alice@example.com", false},
		{"  Alice@Example.COM ", "alice@example.com", false},
		{"", "", true},
		{"   ", "", true},
		{"not-an-email", "", true},
		{"Alice <alice@example.com>", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeEmail(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeEmail(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManager_Register(t *testing.T) {
	mgr, mock := newTestManager(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	u, err := mgr.Register(context.Background(), " alice ", "Alice@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u.ID == uuid.Nil {
		t.Error("expected ID to be generated")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "correct-horse" {
		t.Error("password must not be stored in clear text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct-horse")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestManager_Register_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"empty username", "  ", "a@example.com", "password1", ErrInvalidUsername},
		{"invalid email", "alice", "nope", "password1", ErrInvalidEmail},
		{"short password", "alice", "a@example.com", "short", ErrInvalidPassword},
		{"long password", "alice", "a@example.com", string(make([]byte, 73)), ErrInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(NewDatastore(nil)) // validation fails before the db is used
			_, err := mgr.Register(context.Background(), tt.username, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestManager_Register_DuplicateEmail(t *testing.T) {
	mgr, mock := newTestManager(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := mgr.Register(context.Background(), "alice", "alice@example.com", "correct-horse")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestManager_Register_DatabaseError(t *testing.T) {
	mgr, mock := newTestManager(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("connection reset"))

	_, err := mgr.Register(context.Background(), "alice", "alice@example.com", "correct-horse")
	if err == nil || errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected wrapped database error, got %v", err)
	}
}

func TestManager_Authenticate(t *testing.T) {
	id := uuid.New()
	hash := hashOf(t, "correct-horse")

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(sqlmock.Sqlmock)
		wantErr  error
	}{
		{
			name:     "valid credentials",
			email:    "ALICE@example.com",
			password: "correct-horse",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
					WithArgs("alice@example.com").
					WillReturnRows(userRows(id, "alice", "alice@example.com", hash))
			},
		},
		{
			name:     "wrong password",
			email:    "alice@example.com",
			password: "battery-staple",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
					WithArgs("alice@example.com").
					WillReturnRows(userRows(id, "alice", "alice@example.com", hash))
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			email:    "ghost@example.com",
			password: "correct-horse",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
					WithArgs("ghost@example.com").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "malformed email",
			email:    "not-an-email",
			password: "correct-horse",
			setup:    func(sqlmock.Sqlmock) {},
			wantErr:  ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, mock := newTestManager(t)
			tt.setup(mock)

			u, err := mgr.Authenticate(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && u.ID != id {
				t.Errorf("expected user %s, got %s", id, u.ID)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestManager_GetByEmail(t *testing.T) {
	mgr, mock := newTestManager(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("bob@example.com").
		WillReturnRows(userRows(id, "bob", "bob@example.com", "hash"))

	u, err := mgr.GetByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "bob" {
		t.Errorf("expected username bob, got %q", u.Username)
	}
}

func TestManager_GetByEmail_NotFound(t *testing.T) {
	mgr, mock := newTestManager(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{}))

	_, err := mgr.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_ResetPassword(t *testing.T) {
	mgr, mock := newTestManager(t)

	mock.ExpectExec(`UPDATE users SET password_hash = \$2 WHERE email = \$1`).
		WithArgs("alice@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := mgr.ResetPassword(context.Background(), "alice@example.com", "new-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestManager_ResetPassword_NotFound(t *testing.T) {
	mgr, mock := newTestManager(t)

	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := mgr.ResetPassword(context.Background(), "ghost@example.com", "new-password")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_ResetPassword_InvalidPassword(t *testing.T) {
	mgr := NewManager(NewDatastore(nil))

	err := mgr.ResetPassword(context.Background(), "alice@example.com", "short")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	data, err := json.Marshal(&User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "secret-hash"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret-hash") || strings.Contains(string(data), "password") {
		t.Errorf("user JSON leaks password hash: %s", data)
	}
}
