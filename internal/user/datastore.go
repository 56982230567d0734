package user

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTX is the interface for database operations.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Datastore handles database operations for users.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a new user datastore.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

// Create inserts a new user. The ID is generated here when unset.
func (ds *Datastore) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return ds.db.QueryRowContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, time.Now(),
	).Scan(&u.CreatedAt)
}

// GetByEmail retrieves a user by email.
func (ds *Datastore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE email = $1`

	u := &User{}
	err := ds.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdatePassword replaces the stored password hash.
func (ds *Datastore) UpdatePassword(ctx context.Context, email, passwordHash string) (int64, error) {
	query := `UPDATE users SET password_hash = $2 WHERE email = $1`
	result, err := ds.db.ExecContext(ctx, query, email, passwordHash)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
