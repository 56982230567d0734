package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"sprintium/internal/database"
)

// Domain errors
var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidUsername    = errors.New("username is required and must be at most 64 characters")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPassword    = errors.New("password must be between 8 and 72 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

const emailConstraint = "users_email_key"

// Manager handles business logic for users.
type Manager struct {
	ds   *Datastore
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewManager creates a new user manager.
func NewManager(ds *Datastore) *Manager {
	return &Manager{ds: ds, cost: bcrypt.DefaultCost}
}

// NormalizeEmail trims, lower-cases and validates an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// Register creates a user with a bcrypt-hashed password.
// A duplicate email is reported as ErrEmailTaken by the unique constraint.
func (m *Manager) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len([]rune(username)) > MaxUsernameLength {
		return nil, ErrInvalidUsername
	}

	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := m.ds.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err, emailConstraint) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// both return ErrInvalidCredentials, and both pay for a bcrypt comparison.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		m.burnCompare(password)
		return nil, ErrInvalidCredentials
	}

	u, err := m.ds.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			m.burnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// burnCompare runs a comparison against a throwaway hash of the same cost.
func (m *Manager) burnCompare(password string) {
	m.dummyOnce.Do(func() {
		m.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sprintium-dummy-password"), m.cost)
	})
	_ = bcrypt.CompareHashAndPassword(m.dummyHash, []byte(password))
}

// GetByEmail retrieves a user by email.
func (m *Manager) GetByEmail(ctx context.Context, email string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrNotFound
	}

	u, err := m.ds.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ResetPassword replaces the password of the user identified by email.
func (m *Manager) ResetPassword(ctx context.Context, email, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	normalized, err := NormalizeEmail(email)
	if err != nil {
		return ErrNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), m.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	rowsAffected, err := m.ds.UpdatePassword(ctx, normalized, string(hash))
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
