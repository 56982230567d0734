package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sprintium/internal/database"
	"sprintium/internal/user"
)

// Domain errors returned by the Manager.
var (
	ErrNotFound       = errors.New("project not found")
	ErrNotMember      = errors.New("not a member of this project")
	ErrForbidden      = errors.New("insufficient role for this action")
	ErrKeyTaken       = errors.New("project key already exists")
	ErrAlreadyMember  = errors.New("user is already a member")
	ErrMemberNotFound = errors.New("member not found")
	ErrInvalidName    = errors.New("project name is required")
	ErrInvalidKey     = errors.New("project key must be between 2 and 10 characters")
	ErrInvalidRole    = errors.New("role must be one of Admin, Member, Viewer")
	ErrInvalidEmail   = errors.New("invalid member email")
)

const (
	keyConstraint    = "projects_key_key"
	memberConstraint = "project_members_pkey"
)

// Manager handles business logic for projects and their members.
// Every operation on an existing project loads it first, so a missing
// project is reported before any permission check.
type Manager struct {
	ds *Datastore
}

// NewManager creates a new project manager.
func NewManager(ds *Datastore) *Manager {
	return &Manager{ds: ds}
}

// normalizeInput trims and validates in, upper-casing the key and defaulting the type.
func normalizeInput(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, ErrInvalidName
	}

	in.Key = strings.ToUpper(strings.TrimSpace(in.Key))
	if n := len([]rune(in.Key)); n < MinKeyLength || n > MaxKeyLength {
		return in, ErrInvalidKey
	}

	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" {
		in.Type = DefaultType
	}
	return in, nil
}

// Create creates a project owned by owner, who becomes its first Admin.
func (m *Manager) Create(ctx context.Context, owner string, in Input) (*Project, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Name:        in.Name,
		Key:         in.Key,
		Description: in.Description,
		Type:        in.Type,
		Owner:       owner,
	}

	if err := m.ds.Create(ctx, p); err != nil {
		if database.IsUniqueViolation(err, keyConstraint) {
			return nil, ErrKeyTaken
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return p, nil
}

// ListForMember returns the projects email belongs to.
func (m *Manager) ListForMember(ctx context.Context, email string) ([]*Project, error) {
	projects, err := m.ds.ListForMember(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if projects == nil {
		projects = []*Project{}
	}
	return projects, nil
}

// GetByID retrieves a project without any permission check.
func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	p, err := m.ds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// load fetches a project and checks that email may perform action on it.
func (m *Manager) load(ctx context.Context, id uuid.UUID, email string, action Action) (*Project, error) {
	p, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Authorize(p, email, action); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a project the caller is a member of.
func (m *Manager) Get(ctx context.Context, id uuid.UUID, email string) (*Project, error) {
	return m.load(ctx, id, email, ActionView)
}

// Update replaces a project's name, key, description and type. Admin only.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, email string, in Input) (*Project, error) {
	p, err := m.load(ctx, id, email, ActionUpdateProject)
	if err != nil {
		return nil, err
	}

	in, err = normalizeInput(in)
	if err != nil {
		return nil, err
	}

	p.Name = in.Name
	p.Key = in.Key
	p.Description = in.Description
	p.Type = in.Type

	rowsAffected, err := m.ds.Update(ctx, p)
	if err != nil {
		if database.IsUniqueViolation(err, keyConstraint) {
			return nil, ErrKeyTaken
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return p, nil
}

// Delete removes a project. Admin only.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID, email string) error {
	if _, err := m.load(ctx, id, email, ActionDeleteProject); err != nil {
		return err
	}

	rowsAffected, err := m.ds.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeMember(email string, role Role) (string, error) {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return "", ErrInvalidEmail
	}
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return normalized, nil
}

// AddMember grants email the given role. Admin only.
// The member does not need a registered account.
func (m *Manager) AddMember(ctx context.Context, id uuid.UUID, actor, email string, role Role) (*Project, error) {
	p, err := m.load(ctx, id, actor, ActionManageMembers)
	if err != nil {
		return nil, err
	}

	email, err = normalizeMember(email, role)
	if err != nil {
		return nil, err
	}

	if err := m.ds.AddMember(ctx, p.ID, Member{Email: email, Role: role}); err != nil {
		if database.IsUniqueViolation(err, memberConstraint) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	p.Members = append(p.Members, Member{Email: email, Role: role})
	return p, nil
}

// UpdateMemberRole changes the role of an existing member. Admin only.
func (m *Manager) UpdateMemberRole(ctx context.Context, id uuid.UUID, actor, email string, role Role) (*Project, error) {
	p, err := m.load(ctx, id, actor, ActionManageMembers)
	if err != nil {
		return nil, err
	}

	email, err = normalizeMember(email, role)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := m.ds.UpdateMemberRole(ctx, p.ID, email, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrMemberNotFound
	}

	for i := range p.Members {
		if p.Members[i].Email == email {
			p.Members[i].Role = role
		}
	}
	return p, nil
}

// RemoveMember revokes email's membership. Admin only.
// Removing someone who is not a member succeeds and leaves the project unchanged.
func (m *Manager) RemoveMember(ctx context.Context, id uuid.UUID, actor, email string) (*Project, error) {
	p, err := m.load(ctx, id, actor, ActionManageMembers)
	if err != nil {
		return nil, err
	}

	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return p, nil
	}

	if _, err := m.ds.RemoveMember(ctx, p.ID, normalized); err != nil {
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}

	kept := p.Members[:0]
	for _, member := range p.Members {
		if member.Email != normalized {
			kept = append(kept, member)
		}
	}
	p.Members = kept
	return p, nil
}
