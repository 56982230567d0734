package issue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sprintium/internal/project"
)

// Domain errors returned by the Manager.
var (
	ErrNotFound      = errors.New("issue not found")
	ErrInvalidTitle  = errors.New("issue title is required")
	ErrInvalidStatus = errors.New("status must be one of To Do, In Progress, Done")
)

// ProjectLoader looks up a project with its members.
type ProjectLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*project.Project, error)
}

// Manager handles business logic for issues. Every operation resolves the
// caller's role in the owning project before touching issues.
type Manager struct {
	ds       *Datastore
	projects ProjectLoader
}

// NewManager creates a new issue manager.
func NewManager(ds *Datastore, projects ProjectLoader) *Manager {
	return &Manager{ds: ds, projects: projects}
}

func normalizeInput(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, ErrInvalidTitle
	}
	if in.Status == "" {
		in.Status = StatusToDo
	}
	if !in.Status.Valid() {
		return in, ErrInvalidStatus
	}
	if in.Assignee != nil {
		assignee := strings.ToLower(strings.TrimSpace(*in.Assignee))
		if assignee == "" {
			in.Assignee = nil
		} else {
			in.Assignee = &assignee
		}
	}
	return in, nil
}

// authorize loads the project and returns the caller's role for action.
func (m *Manager) authorize(ctx context.Context, projectID uuid.UUID, email string, action project.Action) (project.Role, error) {
	p, err := m.projects.GetByID(ctx, projectID)
	if err != nil {
		return "", err
	}
	return project.Authorize(p, email, action)
}

// Create files a new issue reported by email. Admins and Members only.
func (m *Manager) Create(ctx context.Context, projectID uuid.UUID, email string, in Input) (*Issue, error) {
	if _, err := m.authorize(ctx, projectID, email, project.ActionCreateIssue); err != nil {
		return nil, err
	}

	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	i := &Issue{
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Reporter:    email,
		Assignee:    in.Assignee,
	}
	if err := m.ds.Create(ctx, i); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return i, nil
}

// List returns a project's issues in creation order. Any member may list.
func (m *Manager) List(ctx context.Context, projectID uuid.UUID, email string) ([]*Issue, error) {
	if _, err := m.authorize(ctx, projectID, email, project.ActionView); err != nil {
		return nil, err
	}

	issues, err := m.ds.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	if issues == nil {
		issues = []*Issue{}
	}
	return issues, nil
}

// load fetches an issue after the membership check and applies the per-issue rule.
func (m *Manager) load(ctx context.Context, projectID, id uuid.UUID, email string, action project.Action) (*Issue, error) {
	role, err := m.authorize(ctx, projectID, email, action)
	if err != nil {
		return nil, err
	}

	i, err := m.ds.Get(ctx, projectID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	if err := project.AuthorizeIssue(role, email, action, i.Reporter, i.Assignee); err != nil {
		return nil, err
	}
	return i, nil
}

// Update replaces an issue's title, description, status and assignee.
// Admins may update any issue, Members only issues they reported or are assigned to.
func (m *Manager) Update(ctx context.Context, projectID, id uuid.UUID, email string, in Input) (*Issue, error) {
	i, err := m.load(ctx, projectID, id, email, project.ActionUpdateIssue)
	if err != nil {
		return nil, err
	}

	in, err = normalizeInput(in)
	if err != nil {
		return nil, err
	}

	i.Title = in.Title
	i.Description = in.Description
	i.Status = in.Status
	i.Assignee = in.Assignee

	rowsAffected, err := m.ds.Update(ctx, i)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}
	return i, nil
}

// Delete removes an issue. Admins may delete any issue, Members only issues they reported.
func (m *Manager) Delete(ctx context.Context, projectID, id uuid.UUID, email string) error {
	if _, err := m.load(ctx, projectID, id, email, project.ActionDeleteIssue); err != nil {
		return err
	}

	rowsAffected, err := m.ds.Delete(ctx, projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
