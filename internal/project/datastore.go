package project

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Datastore handles persistence operations for projects and their members.
// It performs only database operations and returns raw errors.
// Business logic and error translation belong in the Manager.
type Datastore struct {
	db *sql.DB
}

// NewDatastore creates a new project datastore.
func NewDatastore(db *sql.DB) *Datastore {
	return &Datastore{db: db}
}

const selectProjectWithMembers = `
	SELECT p.id, p.name, p.key, p.description, p.type, p.owner, p.created_at, m.email, m.role
	FROM projects p
	LEFT JOIN project_members m ON m.project_id = p.id`

// Create inserts p and its creator's Admin membership in one transaction.
func (ds *Datastore) Create(ctx context.Context, p *Project) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()

	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO projects (id, name, key, description, type, owner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if err = tx.QueryRowContext(ctx, query,
		p.ID, p.Name, p.Key, p.Description, p.Type, p.Owner, p.CreatedAt,
	).Scan(&p.CreatedAt); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, email, role) VALUES ($1, $2, $3)`,
		p.ID, p.Owner, string(RoleAdmin),
	); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	p.Members = []Member{{Email: p.Owner, Role: RoleAdmin}}
	return nil
}

// GetByID retrieves a project with its members in insertion order.
// Returns sql.ErrNoRows if not found.
func (ds *Datastore) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := selectProjectWithMembers + `
		WHERE p.id = $1
		ORDER BY m.seq`

	rows, err := ds.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	projects, err := scanProjects(rows)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, sql.ErrNoRows
	}
	return projects[0], nil
}

// ListForMember retrieves every project whose member list contains email,
// oldest first.
func (ds *Datastore) ListForMember(ctx context.Context, email string) ([]*Project, error) {
	query := selectProjectWithMembers + `
		WHERE p.id IN (SELECT project_id FROM project_members WHERE email = $1)
		ORDER BY p.created_at, p.id, m.seq`

	rows, err := ds.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanProjects(rows)
}

// scanProjects folds joined project/member rows into projects.
// Rows of one project must be adjacent.
func scanProjects(rows *sql.Rows) ([]*Project, error) {
	var (
		projects []*Project
		current  *Project
	)
	for rows.Next() {
		var (
			p           Project
			description sql.NullString
			email, role sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Key, &description, &p.Type, &p.Owner, &p.CreatedAt, &email, &role,
		); err != nil {
			return nil, err
		}

		if current == nil || current.ID != p.ID {
			if description.Valid {
				p.Description = &description.String
			}
			p.Members = []Member{}
			current = &p
			projects = append(projects, current)
		}
		if email.Valid {
			current.Members = append(current.Members, Member{Email: email.String, Role: Role(role.String)})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

// Update modifies the editable fields of a project.
// Returns rows affected count for caller to interpret.
func (ds *Datastore) Update(ctx context.Context, p *Project) (int64, error) {
	query := `
		UPDATE projects
		SET name = $2, key = $3, description = $4, type = $5
		WHERE id = $1`

	result, err := ds.db.ExecContext(ctx, query, p.ID, p.Name, p.Key, p.Description, p.Type)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes a project. Its members go with it through ON DELETE CASCADE.
func (ds *Datastore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := ds.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// AddMember appends a member to a project.
func (ds *Datastore) AddMember(ctx context.Context, projectID uuid.UUID, m Member) error {
	_, err := ds.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, email, role) VALUES ($1, $2, $3)`,
		projectID, m.Email, string(m.Role),
	)
	return err
}

// UpdateMemberRole changes the role of an existing member.
func (ds *Datastore) UpdateMemberRole(ctx context.Context, projectID uuid.UUID, email string, role Role) (int64, error) {
	result, err := ds.db.ExecContext(ctx,
		`UPDATE project_members SET role = $3 WHERE project_id = $1 AND email = $2`,
		projectID, email, string(role),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RemoveMember deletes a member from a project.
func (ds *Datastore) RemoveMember(ctx context.Context, projectID uuid.UUID, email string) (int64, error) {
	result, err := ds.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND email = $2`,
		projectID, email,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
