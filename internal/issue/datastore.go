package issue

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

// Datastore handles persistence operations for issues.
// It performs only database operations and returns raw errors.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a new issue datastore.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

const issueColumns = `id, project_id, title, description, status, reporter, assignee, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(row scanner) (*Issue, error) {
	var (
		i           Issue
		description sql.NullString
		assignee    sql.NullString
	)
	if err := row.Scan(
		&i.ID, &i.ProjectID, &i.Title, &description, &i.Status, &i.Reporter, &assignee, &i.CreatedAt, &i.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		i.Description = &description.String
	}
	if assignee.Valid {
		i.Assignee = &assignee.String
	}
	return &i, nil
}

// Create inserts a new issue.
func (ds *Datastore) Create(ctx context.Context, i *Issue) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO issues (` + issueColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return ds.db.QueryRowContext(ctx, query,
		i.ID, i.ProjectID, i.Title, i.Description, string(i.Status), i.Reporter, i.Assignee, now, now,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
}

// ListByProject retrieves the issues of a project in creation order.
func (ds *Datastore) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE project_id = $1 ORDER BY created_at, id`

	rows, err := ds.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var issues []*Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return issues, nil
}

// Get retrieves an issue that belongs to projectID.
// Returns sql.ErrNoRows if not found.
func (ds *Datastore) Get(ctx context.Context, projectID, id uuid.UUID) (*Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1 AND project_id = $2`
	return scanIssue(ds.db.QueryRowContext(ctx, query, id, projectID))
}

// Update replaces the editable fields of an issue and bumps updated_at.
func (ds *Datastore) Update(ctx context.Context, i *Issue) (int64, error) {
	i.UpdatedAt = time.Now()

	query := `
		UPDATE issues
		SET title = $3, description = $4, status = $5, assignee = $6, updated_at = $7
		WHERE id = $1 AND project_id = $2`

	result, err := ds.db.ExecContext(ctx, query,
		i.ID, i.ProjectID, i.Title, i.Description, string(i.Status), i.Assignee, i.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes an issue from a project.
func (ds *Datastore) Delete(ctx context.Context, projectID, id uuid.UUID) (int64, error) {
	result, err := ds.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
