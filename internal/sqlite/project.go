package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/repository"
)

// ProjectRepository stores projects and their processing counters
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	query := `
		INSERT INTO projects (
			id, expected_file_count, processed_file_count, status,
			error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		proj.ID,
		proj.ExpectedFileCount,
		proj.ProcessedFileCount,
		proj.Status,
		nullString(proj.ErrorMessage),
		proj.CreatedAt,
		proj.UpdatedAt,
	)
	if err != nil {
		return translate("failed to create project", err)
	}

	return nil
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	query := `
		SELECT id, expected_file_count, processed_file_count, status,
			error_message, created_at, updated_at
		FROM projects
		WHERE id = ?
	`

	var proj project.Project
	var errMsg sql.NullString
	err := r.db.conn(ctx).QueryRowContext(ctx, query, id).Scan(
		&proj.ID,
		&proj.ExpectedFileCount,
		&proj.ProcessedFileCount,
		&proj.Status,
		&errMsg,
		&proj.CreatedAt,
		&proj.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	proj.ErrorMessage = errMsg.String

	return &proj, nil
}

// List returns all projects with upload and issue counts, newest first
func (r *ProjectRepository) List(ctx context.Context) ([]project.ProjectSummary, error) {
	query := `
		SELECT
			p.id,
			p.expected_file_count,
			p.processed_file_count,
			p.status,
			p.error_message,
			p.created_at,
			p.updated_at,
			(SELECT COUNT(*) FROM project_files f WHERE f.project_id = p.id) AS uploaded,
			(SELECT COUNT(*) FROM issues i WHERE i.project_id = p.id) AS issue_count
		FROM projects p
		ORDER BY p.created_at DESC, p.id
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	summaries := []project.ProjectSummary{}
	for rows.Next() {
		var s project.ProjectSummary
		var errMsg sql.NullString
		if err := rows.Scan(
			&s.ID,
			&s.ExpectedFileCount,
			&s.ProcessedFileCount,
			&s.Status,
			&errMsg,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.UploadedFileCount,
			&s.IssueCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		s.ErrorMessage = errMsg.String
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}

	return summaries, nil
}

// CountFailedFiles returns the number of failed files in a project
func (r *ProjectRepository) CountFailedFiles(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_files WHERE project_id = ? AND status = 'failed'`,
		projectID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed files: %w", err)
	}
	return n, nil
}

// IncrementProcessed atomically adds one to the processed counter and returns
// the new value. It returns repository.ErrConflict when the counter already
// equals the expected file count.
func (r *ProjectRepository) IncrementProcessed(ctx context.Context, projectID string) (int, error) {
	q := r.db.conn(ctx)
	result, err := q.ExecContext(ctx, `
		UPDATE projects
		SET processed_file_count = processed_file_count + 1, updated_at = ?
		WHERE id = ? AND processed_file_count < expected_file_count
	`, time.Now().UTC(), projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment processed count: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return 0, repository.ErrConflict
	}

	var processed int
	if err := q.QueryRowContext(ctx, `SELECT processed_file_count FROM projects WHERE id = ?`, projectID).Scan(&processed); err != nil {
		return 0, fmt.Errorf("failed to read processed count: %w", err)
	}
	return processed, nil
}

// UpdateStatus sets the project status. errMsg is stored only when non-empty.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, projectID string, status project.Status, errMsg string) error {
	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE projects
		SET status = ?, error_message = COALESCE(?, error_message), updated_at = ?
		WHERE id = ?
	`, status, nullString(errMsg), time.Now().UTC(), projectID)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
