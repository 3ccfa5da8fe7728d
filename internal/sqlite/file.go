package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/repository"
)

// FileRepository stores uploaded project files
type FileRepository struct {
	db *DB
}

// NewFileRepository creates a new FileRepository
func NewFileRepository(db *DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a file when its project still accepts uploads. It returns
// repository.ErrConflict when the project is full or terminal and
// repository.ErrNotFound when the project does not exist.
func (r *FileRepository) Create(ctx context.Context, f *file.ProjectFile) error {
	q := r.db.conn(ctx)
	result, err := q.ExecContext(ctx, `
		INSERT INTO project_files (
			id, project_id, name, content, detected_type, status, created_at, updated_at
		)
		SELECT ?, p.id, ?, ?, ?, ?, ?, ?
		FROM projects p
		WHERE p.id = ?
			AND p.status IN ('created', 'processing')
			AND (SELECT COUNT(*) FROM project_files WHERE project_id = p.id) < p.expected_file_count
	`,
		f.ID,
		f.Name,
		f.Content,
		nullString(f.DetectedType),
		f.Status,
		f.CreatedAt,
		f.UpdatedAt,
		f.ProjectID,
	)
	if err != nil {
		return translate("failed to create file", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, f.ProjectID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

// Get retrieves a file with its content
func (r *FileRepository) Get(ctx context.Context, id string) (*file.ProjectFile, error) {
	query := `
		SELECT id, project_id, name, content, detected_type, status, created_at, updated_at
		FROM project_files
		WHERE id = ?
	`

	var f file.ProjectFile
	var detected sql.NullString
	err := r.db.conn(ctx).QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.ProjectID,
		&f.Name,
		&f.Content,
		&detected,
		&f.Status,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	f.DetectedType = detected.String

	return &f, nil
}

// ListByProject returns the files of a project in upload order, without content
func (r *FileRepository) ListByProject(ctx context.Context, projectID string) ([]file.FileRef, error) {
	query := `
		SELECT
			f.id, f.project_id, f.name, f.detected_type, f.status, f.created_at, f.updated_at,
			(SELECT COUNT(*) FROM issues i WHERE i.file_id = f.id) AS issue_count
		FROM project_files f
		WHERE f.project_id = ?
		ORDER BY f.created_at, f.name
	`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	refs := []file.FileRef{}
	for rows.Next() {
		var ref file.FileRef
		var detected sql.NullString
		if err := rows.Scan(
			&ref.ID,
			&ref.ProjectID,
			&ref.Name,
			&detected,
			&ref.Status,
			&ref.CreatedAt,
			&ref.UpdatedAt,
			&ref.IssueCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		ref.DetectedType = detected.String
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file rows: %w", err)
	}

	return refs, nil
}

// ListPendingIDs returns the IDs of pending files in upload order
func (r *FileRepository) ListPendingIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, `
		SELECT id FROM project_files
		WHERE project_id = ? AND status = 'pending'
		ORDER BY created_at, name
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByProject returns the number of uploaded files in a project
func (r *FileRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_files WHERE project_id = ?`, projectID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// UpdateStatus moves a file from one status to another. It returns
// repository.ErrConflict when the file is not currently in status from, so
// at most one caller wins a given transition.
func (r *FileRepository) UpdateStatus(ctx context.Context, id string, from, to file.Status) error {
	result, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE project_files SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update file status: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return repository.ErrConflict
	}
	return nil
}

// SetDetectedType stores the classifier result unless one is already set
func (r *FileRepository) SetDetectedType(ctx context.Context, id, detectedType string) error {
	_, err := r.db.conn(ctx).ExecContext(ctx, `
		UPDATE project_files SET detected_type = ?, updated_at = ?
		WHERE id = ? AND (detected_type IS NULL OR detected_type = '')
	`, detectedType, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set detected type: %w", err)
	}
	return nil
}
