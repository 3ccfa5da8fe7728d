package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ganot/perfscan/internal/domain/issue"
)

// IssueRepository stores correlated issues
type IssueRepository struct {
	db *DB
}

// NewIssueRepository creates a new IssueRepository
func NewIssueRepository(db *DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// InsertBatch inserts issues in order. Call it inside InTx so a file's issues
// are written together with its status change.
func (r *IssueRepository) InsertBatch(ctx context.Context, issues []issue.Issue) error {
	q := r.db.conn(ctx)
	query := `
		INSERT INTO issues (
			id, project_id, file_id, type, title, description, line_start, line_end,
			severity, code_snippet, suggestion, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, i := range issues {
		var start, end sql.NullInt64
		if i.Lines != nil {
			start = sql.NullInt64{Int64: int64(i.Lines.Start), Valid: true}
			end = sql.NullInt64{Int64: int64(i.Lines.End), Valid: true}
		}
		_, err := q.ExecContext(ctx, query,
			i.ID,
			i.ProjectID,
			i.FileID,
			i.Type,
			i.Title,
			i.Description,
			start,
			end,
			i.Severity,
			i.CodeSnippet,
			i.Suggestion,
			i.Confidence,
			i.CreatedAt,
		)
		if err != nil {
			return translate("failed to insert issue", err)
		}
	}
	return nil
}

// ListByProject returns a project's issues ordered by file name, then line.
// Issues without a line reference come last within a file.
func (r *IssueRepository) ListByProject(ctx context.Context, projectID string, opts issue.ListOptions) ([]issue.Issue, error) {
	query := `
		SELECT
			i.id, i.project_id, i.file_id, f.name, i.type, i.title, i.description,
			i.line_start, i.line_end, i.severity, i.code_snippet, i.suggestion,
			i.confidence, i.created_at
		FROM issues i
		JOIN project_files f ON f.id = i.file_id
		WHERE i.project_id = ?
	`
	args := []any{projectID}

	if opts.FileID != nil {
		query += " AND i.file_id = ?"
		args = append(args, *opts.FileID)
	}
	if opts.Confidence != nil {
		query += " AND i.confidence = ?"
		args = append(args, *opts.Confidence)
	}
	if len(opts.Types) > 0 {
		placeholders := make([]string, len(opts.Types))
		for n, t := range opts.Types {
			placeholders[n] = "?"
			args = append(args, t)
		}
		query += " AND i.type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY f.name, i.line_start IS NULL, i.line_start, i.type, i.line_end, i.description"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := []issue.Issue{}
	for rows.Next() {
		var i issue.Issue
		var start, end sql.NullInt64
		var snippet, suggestion sql.NullString
		if err := rows.Scan(
			&i.ID,
			&i.ProjectID,
			&i.FileID,
			&i.FileName,
			&i.Type,
			&i.Title,
			&i.Description,
			&start,
			&end,
			&i.Severity,
			&snippet,
			&suggestion,
			&i.Confidence,
			&i.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		if start.Valid {
			i.Lines = &issue.LineRange{Start: int(start.Int64), End: int(end.Int64)}
		}
		i.CodeSnippet = snippet.String
		i.Suggestion = suggestion.String
		issues = append(issues, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issue rows: %w", err)
	}

	return issues, nil
}
