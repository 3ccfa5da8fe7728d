package issue

import (
	"context"

	"github.com/ganot/perfscan/internal/domain/project"
)

// Repository provides read access to persisted issues. Issues are written by
// the processor inside its per-file transaction.
type Repository interface {
	ListByProject(ctx context.Context, projectID string, opts ListOptions) ([]Issue, error)
}

// ProjectRepository provides the project lookups results depend on.
type ProjectRepository interface {
	Get(ctx context.Context, id string) (*project.Project, error)
	CountFailedFiles(ctx context.Context, projectID string) (int, error)
}

// ListOptions filters issue listings.
type ListOptions struct {
	FileID     *string
	Confidence *Confidence
	Types      []Type
	Limit      int
	Offset     int
}
