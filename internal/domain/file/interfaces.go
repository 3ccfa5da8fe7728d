package file

import (
	"context"

	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/project"
)

// Repository provides persistence for project files.
type Repository interface {
	// Create inserts f unless the project already holds its expected number
	// of files or is no longer accepting uploads.
	Create(ctx context.Context, f *ProjectFile) error
	Get(ctx context.Context, id string) (*ProjectFile, error)
	ListByProject(ctx context.Context, projectID string) ([]FileRef, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
}

// ProjectRepository provides the project lookups uploads depend on.
type ProjectRepository interface {
	Get(ctx context.Context, id string) (*project.Project, error)
}

// ActivityRepository logs upload activity.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
