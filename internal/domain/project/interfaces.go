package project

import (
	"context"

	"github.com/ganot/perfscan/internal/domain/activity"
)

// Repository provides persistence for projects.
type Repository interface {
	Create(ctx context.Context, proj *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]ProjectSummary, error)
	CountFailedFiles(ctx context.Context, projectID string) (int, error)
}

// ActivityRepository logs project lifecycle activity.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
