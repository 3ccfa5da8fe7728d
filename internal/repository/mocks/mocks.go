package mocks

import (
	"context"

	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/stretchr/testify/mock"
)

// ProjectRepository is a mock for project.Repository.
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	args := m.Called(ctx, proj)
	return args.Error(0)
}

func (m *ProjectRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	args := m.Called(ctx, id)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context) ([]project.ProjectSummary, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]project.ProjectSummary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) CountFailedFiles(ctx context.Context, projectID string) (int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Error(1)
}

// FileRepository is a mock for file.Repository.
type FileRepository struct {
	mock.Mock
}

func (m *FileRepository) Create(ctx context.Context, f *file.ProjectFile) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *FileRepository) Get(ctx context.Context, id string) (*file.ProjectFile, error) {
	args := m.Called(ctx, id)
	if f, ok := args.Get(0).(*file.ProjectFile); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FileRepository) ListByProject(ctx context.Context, projectID string) ([]file.FileRef, error) {
	args := m.Called(ctx, projectID)
	if refs, ok := args.Get(0).([]file.FileRef); ok {
		return refs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FileRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Error(1)
}

// IssueRepository is a mock for issue.Repository.
type IssueRepository struct {
	mock.Mock
}

func (m *IssueRepository) ListByProject(ctx context.Context, projectID string, opts issue.ListOptions) ([]issue.Issue, error) {
	args := m.Called(ctx, projectID, opts)
	if issues, ok := args.Get(0).([]issue.Issue); ok {
		return issues, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if entries, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}
