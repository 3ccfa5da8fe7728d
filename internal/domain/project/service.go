package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/repository"
	"github.com/google/uuid"
)

// Service handles project operations.
type Service struct {
	repo       Repository
	activities ActivityRepository
	logger     *slog.Logger
}

// NewService creates a new project service. activities may be nil.
func NewService(repo Repository, activities ActivityRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, activities: activities, logger: logger}
}

// CreateRequest defines project creation inputs.
type CreateRequest struct {
	ExpectedFileCount int
}

// Create registers a project expecting a fixed number of files.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Project, error) {
	if req.ExpectedFileCount <= 0 {
		return nil, fmt.Errorf("%w: file count must be a positive integer", ErrInvalidInput)
	}

	now := time.Now().UTC()
	proj := &Project{
		ID:                uuid.NewString(),
		ExpectedFileCount: req.ExpectedFileCount,
		Status:            StatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, proj); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	if s.activities != nil {
		err := s.activities.Log(ctx, &activity.ActivityEntry{
			ProjectID:    proj.ID,
			ActivityType: activity.TypeProjectCreated,
			Summary:      fmt.Sprintf("created project expecting %d files", proj.ExpectedFileCount),
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("failed to log project activity", "project_id", proj.ID, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("project created", "project_id", proj.ID, "expected_files", proj.ExpectedFileCount)
	}
	return proj, nil
}

// Get fetches a project by ID.
func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	proj, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return proj, nil
}

// GetProgress fetches a project together with its progress.
func (s *Service) GetProgress(ctx context.Context, id string) (*Project, Progress, error) {
	proj, err := s.Get(ctx, id)
	if err != nil {
		return nil, Progress{}, err
	}
	failed, err := s.repo.CountFailedFiles(ctx, id)
	if err != nil {
		return nil, Progress{}, fmt.Errorf("counting failed files: %w", err)
	}
	return proj, proj.Progress(failed), nil
}

// List returns project summaries, newest first.
func (s *Service) List(ctx context.Context) ([]ProjectSummary, error) {
	return s.repo.List(ctx)
}
