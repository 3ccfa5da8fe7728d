package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/repository"
)

// Service serves issue listings and project results.
type Service struct {
	issues   Repository
	projects ProjectRepository
	logger   *slog.Logger
}

// NewService creates a new issue service.
func NewService(issues Repository, projects ProjectRepository, logger *slog.Logger) *Service {
	return &Service{issues: issues, projects: projects, logger: logger}
}

// Results is the outcome of a project analysis. Issues and statistics are
// only filled once the project is completed.
type Results struct {
	Project    *project.Project `json:"project"`
	Progress   project.Progress `json:"progress"`
	Confirmed  []Issue          `json:"confirmed_issues,omitempty"`
	Potential  []Issue          `json:"potential_issues,omitempty"`
	Statistics *Statistics      `json:"statistics,omitempty"`
}

// Ready reports whether the analysis finished successfully.
func (r *Results) Ready() bool {
	return r.Project.Status == project.StatusCompleted
}

// List returns the issues of a project, optionally narrowed to one file.
func (s *Service) List(ctx context.Context, projectID string, opts ListOptions) ([]Issue, error) {
	if _, err := s.loadProject(ctx, projectID); err != nil {
		return nil, err
	}
	issues, err := s.issues.ListByProject(ctx, projectID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	return issues, nil
}

// Results returns progress for unfinished projects and grouped issues for
// completed ones. A failed project yields ErrProjectFailed with the results
// still populated for inspection.
func (s *Service) Results(ctx context.Context, projectID string) (*Results, error) {
	proj, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	failed, err := s.projects.CountFailedFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("counting failed files: %w", err)
	}

	res := &Results{Project: proj, Progress: proj.Progress(failed)}
	switch proj.Status {
	case project.StatusFailed:
		return res, ErrProjectFailed
	case project.StatusCompleted:
	default:
		return res, nil
	}

	issues, err := s.issues.ListByProject(ctx, projectID, ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}

	res.Confirmed = []Issue{}
	res.Potential = []Issue{}
	for _, i := range issues {
		if i.Confidence == ConfidenceConfirmed {
			res.Confirmed = append(res.Confirmed, i)
		} else {
			res.Potential = append(res.Potential, i)
		}
	}
	stats := ComputeStatistics(issues, proj.ProcessedFileCount)
	completedAt := proj.UpdatedAt
	stats.CompletedAt = &completedAt
	res.Statistics = &stats

	if s.logger != nil {
		s.logger.Debug("results served", "project_id", projectID, "issues", len(issues))
	}
	return res, nil
}

func (s *Service) loadProject(ctx context.Context, projectID string) (*project.Project, error) {
	proj, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return proj, nil
}
