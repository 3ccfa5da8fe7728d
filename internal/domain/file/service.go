package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/repository"
	"github.com/google/uuid"
)

// DefaultMaxContentBytes caps the size of a single uploaded file.
const DefaultMaxContentBytes = 10 * 1024 * 1024

// Service handles file uploads and lookups.
type Service struct {
	files           Repository
	projects        ProjectRepository
	activities      ActivityRepository
	maxContentBytes int
	logger          *slog.Logger
}

// NewService creates a new file service. A non-positive maxContentBytes
// falls back to DefaultMaxContentBytes.
func NewService(files Repository, projects ProjectRepository, activities ActivityRepository, maxContentBytes int, logger *slog.Logger) *Service {
	if maxContentBytes <= 0 {
		maxContentBytes = DefaultMaxContentBytes
	}
	return &Service{
		files:           files,
		projects:        projects,
		activities:      activities,
		maxContentBytes: maxContentBytes,
		logger:          logger,
	}
}

// UploadRequest describes a file upload.
type UploadRequest struct {
	ProjectID string
	Name      string
	Content   string
}

// UploadResult reports the stored file and the project's upload progress.
type UploadResult struct {
	File          *ProjectFile
	UploadedCount int
	ExpectedCount int
}

// AllUploaded reports whether the upload filled the project.
func (r *UploadResult) AllUploaded() bool {
	return r.UploadedCount >= r.ExpectedCount
}

// Upload stores a new pending file in a project that still accepts uploads.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	name := SanitizeName(req.Name)
	if name == "" || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: filename and content are required", ErrInvalidInput)
	}
	if len(req.Content) > s.maxContentBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrContentTooLarge, len(req.Content), s.maxContentBytes)
	}

	proj, err := s.projects.Get(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	if proj.Status.Terminal() {
		return nil, fmt.Errorf("%w: project is %s and no longer accepts uploads", project.ErrInvalidState, proj.Status)
	}

	now := time.Now().UTC()
	f := &ProjectFile{
		ID:        uuid.NewString(),
		ProjectID: proj.ID,
		Name:      name,
		Content:   req.Content,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.files.Create(ctx, f); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFile, name)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: project expects %d files", ErrFileLimitReached, proj.ExpectedFileCount)
		case errors.Is(err, repository.ErrForeignKeyViolation), errors.Is(err, repository.ErrNotFound):
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("creating file: %w", err)
	}

	uploaded, err := s.files.CountByProject(ctx, proj.ID)
	if err != nil {
		return nil, fmt.Errorf("counting files: %w", err)
	}

	if s.activities != nil {
		err := s.activities.Log(ctx, &activity.ActivityEntry{
			ProjectID:    proj.ID,
			FileID:       &f.ID,
			ActivityType: activity.TypeFileUploaded,
			Summary:      fmt.Sprintf("uploaded %s (%d of %d)", name, uploaded, proj.ExpectedFileCount),
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("failed to log upload activity", "project_id", proj.ID, "file_id", f.ID, "error", err)
		}
	}
	if s.logger != nil {
		s.logger.Info("file uploaded", "project_id", proj.ID, "file_id", f.ID, "name", name, "uploaded", uploaded, "expected", proj.ExpectedFileCount)
	}

	return &UploadResult{File: f, UploadedCount: uploaded, ExpectedCount: proj.ExpectedFileCount}, nil
}

// Get fetches a file and checks it belongs to projectID.
func (s *Service) Get(ctx context.Context, projectID, id string) (*ProjectFile, error) {
	f, err := s.files.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("getting file: %w", err)
	}
	if f.ProjectID != projectID {
		return nil, ErrFileNotFound
	}
	return f, nil
}

// List returns the files of a project in upload order.
func (s *Service) List(ctx context.Context, projectID string) ([]FileRef, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return s.files.ListByProject(ctx, projectID)
}
