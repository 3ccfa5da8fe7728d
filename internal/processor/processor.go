// Package processor runs uploaded files through classification, analysis and
// correlation, and keeps file and project status in step with the results.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/classify"
	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/repository"
	"github.com/google/uuid"
)

// ErrPersistence indicates a store write failed. The transaction it happened
// in was rolled back.
var ErrPersistence = errors.New("persistence error")

// TxRunner runs fn in a transaction. Store calls made with the context passed
// to fn join that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProjectStore is the project persistence the processor needs.
type ProjectStore interface {
	Get(ctx context.Context, id string) (*project.Project, error)
	CountFailedFiles(ctx context.Context, projectID string) (int, error)
	IncrementProcessed(ctx context.Context, projectID string) (int, error)
	UpdateStatus(ctx context.Context, projectID string, status project.Status, errMsg string) error
}

// FileStore is the file persistence the processor needs.
type FileStore interface {
	Get(ctx context.Context, id string) (*file.ProjectFile, error)
	UpdateStatus(ctx context.Context, id string, from, to file.Status) error
	SetDetectedType(ctx context.Context, id, detectedType string) error
	ListPendingIDs(ctx context.Context, projectID string) ([]string, error)
}

// IssueStore persists correlated issues.
type IssueStore interface {
	InsertBatch(ctx context.Context, issues []issue.Issue) error
}

// ActivityStore records processing activity.
type ActivityStore interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}

// Stores groups the persistence dependencies.
type Stores struct {
	Tx       TxRunner
	Projects ProjectStore
	Files    FileStore
	Issues   IssueStore
	Activity ActivityStore
}

// Options tunes processing.
type Options struct {
	Correlation    issue.CorrelateOptions
	ResultLanguage string
	// Workers bounds how many files ProcessPending analyzes at once.
	Workers int
}

// Processor owns file and project status transitions.
type Processor struct {
	stores   Stores
	analyzer analysis.Client
	opts     Options
	logger   *slog.Logger
}

// New creates a Processor.
func New(stores Stores, analyzer analysis.Client, opts Options, logger *slog.Logger) *Processor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Processor{stores: stores, analyzer: analyzer, opts: opts, logger: logger}
}

// Result is the outcome of processing one file.
type Result struct {
	File          *file.ProjectFile `json:"file"`
	Issues        []issue.Issue     `json:"issues"`
	ProjectStatus project.Status    `json:"project_status"`
}

// ProcessFile analyzes one pending file of a project.
//
// The file is marked analyzing and committed before the provider is called,
// so status queries see in-flight work. Once claimed, the file is finished
// regardless of ctx: cancelling the caller does not fail it. A provider
// failure marks both the file and the project failed and returns an error
// wrapping analysis.ErrProvider. On success the detected type, the issues,
// the file status and the project counter and status are committed together.
// A failed final commit returns ErrPersistence and leaves the file analyzing.
func (p *Processor) ProcessFile(ctx context.Context, projectID, fileID string) (*Result, error) {
	f, err := p.start(ctx, projectID, fileID)
	if err != nil {
		return nil, err
	}

	if f.DetectedType == "" {
		f.DetectedType = classify.Classify(f.Name, []byte(f.Content))
	}

	// The file is claimed, so the call runs to completion or to the provider
	// timeout even if the caller goes away. Only the provider can fail it.
	work := context.WithoutCancel(ctx)
	candidates, err := p.analyzer.Analyze(work, analysis.Request{
		FileName:       f.Name,
		Content:        f.Content,
		FileType:       f.DetectedType,
		ResultLanguage: p.opts.ResultLanguage,
	})
	if err != nil {
		if !errors.Is(err, analysis.ErrProvider) {
			err = fmt.Errorf("%w: %w", analysis.ErrProvider, err)
		}
		return nil, p.fail(work, f, err)
	}

	issues := issue.Correlate(candidates, p.opts.Correlation)
	now := time.Now().UTC()
	for i := range issues {
		issues[i].ID = uuid.NewString()
		issues[i].ProjectID = f.ProjectID
		issues[i].FileID = f.ID
		issues[i].FileName = f.Name
		issues[i].CreatedAt = now
	}

	status, err := p.complete(work, f, issues)
	if err != nil {
		return nil, err
	}

	f.Status = file.StatusAnalyzed
	if p.logger != nil {
		p.logger.Info("file analyzed",
			"project_id", f.ProjectID,
			"file_id", f.ID,
			"name", f.Name,
			"type", f.DetectedType,
			"candidates", len(candidates),
			"issues", len(issues),
			"project_status", status,
		)
	}
	return &Result{File: f, Issues: issues, ProjectStatus: status}, nil
}

// start validates preconditions and claims the file by moving it from pending
// to analyzing. Only one concurrent caller can claim a file.
func (p *Processor) start(ctx context.Context, projectID, fileID string) (*file.ProjectFile, error) {
	var f *file.ProjectFile
	err := p.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		proj, err := p.stores.Projects.Get(ctx, projectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return project.ErrProjectNotFound
			}
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}

		f, err = p.stores.Files.Get(ctx, fileID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return file.ErrFileNotFound
			}
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if f.ProjectID != proj.ID {
			return file.ErrFileNotFound
		}

		if _, err := project.Transition(proj.Status, project.EventFileStarted, project.Counts{
			Processed: proj.ProcessedFileCount,
			Expected:  proj.ExpectedFileCount,
		}); err != nil {
			return err
		}
		if err := file.Transition(f.Status, file.StatusAnalyzing); err != nil {
			return err
		}

		if err := p.stores.Files.UpdateStatus(ctx, f.ID, file.StatusPending, file.StatusAnalyzing); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: file %s is no longer pending", project.ErrInvalidState, f.ID)
			}
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		f.Status = file.StatusAnalyzing

		return p.log(ctx, f, activity.TypeFileAnalyzing, "analyzing "+f.Name)
	})
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, file.ErrFileNotFound),
		errors.Is(err, project.ErrInvalidState),
		errors.Is(err, ErrPersistence):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}

// fail records a provider failure and returns cause, or ErrPersistence when
// the failure itself could not be recorded.
func (p *Processor) fail(ctx context.Context, f *file.ProjectFile, cause error) error {
	if p.logger != nil {
		p.logger.Error("file analysis failed", "project_id", f.ProjectID, "file_id", f.ID, "name", f.Name, "error", cause)
	}

	err := p.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := p.stores.Files.SetDetectedType(ctx, f.ID, f.DetectedType); err != nil {
			return err
		}
		if err := p.stores.Files.UpdateStatus(ctx, f.ID, file.StatusAnalyzing, file.StatusFailed); err != nil {
			return err
		}
		if err := p.log(ctx, f, activity.TypeFileFailed, fmt.Sprintf("analysis of %s failed: %v", f.Name, cause)); err != nil {
			return err
		}

		proj, err := p.stores.Projects.Get(ctx, f.ProjectID)
		if err != nil {
			return err
		}
		next, err := project.Transition(proj.Status, project.EventFileFailed, project.Counts{})
		if err != nil {
			// a sibling already moved the project to a terminal status
			return nil
		}
		msg := fmt.Sprintf("analysis of %s failed: %v", f.Name, cause)
		if err := p.stores.Projects.UpdateStatus(ctx, proj.ID, next, msg); err != nil {
			return err
		}
		return p.log(ctx, f, activity.TypeProjectFailed, msg)
	})
	if err != nil {
		return fmt.Errorf("%w: recording failure of %s: %w", ErrPersistence, f.Name, err)
	}

	f.Status = file.StatusFailed
	return fmt.Errorf("analyzing %s: %w", f.Name, cause)
}

// complete commits the issues of an analyzed file and advances the project.
func (p *Processor) complete(ctx context.Context, f *file.ProjectFile, issues []issue.Issue) (project.Status, error) {
	var status project.Status
	err := p.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := p.stores.Files.SetDetectedType(ctx, f.ID, f.DetectedType); err != nil {
			return err
		}
		if err := p.stores.Issues.InsertBatch(ctx, issues); err != nil {
			return err
		}
		if err := p.stores.Files.UpdateStatus(ctx, f.ID, file.StatusAnalyzing, file.StatusAnalyzed); err != nil {
			return err
		}
		if err := p.log(ctx, f, activity.TypeFileAnalyzed, fmt.Sprintf("analyzed %s: %d issues", f.Name, len(issues))); err != nil {
			return err
		}

		processed, err := p.stores.Projects.IncrementProcessed(ctx, f.ProjectID)
		if err != nil {
			return err
		}
		failed, err := p.stores.Projects.CountFailedFiles(ctx, f.ProjectID)
		if err != nil {
			return err
		}
		proj, err := p.stores.Projects.Get(ctx, f.ProjectID)
		if err != nil {
			return err
		}

		status = proj.Status
		if proj.Status.Terminal() {
			// a sibling failed while this file was in flight; keep its result
			return nil
		}
		next, err := project.Transition(proj.Status, project.EventFileAnalyzed, project.Counts{
			Processed: processed,
			Expected:  proj.ExpectedFileCount,
			Failed:    failed,
		})
		if err != nil {
			return err
		}
		if next == proj.Status {
			return nil
		}
		if err := p.stores.Projects.UpdateStatus(ctx, proj.ID, next, ""); err != nil {
			return err
		}
		status = next
		if next == project.StatusCompleted {
			return p.log(ctx, f, activity.TypeProjectCompleted, fmt.Sprintf("all %d files analyzed", processed))
		}
		return nil
	})
	if err != nil {
		if p.logger != nil {
			p.logger.Error("failed to persist analysis", "project_id", f.ProjectID, "file_id", f.ID, "error", err)
		}
		return "", fmt.Errorf("%w: saving results for %s: %w", ErrPersistence, f.Name, err)
	}
	return status, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func (p *Processor) log(ctx context.Context, f *file.ProjectFile, t activity.ActivityType, summary string) error {
	if p.stores.Activity == nil {
		return nil
	}
	fileID := f.ID
	return p.stores.Activity.Log(ctx, &activity.ActivityEntry{
		ProjectID:    f.ProjectID,
		FileID:       &fileID,
		ActivityType: t,
		Summary:      summary,
		CreatedAt:    time.Now().UTC(),
	})
}
