package processor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/processor"
	"github.com/ganot/perfscan/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	results  map[string][]issue.RawIssue
	failures map[string]error
	calls    map[string]int
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		results:  map[string][]issue.RawIssue{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) ([]issue.RawIssue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[req.FileName]++
	if err := a.failures[req.FileName]; err != nil {
		return nil, fmt.Errorf("%w: %w", analysis.ErrProvider, err)
	}
	return a.results[req.FileName], nil
}

func (a *fakeAnalyzer) Name() string { return "fake" }

func (a *fakeAnalyzer) callCount(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

type failingIssues struct{}

func (failingIssues) InsertBatch(context.Context, []issue.Issue) error {
	return errors.New("disk full")
}

type failingDetectedType struct {
	processor.FileStore
}

func (failingDetectedType) SetDetectedType(context.Context, string, string) error {
	return errors.New("disk full")
}

// blockingCompleter holds every completion until release is closed or the
// call's context ends.
type blockingCompleter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingCompleter() *blockingCompleter {
	return &blockingCompleter{started: make(chan struct{}), release: make(chan struct{})}
}

func (c *blockingCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.release:
		return `{"issues": []}`, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *blockingCompleter) Name() string { return "block" }

type fixture struct {
	db       *sqlite.DB
	projects *sqlite.ProjectRepository
	files    *sqlite.FileRepository
	issues   *sqlite.IssueRepository
	analyzer *fakeAnalyzer
	proc     *processor.Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	fx := &fixture{
		db:       db,
		projects: sqlite.NewProjectRepository(db),
		files:    sqlite.NewFileRepository(db),
		issues:   sqlite.NewIssueRepository(db),
		analyzer: newFakeAnalyzer(),
	}
	fx.proc = processor.New(fx.stores(), fx.analyzer, processor.Options{Workers: 3}, nil)
	return fx
}

func (fx *fixture) stores() processor.Stores {
	return processor.Stores{
		Tx:       fx.db,
		Projects: fx.projects,
		Files:    fx.files,
		Issues:   fx.issues,
		Activity: sqlite.NewActivityRepository(fx.db),
	}
}

// setup creates a project expecting len(names) files and uploads them.
func (fx *fixture) setup(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	projects := project.NewService(fx.projects, nil, nil)
	files := file.NewService(fx.files, fx.projects, nil, 0, nil)

	proj, err := projects.Create(ctx, project.CreateRequest{ExpectedFileCount: len(names)})
	require.NoError(t, err)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		res, err := files.Upload(ctx, file.UploadRequest{ProjectID: proj.ID, Name: name, Content: "for x in xs:\n    for y in ys:\n        pass\n"})
		require.NoError(t, err)
		ids = append(ids, res.File.ID)
	}
	return proj.ID, ids
}

func (fx *fixture) project(t *testing.T, id string) *project.Project {
	t.Helper()
	proj, err := fx.projects.Get(context.Background(), id)
	require.NoError(t, err)
	return proj
}

func (fx *fixture) file(t *testing.T, id string) *file.ProjectFile {
	t.Helper()
	f, err := fx.files.Get(context.Background(), id)
	require.NoError(t, err)
	return f
}

func (fx *fixture) issueCount(t *testing.T, projectID string) int {
	t.Helper()
	list, err := fx.issues.ListByProject(context.Background(), projectID, issue.ListOptions{})
	require.NoError(t, err)
	return len(list)
}

// checkInvariants verifies the counter bound and that a project is completed
// exactly when all of its expected files were analyzed.
func (fx *fixture) checkInvariants(t *testing.T, projectID string) {
	t.Helper()
	proj := fx.project(t, projectID)
	require.LessOrEqual(t, proj.ProcessedFileCount, proj.ExpectedFileCount)

	refs, err := fx.files.ListByProject(context.Background(), projectID)
	require.NoError(t, err)
	analyzed := 0
	for _, ref := range refs {
		if ref.Status == file.StatusAnalyzed {
			analyzed++
		}
	}
	allAnalyzed := analyzed == proj.ExpectedFileCount && proj.ProcessedFileCount == proj.ExpectedFileCount
	require.Equal(t, allAnalyzed, proj.Status == project.StatusCompleted)
}

func TestProcessFile_NoIssuesCompletesProject(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "a.py", "b.py")

	res, err := fx.proc.ProcessFile(ctx, projectID, ids[0])
	require.NoError(t, err)
	require.Equal(t, project.StatusProcessing, res.ProjectStatus)
	require.Empty(t, res.Issues)
	fx.checkInvariants(t, projectID)

	res, err = fx.proc.ProcessFile(ctx, projectID, ids[1])
	require.NoError(t, err)
	require.Equal(t, project.StatusCompleted, res.ProjectStatus)

	proj := fx.project(t, projectID)
	require.Equal(t, project.StatusCompleted, proj.Status)
	require.Equal(t, 2, proj.ProcessedFileCount)
	require.Equal(t, 0, fx.issueCount(t, projectID))
	fx.checkInvariants(t, projectID)
}

func TestProcessFile_ProviderFailureFailsProject(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "a.py", "b.py")

	fx.analyzer.results["a.py"] = []issue.RawIssue{{
		Type:        issue.TypeMemory,
		Description: "list grows without bound",
		Lines:       &issue.LineRange{Start: 10, End: 10},
		Severity:    issue.SeverityHigh,
		Certainty:   issue.ConfidencePotential,
	}}
	fx.analyzer.failures["b.py"] = errors.New("timeout")

	_, err := fx.proc.ProcessFile(ctx, projectID, ids[0])
	require.NoError(t, err)

	_, err = fx.proc.ProcessFile(ctx, projectID, ids[1])
	require.ErrorIs(t, err, analysis.ErrProvider)

	require.Equal(t, file.StatusAnalyzed, fx.file(t, ids[0]).Status)
	require.Equal(t, file.StatusFailed, fx.file(t, ids[1]).Status)

	proj := fx.project(t, projectID)
	require.Equal(t, project.StatusFailed, proj.Status)
	require.Equal(t, 1, proj.ProcessedFileCount)
	require.Contains(t, proj.ErrorMessage, "b.py")

	fileID := ids[0]
	list, err := fx.issues.ListByProject(ctx, projectID, issue.ListOptions{FileID: &fileID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, issue.TypeMemory, list[0].Type)
	require.Equal(t, 1, fx.issueCount(t, projectID))
	fx.checkInvariants(t, projectID)
}

func TestProcessFile_DuplicateCandidatesMerged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "loops.py")

	fx.analyzer.results["loops.py"] = []issue.RawIssue{
		{Type: issue.TypeLoopComplexity, Description: "nested loop", Lines: &issue.LineRange{Start: 5, End: 5}, Severity: issue.SeverityMedium, Certainty: issue.ConfidenceConfirmed},
		{Type: issue.TypeLoopComplexity, Description: "quadratic iteration", Lines: &issue.LineRange{Start: 5, End: 5}, Severity: issue.SeverityMedium, Certainty: issue.ConfidencePotential},
	}

	res, err := fx.proc.ProcessFile(ctx, projectID, ids[0])
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	require.Equal(t, issue.ConfidenceConfirmed, res.Issues[0].Confidence)

	list, err := fx.issues.ListByProject(ctx, projectID, issue.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, issue.ConfidenceConfirmed, list[0].Confidence)
	require.Equal(t, "loops.py", list[0].FileName)
	require.Equal(t, "python", fx.file(t, ids[0]).DetectedType)
}

func TestProcessFile_AnalyzedFileRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "a.py", "b.py")

	_, err := fx.proc.ProcessFile(ctx, projectID, ids[0])
	require.NoError(t, err)
	before := fx.project(t, projectID)

	_, err = fx.proc.ProcessFile(ctx, projectID, ids[0])
	require.ErrorIs(t, err, project.ErrInvalidState)

	after := fx.project(t, projectID)
	require.Equal(t, before.ProcessedFileCount, after.ProcessedFileCount)
	require.Equal(t, before.Status, after.Status)
	require.Equal(t, file.StatusAnalyzed, fx.file(t, ids[0]).Status)
	require.Equal(t, 1, fx.analyzer.callCount("a.py"))
}

func TestProcessFile_TerminalProjectRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "a.py", "b.py")
	fx.analyzer.failures["a.py"] = errors.New("bad gateway")

	_, err := fx.proc.ProcessFile(ctx, projectID, ids[0])
	require.ErrorIs(t, err, analysis.ErrProvider)

	_, err = fx.proc.ProcessFile(ctx, projectID, ids[1])
	require.ErrorIs(t, err, project.ErrInvalidState)
	require.Equal(t, file.StatusPending, fx.file(t, ids[1]).Status)
	require.Equal(t, 0, fx.analyzer.callCount("b.py"))
}

func TestProcessFile_NotFound(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "a.py")
	otherID, _ := fx.setup(t, "b.py")

	_, err := fx.proc.ProcessFile(ctx, "missing", ids[0])
	require.ErrorIs(t, err, project.ErrProjectNotFound)

	_, err = fx.proc.ProcessFile(ctx, projectID, "missing")
	require.ErrorIs(t, err, file.ErrFileNotFound)

	_, err = fx.proc.ProcessFile(ctx, otherID, ids[0])
	require.ErrorIs(t, err, file.ErrFileNotFound)
}

func TestProcessFile_ConcurrentSameFile(t *testing.T) {
	fx := newFixture(t)
	projectID, ids := fx.setup(t, "a.py", "b.py")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = fx.proc.ProcessFile(context.Background(), projectID, ids[0])
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, project.ErrInvalidState)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, fx.analyzer.callCount("a.py"))
	require.Equal(t, 1, fx.project(t, projectID).ProcessedFileCount)
	fx.checkInvariants(t, projectID)
}

func TestProcessFile_PersistenceFailureRollsBack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "a.py")
	fx.analyzer.results["a.py"] = []issue.RawIssue{{
		Type: issue.TypeIO, Description: "sync read", Severity: issue.SeverityLow, Certainty: issue.ConfidencePotential,
	}}

	stores := fx.stores()
	stores.Issues = failingIssues{}
	proc := processor.New(stores, fx.analyzer, processor.Options{}, nil)

	_, err := proc.ProcessFile(ctx, projectID, ids[0])
	require.ErrorIs(t, err, processor.ErrPersistence)

	require.Equal(t, file.StatusAnalyzing, fx.file(t, ids[0]).Status)
	proj := fx.project(t, projectID)
	require.Equal(t, 0, proj.ProcessedFileCount)
	require.Equal(t, project.StatusCreated, proj.Status)
	require.Equal(t, 0, fx.issueCount(t, projectID))
}

func TestProcessFile_DetectedTypeFailureRollsBack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	projectID, ids := fx.setup(t, "a.py")

	stores := fx.stores()
	stores.Files = failingDetectedType{FileStore: fx.files}
	proc := processor.New(stores, fx.analyzer, processor.Options{}, nil)

	_, err := proc.ProcessFile(ctx, projectID, ids[0])
	require.ErrorIs(t, err, processor.ErrPersistence)

	f := fx.file(t, ids[0])
	require.Equal(t, file.StatusAnalyzing, f.Status)
	require.Empty(t, f.DetectedType)
	proj := fx.project(t, projectID)
	require.Equal(t, 0, proj.ProcessedFileCount)
	require.Equal(t, project.StatusCreated, proj.Status)
}

func TestProcessFile_FailureStoresDetectedType(t *testing.T) {
	fx := newFixture(t)
	projectID, ids := fx.setup(t, "a.py")
	fx.analyzer.failures["a.py"] = errors.New("rate limited")

	_, err := fx.proc.ProcessFile(context.Background(), projectID, ids[0])
	require.ErrorIs(t, err, analysis.ErrProvider)

	f := fx.file(t, ids[0])
	require.Equal(t, file.StatusFailed, f.Status)
	require.Equal(t, "python", f.DetectedType)
}

func TestProcessFile_CallerCancelDoesNotFail(t *testing.T) {
	fx := newFixture(t)
	projectID, ids := fx.setup(t, "a.py")
	completer := newBlockingCompleter()
	proc := processor.New(fx.stores(), analysis.NewAnalyzer(completer, analysis.Options{}, nil), processor.Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := proc.ProcessFile(ctx, projectID, ids[0])
		done <- err
	}()

	<-completer.started
	cancel()
	close(completer.release)
	require.NoError(t, <-done)

	require.Equal(t, file.StatusAnalyzed, fx.file(t, ids[0]).Status)
	proj := fx.project(t, projectID)
	require.Equal(t, project.StatusCompleted, proj.Status)
	require.Empty(t, proj.ErrorMessage)
	fx.checkInvariants(t, projectID)
}

func TestProcessPending_CancelStopsClaiming(t *testing.T) {
	fx := newFixture(t)
	projectID, ids := fx.setup(t, "a.py", "b.py")
	completer := newBlockingCompleter()
	proc := processor.New(fx.stores(), analysis.NewAnalyzer(completer, analysis.Options{}, nil), processor.Options{Workers: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		sum processor.Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sum, err := proc.ProcessPending(ctx, projectID)
		done <- outcome{sum, err}
	}()

	<-completer.started
	cancel()
	close(completer.release)
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, processor.Summary{Analyzed: 1, Skipped: 1}, res.sum)

	statuses := map[file.Status]int{}
	for _, id := range ids {
		statuses[fx.file(t, id).Status]++
	}
	require.Equal(t, map[file.Status]int{file.StatusAnalyzed: 1, file.StatusPending: 1}, statuses)
	proj := fx.project(t, projectID)
	require.Equal(t, project.StatusProcessing, proj.Status)
	require.Equal(t, 1, proj.ProcessedFileCount)
}

func TestProcessPending(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	names := []string{"a.py", "b.py", "c.py", "d.py", "e.py"}
	projectID, _ := fx.setup(t, names...)
	for _, name := range names {
		fx.analyzer.results[name] = []issue.RawIssue{{
			Type: issue.TypeAlgorithmic, Description: "sort in loop", Lines: &issue.LineRange{Start: 2, End: 3},
			Severity: issue.SeverityMedium, Certainty: issue.ConfidencePotential,
		}}
	}

	sum, err := fx.proc.ProcessPending(ctx, projectID)
	require.NoError(t, err)
	require.Equal(t, processor.Summary{Analyzed: 5}, sum)

	proj := fx.project(t, projectID)
	require.Equal(t, project.StatusCompleted, proj.Status)
	require.Equal(t, 5, proj.ProcessedFileCount)
	require.Equal(t, 5, fx.issueCount(t, projectID))
	fx.checkInvariants(t, projectID)

	sum, err = fx.proc.ProcessPending(ctx, projectID)
	require.NoError(t, err)
	require.Equal(t, processor.Summary{}, sum)
}

func TestProcessPending_UnknownProject(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.proc.ProcessPending(context.Background(), "missing")
	require.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestProcessPending_WithFailure(t *testing.T) {
	fx := newFixture(t)
	projectID, _ := fx.setup(t, "a.py", "b.py", "c.py")
	fx.analyzer.failures["b.py"] = errors.New("rate limited")

	sum, err := fx.proc.ProcessPending(context.Background(), projectID)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 3, sum.Analyzed+sum.Failed+sum.Skipped)

	require.Equal(t, project.StatusFailed, fx.project(t, projectID).Status)
	fx.checkInvariants(t, projectID)
}

func TestDispatcher(t *testing.T) {
	fx := newFixture(t)
	projectID, _ := fx.setup(t, "a.py", "b.py")

	d := processor.NewDispatcher(fx.proc)
	require.True(t, d.Start(projectID))
	d.Wait()

	require.Equal(t, project.StatusCompleted, fx.project(t, projectID).Status)

	require.NoError(t, d.Shutdown(context.Background()))
	require.False(t, d.Start(projectID))
}
