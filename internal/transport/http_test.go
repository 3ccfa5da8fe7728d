package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/processor"
	"github.com/stretchr/testify/require"
)

type stubProjects struct {
	proj     *project.Project
	progress project.Progress
	list     []project.ProjectSummary
	err      error
	created  project.CreateRequest
}

func (s *stubProjects) Create(_ context.Context, req project.CreateRequest) (*project.Project, error) {
	s.created = req
	if req.ExpectedFileCount <= 0 {
		return nil, fmt.Errorf("%w: file count must be a positive integer", project.ErrInvalidInput)
	}
	return s.proj, s.err
}

func (s *stubProjects) List(context.Context) ([]project.ProjectSummary, error) {
	return s.list, s.err
}

func (s *stubProjects) GetProgress(context.Context, string) (*project.Project, project.Progress, error) {
	if s.err != nil {
		return nil, project.Progress{}, s.err
	}
	return s.proj, s.progress, nil
}

type stubFiles struct {
	result   *file.UploadResult
	err      error
	uploaded file.UploadRequest
}

func (s *stubFiles) Upload(_ context.Context, req file.UploadRequest) (*file.UploadResult, error) {
	s.uploaded = req
	return s.result, s.err
}

func (s *stubFiles) List(context.Context, string) ([]file.FileRef, error) {
	return nil, s.err
}

func (s *stubFiles) Get(_ context.Context, projectID, id string) (*file.ProjectFile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &file.ProjectFile{ID: id, ProjectID: projectID, Name: "a.py", Content: "x = 1"}, nil
}

type stubIssues struct {
	issues  []issue.Issue
	results *issue.Results
	err     error
	opts    issue.ListOptions
}

func (s *stubIssues) List(_ context.Context, _ string, opts issue.ListOptions) ([]issue.Issue, error) {
	s.opts = opts
	return s.issues, s.err
}

func (s *stubIssues) Results(context.Context, string) (*issue.Results, error) {
	return s.results, s.err
}

type stubActivity struct {
	opts activity.ListActivityOptions
}

func (s *stubActivity) GetRecentActivity(_ context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	s.opts = opts
	return []activity.ActivityEntry{{ProjectID: opts.ProjectID, ActivityType: activity.TypeProjectCreated}}, nil
}

type stubProcessor struct {
	result *processor.Result
	err    error
}

func (s *stubProcessor) ProcessFile(context.Context, string, string) (*processor.Result, error) {
	return s.result, s.err
}

type stubDispatcher struct {
	started []string
}

func (s *stubDispatcher) Start(projectID string) bool {
	s.started = append(s.started, projectID)
	return true
}

type harness struct {
	projects   *stubProjects
	files      *stubFiles
	issues     *stubIssues
	activity   *stubActivity
	processor  *stubProcessor
	dispatcher *stubDispatcher
	server     *httptest.Server
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	now := time.Now().UTC()
	h := &harness{
		projects: &stubProjects{proj: &project.Project{
			ID: "p1", ExpectedFileCount: 2, Status: project.StatusCreated, CreatedAt: now, UpdatedAt: now,
		}},
		files:      &stubFiles{},
		issues:     &stubIssues{},
		activity:   &stubActivity{},
		processor:  &stubProcessor{},
		dispatcher: &stubDispatcher{},
	}
	router := NewServer(Services{
		Projects:   h.projects,
		Files:      h.files,
		Issues:     h.issues,
		Activity:   h.activity,
		Processor:  h.processor,
		Dispatcher: h.dispatcher,
	}, opts)
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHTTPServer_Health(t *testing.T) {
	h := newHarness(t, Options{})

	resp, body := h.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
}

func TestHTTPServer_CreateProject(t *testing.T) {
	h := newHarness(t, Options{})

	resp, body := h.do(t, http.MethodPost, "/api/projects", `{"file_count":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, 2, h.projects.created.ExpectedFileCount)
	require.Equal(t, "p1", body["id"])
	require.Equal(t, "created", body["status"])
}

func TestHTTPServer_CreateProjectInvalid(t *testing.T) {
	h := newHarness(t, Options{})

	resp, body := h.do(t, http.MethodPost, "/api/projects", `{"file_count":0}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_INPUT", body["code"])

	resp, body = h.do(t, http.MethodPost, "/api/projects", `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_INPUT", body["code"])
}

func TestHTTPServer_GetProjectNotFound(t *testing.T) {
	h := newHarness(t, Options{})
	h.projects.err = project.ErrProjectNotFound

	resp, body := h.do(t, http.MethodGet, "/api/projects/missing", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "PROJECT_NOT_FOUND", body["code"])
	require.NotEmpty(t, body["recovery_hint"])
}

func TestHTTPServer_ListProjectsEmpty(t *testing.T) {
	h := newHarness(t, Options{})

	resp, body := h.do(t, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{}, body["projects"])
}

func TestHTTPServer_UploadStartsProcessingWhenFull(t *testing.T) {
	h := newHarness(t, Options{AutoStart: true})
	h.files.result = &file.UploadResult{
		File:          &file.ProjectFile{ID: "f2", ProjectID: "p1", Name: "b.py", Content: "secret", Status: file.StatusPending},
		UploadedCount: 2,
		ExpectedCount: 2,
	}

	resp, body := h.do(t, http.MethodPost, "/api/projects/p1/files", `{"filename":"b.py","content":"secret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "b.py", h.files.uploaded.Name)
	require.Equal(t, "p1", h.files.uploaded.ProjectID)
	require.Equal(t, true, body["all_uploaded"])
	require.Equal(t, true, body["processing_started"])
	require.Equal(t, []string{"p1"}, h.dispatcher.started)

	f := body["file"].(map[string]any)
	require.NotContains(t, f, "content")
}

func TestHTTPServer_UploadWithoutAutoStart(t *testing.T) {
	h := newHarness(t, Options{})
	h.files.result = &file.UploadResult{
		File:          &file.ProjectFile{ID: "f2", ProjectID: "p1", Name: "b.py"},
		UploadedCount: 2,
		ExpectedCount: 2,
	}

	resp, body := h.do(t, http.MethodPost, "/api/projects/p1/files", `{"filename":"b.py","content":"x"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, false, body["processing_started"])
	require.Empty(t, h.dispatcher.started)
}

func TestHTTPServer_UploadErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", file.ErrDuplicateFile, http.StatusConflict, "DUPLICATE_FILE"},
		{"limit", file.ErrFileLimitReached, http.StatusConflict, "FILE_LIMIT_REACHED"},
		{"too large", file.ErrContentTooLarge, http.StatusRequestEntityTooLarge, "CONTENT_TOO_LARGE"},
		{"terminal", project.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{"missing project", project.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.files.err = tt.err

			resp, body := h.do(t, http.MethodPost, "/api/projects/p1/files", `{"filename":"a.py","content":"x"}`)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.code, body["code"])
		})
	}
}

func TestHTTPServer_BodyLimit(t *testing.T) {
	h := newHarness(t, Options{MaxBodyBytes: 64})

	payload := fmt.Sprintf(`{"filename":"a.py","content":%q}`, strings.Repeat("x", 200))
	resp, body := h.do(t, http.MethodPost, "/api/projects/p1/files", payload)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, "CONTENT_TOO_LARGE", body["code"])
}

func TestHTTPServer_ProcessFile(t *testing.T) {
	h := newHarness(t, Options{})
	h.processor.result = &processor.Result{
		File:          &file.ProjectFile{ID: "f1", ProjectID: "p1", Name: "a.py", Content: "x", Status: file.StatusAnalyzed},
		ProjectStatus: project.StatusProcessing,
	}

	resp, body := h.do(t, http.MethodPost, "/api/projects/p1/files/f1/process", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "processing", body["project_status"])
	require.Equal(t, []any{}, body["issues"])
	require.NotContains(t, body["file"].(map[string]any), "content")
}

func TestHTTPServer_ProcessFileErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"provider", fmt.Errorf("%w: openai: timeout", analysis.ErrProvider), http.StatusBadGateway, "PROVIDER_ERROR"},
		{"persistence", fmt.Errorf("%w: disk full", processor.ErrPersistence), http.StatusInternalServerError, "PERSISTENCE_ERROR"},
		{"not pending", fmt.Errorf("%w: file cannot move from analyzed to analyzing", project.ErrInvalidState), http.StatusConflict, "INVALID_STATE"},
		{"missing file", file.ErrFileNotFound, http.StatusNotFound, "FILE_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.processor.err = tt.err

			resp, body := h.do(t, http.MethodPost, "/api/projects/p1/files/f1/process", "")
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, tt.code, body["code"])
		})
	}
}

func TestHTTPServer_ProcessProject(t *testing.T) {
	h := newHarness(t, Options{})

	resp, body := h.do(t, http.MethodPost, "/api/projects/p1/process", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, true, body["started"])
	require.Equal(t, []string{"p1"}, h.dispatcher.started)

	h.projects.proj.Status = project.StatusCompleted
	resp, body = h.do(t, http.MethodPost, "/api/projects/p1/process", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "INVALID_STATE", body["code"])
}

func TestHTTPServer_ListIssuesFilters(t *testing.T) {
	h := newHarness(t, Options{})

	resp, body := h.do(t, http.MethodGet, "/api/projects/p1/issues?file_id=f1&confidence=confirmed&type=memory&limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{}, body["issues"])
	require.Equal(t, "f1", *h.issues.opts.FileID)
	require.Equal(t, issue.ConfidenceConfirmed, *h.issues.opts.Confidence)
	require.Equal(t, []issue.Type{issue.TypeMemory}, h.issues.opts.Types)
	require.Equal(t, 5, h.issues.opts.Limit)

	resp, body = h.do(t, http.MethodGet, "/api/projects/p1/issues?confidence=maybe", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_INPUT", body["code"])

	resp, _ = h.do(t, http.MethodGet, "/api/projects/p1/issues?limit=-1", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPServer_Results(t *testing.T) {
	proj := &project.Project{ID: "p1", ExpectedFileCount: 1, Status: project.StatusProcessing}

	t.Run("processing", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.issues.results = &issue.Results{Project: proj, Progress: proj.Progress(0)}

		resp, body := h.do(t, http.MethodGet, "/api/projects/p1/results", "")
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.NotContains(t, body, "statistics")
	})

	t.Run("completed", func(t *testing.T) {
		h := newHarness(t, Options{})
		done := *proj
		done.Status = project.StatusCompleted
		done.ProcessedFileCount = 1
		stats := issue.ComputeStatistics(nil, 1)
		h.issues.results = &issue.Results{
			Project:    &done,
			Progress:   done.Progress(0),
			Confirmed:  []issue.Issue{},
			Potential:  []issue.Issue{},
			Statistics: &stats,
		}

		resp, body := h.do(t, http.MethodGet, "/api/projects/p1/results", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "statistics")
	})

	t.Run("failed", func(t *testing.T) {
		h := newHarness(t, Options{})
		failed := *proj
		failed.Status = project.StatusFailed
		failed.ErrorMessage = "provider error: openai: timeout"
		h.issues.results = &issue.Results{Project: &failed, Progress: failed.Progress(1)}
		h.issues.err = issue.ErrProjectFailed

		resp, body := h.do(t, http.MethodGet, "/api/projects/p1/results", "")
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, "PROJECT_FAILED", body["code"])
		require.Equal(t, failed.ErrorMessage, body["message"])
	})
}

func TestHTTPServer_Activity(t *testing.T) {
	h := newHarness(t, Options{})

	resp, body := h.do(t, http.MethodGet, "/api/projects/p1/activity?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["activity"], 1)
	require.Equal(t, "p1", h.activity.opts.ProjectID)
	require.Equal(t, 10, h.activity.opts.Limit)
}

func TestHTTPServer_AuthGuardsAPIOnly(t *testing.T) {
	resolver := &testResolver{tokenToName: map[string]string{"token": "ci"}}
	h := newHarness(t, Options{Auth: AuthMiddleware(resolver)})

	resp, _ := h.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHORIZED", body["code"])

	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/api/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer token")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	require.Equal(t, http.StatusOK, authed.StatusCode)
}

func TestHTTPServer_MountsMCP(t *testing.T) {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"handler": "mcp"})
	})
	h := newHarness(t, Options{MCP: mcp})

	resp, body := h.do(t, http.MethodPost, "/mcp", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "mcp", body["handler"])
}
