package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/go-chi/chi/v5"
)

type createProjectRequest struct {
	FileCount int `json:"file_count"`
}

type projectResponse struct {
	*project.Project
	Progress project.Progress `json:"progress"`
}

type uploadFileRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type uploadFileResponse struct {
	File              *file.ProjectFile `json:"file"`
	UploadedCount     int               `json:"uploaded_count"`
	ExpectedCount     int               `json:"expected_count"`
	AllUploaded       bool              `json:"all_uploaded"`
	ProcessingStarted bool              `json:"processing_started"`
}

type processFileResponse struct {
	File          *file.ProjectFile `json:"file"`
	Issues        []issue.Issue     `json:"issues"`
	ProjectStatus project.Status    `json:"project_status"`
}

type processProjectResponse struct {
	ProjectID string           `json:"project_id"`
	Started   bool             `json:"started"`
	Progress  project.Progress `json:"progress"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	proj, err := s.services.Projects.Create(r.Context(), project.CreateRequest{ExpectedFileCount: req.FileCount})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Project: proj, Progress: proj.Progress(0)})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.services.Projects.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []project.ProjectSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	proj, progress, err := s.services.Projects.GetProgress(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: proj, Progress: progress})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	var req uploadFileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	projectID := chi.URLParam(r, "projectID")
	res, err := s.services.Files.Upload(r.Context(), file.UploadRequest{
		ProjectID: projectID,
		Name:      req.Filename,
		Content:   req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	started := false
	if res.AllUploaded() && s.opts.AutoStart && s.services.Dispatcher != nil {
		started = s.services.Dispatcher.Start(projectID)
	}

	res.File.Content = ""
	writeJSON(w, http.StatusCreated, uploadFileResponse{
		File:              res.File,
		UploadedCount:     res.UploadedCount,
		ExpectedCount:     res.ExpectedCount,
		AllUploaded:       res.AllUploaded(),
		ProcessingStarted: started,
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.services.Files.List(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if files == nil {
		files = []file.FileRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.services.Files.Get(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	res, err := s.services.Processor.ProcessFile(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}

	res.File.Content = ""
	issues := res.Issues
	if issues == nil {
		issues = []issue.Issue{}
	}
	writeJSON(w, http.StatusOK, processFileResponse{File: res.File, Issues: issues, ProjectStatus: res.ProjectStatus})
}

func (s *Server) handleProcessProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	proj, progress, err := s.services.Projects.GetProgress(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if proj.Status.Terminal() {
		writeError(w, fmt.Errorf("%w: project is %s", project.ErrInvalidState, proj.Status))
		return
	}

	started := false
	if s.services.Dispatcher != nil {
		started = s.services.Dispatcher.Start(projectID)
	}
	writeJSON(w, http.StatusAccepted, processProjectResponse{ProjectID: projectID, Started: started, Progress: progress})
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	opts, err := issueListOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	issues, err := s.services.Issues.List(r.Context(), chi.URLParam(r, "projectID"), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if issues == nil {
		issues = []issue.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := s.services.Issues.Results(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		apiErr, status := MapError(err)
		if errors.Is(err, issue.ErrProjectFailed) && res != nil {
			apiErr.Message = res.Project.ErrorMessage
			apiErr.Details = map[string]any{"project_id": res.Project.ID, "progress": res.Progress}
		}
		writeJSON(w, status, apiErr)
		return
	}

	if !res.Ready() {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if _, _, err := s.services.Projects.GetProgress(r.Context(), projectID); err != nil {
		writeError(w, err)
		return
	}

	opts := activity.ListActivityOptions{ProjectID: projectID}
	if v := r.URL.Query().Get("file_id"); v != "" {
		opts.FileID = &v
	}
	var err error
	if opts.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, err)
		return
	}

	entries, err := s.services.Activity.GetRecentActivity(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func issueListOptions(r *http.Request) (issue.ListOptions, error) {
	var opts issue.ListOptions
	q := r.URL.Query()
	if v := q.Get("file_id"); v != "" {
		opts.FileID = &v
	}
	if v := q.Get("confidence"); v != "" {
		c := issue.Confidence(v)
		if !c.Valid() {
			return opts, fmt.Errorf("%w: unknown confidence %q", ErrBadRequest, v)
		}
		opts.Confidence = &c
	}
	for _, v := range q["type"] {
		t := issue.Type(v)
		if !t.Valid() {
			return opts, fmt.Errorf("%w: unknown issue type %q", ErrBadRequest, v)
		}
		opts.Types = append(opts.Types, t)
	}

	var err error
	if opts.Limit, err = intParam(r, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = intParam(r, "offset"); err != nil {
		return opts, err
	}
	return opts, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadRequest, name)
	}
	return n, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}
