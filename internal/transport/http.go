package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/processor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ProjectService defines project operations needed by the API.
type ProjectService interface {
	Create(ctx context.Context, req project.CreateRequest) (*project.Project, error)
	List(ctx context.Context) ([]project.ProjectSummary, error)
	GetProgress(ctx context.Context, id string) (*project.Project, project.Progress, error)
}

// FileService defines file operations needed by the API.
type FileService interface {
	Upload(ctx context.Context, req file.UploadRequest) (*file.UploadResult, error)
	List(ctx context.Context, projectID string) ([]file.FileRef, error)
	Get(ctx context.Context, projectID, id string) (*file.ProjectFile, error)
}

// IssueService defines issue operations needed by the API.
type IssueService interface {
	List(ctx context.Context, projectID string, opts issue.ListOptions) ([]issue.Issue, error)
	Results(ctx context.Context, projectID string) (*issue.Results, error)
}

// ActivityService defines activity operations needed by the API.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// FileProcessor analyzes a single file synchronously.
type FileProcessor interface {
	ProcessFile(ctx context.Context, projectID, fileID string) (*processor.Result, error)
}

// Dispatcher processes the pending files of a project in the background.
type Dispatcher interface {
	Start(projectID string) bool
}

// Services contains the domain services the API serves.
type Services struct {
	Projects   ProjectService
	Files      FileService
	Issues     IssueService
	Activity   ActivityService
	Processor  FileProcessor
	Dispatcher Dispatcher
}

// Options configures the router.
type Options struct {
	// Auth guards /api when set.
	Auth func(http.Handler) http.Handler
	// MCP is mounted at /mcp when set. It carries its own authentication.
	MCP http.Handler
	// AutoStart starts background processing once a project has all its files.
	AutoStart bool
	// MaxBodyBytes caps request bodies. Zero means no cap.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	services Services
	opts     Options
}

// NewServer creates an HTTP server router with middleware.
func NewServer(services Services, opts Options) *chi.Mux {
	srv := &Server{services: services, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	r.Get("/health", srv.handleHealth)
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
		r.Handle("/mcp/*", opts.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		if opts.MaxBodyBytes > 0 {
			r.Use(middleware.RequestSize(opts.MaxBodyBytes))
		}

		r.Post("/projects", srv.handleCreateProject)
		r.Get("/projects", srv.handleListProjects)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", srv.handleGetProject)
			r.Post("/files", srv.handleUploadFile)
			r.Get("/files", srv.handleListFiles)
			r.Get("/files/{fileID}", srv.handleGetFile)
			r.Post("/files/{fileID}/process", srv.handleProcessFile)
			r.Post("/process", srv.handleProcessProject)
			r.Get("/issues", srv.handleListIssues)
			r.Get("/results", srv.handleResults)
			r.Get("/activity", srv.handleActivity)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
