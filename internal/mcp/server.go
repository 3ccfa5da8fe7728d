// Package mcp exposes project analysis as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/processor"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `This server analyzes source files for performance issues.

Workflow:
1. create_project with the number of files you will upload.
2. upload_file once per file.
3. process_file for each uploaded file. The provider is called synchronously.
4. list_issues to read the correlated findings, or get_project for progress.

A project fails as soon as one file cannot be analyzed; create a new project to retry.`

// ProjectService defines project operations needed by MCP.
type ProjectService interface {
	Create(ctx context.Context, req project.CreateRequest) (*project.Project, error)
	List(ctx context.Context) ([]project.ProjectSummary, error)
	GetProgress(ctx context.Context, id string) (*project.Project, project.Progress, error)
}

// FileService defines file operations needed by MCP.
type FileService interface {
	Upload(ctx context.Context, req file.UploadRequest) (*file.UploadResult, error)
}

// IssueService defines issue operations needed by MCP.
type IssueService interface {
	List(ctx context.Context, projectID string, opts issue.ListOptions) ([]issue.Issue, error)
}

// FileProcessor analyzes a single file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, projectID, fileID string) (*processor.Result, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Projects  ProjectService
	Files     FileService
	Issues    IssueService
	Processor FileProcessor
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      KeyResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "perfscan",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	// Middleware added later runs first, so auth wraps traffic logging.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))
	// Stdio is local only and never authenticates.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(localPrincipal))
	}

	registerTools(server, &toolHandlers{services: cfg.Services, logger: cfg.Logger})

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
	)
}
