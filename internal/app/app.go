// Package app wires the store, domain services, processor and transports
// into a runnable server.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/config"
	"github.com/ganot/perfscan/internal/domain/activity"
	"github.com/ganot/perfscan/internal/domain/file"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/domain/project"
	"github.com/ganot/perfscan/internal/mcp"
	"github.com/ganot/perfscan/internal/processor"
	"github.com/ganot/perfscan/internal/sqlite"
	"github.com/ganot/perfscan/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported by the MCP server and the version command.
var Version = "0.1.0"

// App holds the wired components of a server.
type App struct {
	Config     config.Config
	DB         *sqlite.DB
	Keys       *sqlite.APIKeyRepository
	Projects   *project.Service
	Files      *file.Service
	Issues     *issue.Service
	Activity   *activity.Service
	Processor  *processor.Processor
	Dispatcher *processor.Dispatcher
	MCP        *sdkmcp.Server
	Logger     *slog.Logger
}

// New wires an App on an opened and migrated db.
func New(cfg config.Config, db *sqlite.DB, analyzer analysis.Client, logger *slog.Logger) *App {
	projectRepo := sqlite.NewProjectRepository(db)
	fileRepo := sqlite.NewFileRepository(db)
	issueRepo := sqlite.NewIssueRepository(db)
	activityRepo := sqlite.NewActivityRepository(db)

	a := &App{
		Config:   cfg,
		DB:       db,
		Keys:     sqlite.NewAPIKeyRepository(db),
		Projects: project.NewService(projectRepo, activityRepo, logger),
		Files:    file.NewService(fileRepo, projectRepo, activityRepo, cfg.Upload.MaxContentBytes, logger),
		Issues:   issue.NewService(issueRepo, projectRepo, logger),
		Activity: activity.NewService(activityRepo, logger),
		Logger:   logger,
	}

	a.Processor = processor.New(processor.Stores{
		Tx:       db,
		Projects: projectRepo,
		Files:    fileRepo,
		Issues:   issueRepo,
		Activity: activityRepo,
	}, analyzer, processor.Options{
		Correlation: issue.CorrelateOptions{
			Mode:       issue.MatchMode(cfg.Correlation.Mode),
			LineWindow: cfg.Correlation.LineWindow,
		},
		ResultLanguage: cfg.Analysis.ResultLanguage,
		Workers:        cfg.Processing.Workers,
	}, logger)
	a.Dispatcher = processor.NewDispatcher(a.Processor)

	a.MCP = mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Projects:  a.Projects,
			Files:     a.Files,
			Issues:    a.Issues,
			Processor: a.Processor,
		},
		Resolver:      a.Resolver(),
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Version:       Version,
		Logger:        logger,
	})

	return a
}

// Resolver authenticates bearer tokens against the stored API keys.
func (a *App) Resolver() transport.KeyResolver {
	return &apiKeyResolver{keys: a.Keys}
}

// Router serves the REST API with the MCP endpoint mounted at /mcp.
func (a *App) Router() http.Handler {
	maxContent := int64(a.Config.Upload.MaxContentBytes)
	if maxContent <= 0 {
		maxContent = file.DefaultMaxContentBytes
	}
	opts := transport.Options{
		MCP:       mcp.NewHTTPHandler(a.MCP),
		AutoStart: a.Config.Processing.AutoStart,
		// JSON escaping can grow content, so leave room above the content cap.
		MaxBodyBytes: 2*maxContent + 1<<20,
		Logger:       a.Logger,
	}
	if a.Config.Auth.Enabled {
		opts.Auth = transport.AuthMiddleware(a.Resolver())
	}

	return transport.NewServer(transport.Services{
		Projects:   a.Projects,
		Files:      a.Files,
		Issues:     a.Issues,
		Activity:   a.Activity,
		Processor:  a.Processor,
		Dispatcher: a.Dispatcher,
	}, opts)
}

// Shutdown stops background processing.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Dispatcher.Shutdown(ctx)
}

type apiKeyResolver struct {
	keys *sqlite.APIKeyRepository
}

func (r *apiKeyResolver) ResolveKey(ctx context.Context, token string) (string, error) {
	name, err := r.keys.Resolve(ctx, token)
	if err != nil || name == "" {
		return "", transport.ErrUnauthorized
	}
	return name, nil
}
