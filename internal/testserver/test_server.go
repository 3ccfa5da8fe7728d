// Package testserver runs a fully wired perfscan server on an in-memory
// database with a scripted analysis provider.
package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/app"
	"github.com/ganot/perfscan/internal/config"
	"github.com/ganot/perfscan/internal/domain/issue"
	"github.com/ganot/perfscan/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	App      *app.App
	Analyzer *Analyzer
	Token    string
}

// Option adjusts the configuration before the server is wired.
type Option func(*config.Config)

// WithAuth enables bearer authentication.
func WithAuth() Option {
	return func(cfg *config.Config) { cfg.Auth.Enabled = true }
}

// WithoutAutoStart disables background processing after the last upload.
func WithoutAutoStart() Option {
	return func(cfg *config.Config) { cfg.Processing.AutoStart = false }
}

// New starts a server and registers token as an API key.
func New(t *testing.T, token string, opts ...Option) *TestServer {
	t.Helper()

	cfg := config.Default()
	cfg.DB.Path = ":memory:"
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sqlite.New(cfg.DB.Path)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	analyzer := NewAnalyzer()
	a := app.New(cfg, db, analyzer, nil)
	server := httptest.NewServer(a.Router())

	ts := &TestServer{Server: server, App: a, Analyzer: analyzer, Token: token}
	require.NoError(t, ts.AddAPIKey(token, "test"))

	t.Cleanup(func() {
		server.Close()
		_ = a.Shutdown(context.Background())
		_ = db.Close()
	})

	return ts
}

// AddAPIKey registers token under name.
func (ts *TestServer) AddAPIKey(token, name string) error {
	return ts.App.Keys.Create(context.Background(), token, name)
}

// Analyzer returns scripted issues or errors per file name.
type Analyzer struct {
	mu       sync.Mutex
	results  map[string][]issue.RawIssue
	failures map[string]error
	calls    map[string]int
}

// NewAnalyzer creates an Analyzer that finds no issues.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		results:  map[string][]issue.RawIssue{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

// SetIssues scripts the candidates returned for a file name.
func (a *Analyzer) SetIssues(name string, issues ...issue.RawIssue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[name] = issues
}

// Fail makes analysis of a file name fail with a provider error.
func (a *Analyzer) Fail(name string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[name] = err
}

// Calls returns how often a file name was analyzed.
func (a *Analyzer) Calls(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

func (a *Analyzer) Analyze(_ context.Context, req analysis.Request) ([]issue.RawIssue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[req.FileName]++
	if err := a.failures[req.FileName]; err != nil {
		return nil, fmt.Errorf("%w: scripted: %w", analysis.ErrProvider, err)
	}
	return a.results[req.FileName], nil
}

func (a *Analyzer) Name() string { return "scripted" }
