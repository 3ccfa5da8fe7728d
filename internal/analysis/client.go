// Package analysis sends file contents to an LLM provider and turns its reply
// into issue candidates.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/perfscan/internal/domain/issue"
)

// ErrProvider marks every failure of the provider call: transport errors,
// timeouts, non-success responses and replies that do not match the schema.
var ErrProvider = errors.New("analysis provider error")

// Request describes one file to analyze.
type Request struct {
	FileName       string
	Content        string
	FileType       string
	ResultLanguage string
}

// Client analyzes a single file.
type Client interface {
	Analyze(ctx context.Context, req Request) ([]issue.RawIssue, error)
	Name() string
}

// Completer sends one prompt pair to a model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// Options tunes an Analyzer.
type Options struct {
	// Timeout bounds a single provider call. Zero means no extra deadline.
	Timeout time.Duration
	// MaxContentChars truncates file content before prompting.
	MaxContentChars int
	// ResultLanguage is used when a request does not name one.
	ResultLanguage string
}

// Analyzer makes exactly one provider call per file. It does not retry.
type Analyzer struct {
	completer Completer
	opts      Options
	logger    *slog.Logger
}

// NewAnalyzer wraps a completer.
func NewAnalyzer(completer Completer, opts Options, logger *slog.Logger) *Analyzer {
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = DefaultMaxContentChars
	}
	if opts.ResultLanguage == "" {
		opts.ResultLanguage = DefaultResultLanguage
	}
	return &Analyzer{completer: completer, opts: opts, logger: logger}
}

// Name returns the provider name.
func (a *Analyzer) Name() string { return a.completer.Name() }

// Analyze returns the provider's issue candidates for one file in the order
// the provider reported them. Every failure wraps ErrProvider.
func (a *Analyzer) Analyze(ctx context.Context, req Request) ([]issue.RawIssue, error) {
	if req.ResultLanguage == "" {
		req.ResultLanguage = a.opts.ResultLanguage
	}
	req.Content = TruncateContent(req.Content, a.opts.MaxContentChars)

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.completer.Complete(ctx, SystemPrompt(req.ResultLanguage), BuildUserPrompt(req))
	if err != nil {
		a.logFailure(req, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrProvider, a.completer.Name(), err)
	}

	candidates, err := ParseIssues(reply)
	if err != nil {
		a.logFailure(req, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrProvider, a.completer.Name(), err)
	}

	if a.logger != nil {
		a.logger.Info("analysis completed",
			"provider", a.completer.Name(),
			"file", req.FileName,
			"type", req.FileType,
			"candidates", len(candidates),
			"elapsed", time.Since(start).String(),
		)
	}
	return candidates, nil
}

func (a *Analyzer) logFailure(req Request, err error) {
	if a.logger != nil {
		a.logger.Error("analysis failed", "provider", a.completer.Name(), "file", req.FileName, "error", err)
	}
}

// New creates an analyzer for the named provider.
func New(provider, model, baseURL, apiKey string, opts Options, logger *slog.Logger) (*Analyzer, error) {
	var completer Completer
	var err error
	switch provider {
	case "openai":
		completer, err = NewOpenAI(model, baseURL, apiKey)
	case "ollama":
		completer, err = NewOllama(model, baseURL)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return NewAnalyzer(completer, opts, logger), nil
}
