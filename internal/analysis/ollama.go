package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/JexSrs/go-ollama"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "llama3"
)

// Ollama completes prompts with a local Ollama server.
type Ollama struct {
	client *ollama.Ollama
	model  string
}

// NewOllama creates an Ollama completer for host.
func NewOllama(model, host string) (*Ollama, error) {
	if host == "" {
		host = defaultOllamaHost
	}
	if model == "" {
		model = defaultOllamaModel
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	return &Ollama{client: ollama.New(*u), model: model}, nil
}

func (o *Ollama) Name() string { return "ollama" }

type generateResult struct {
	text string
	err  error
}

// Complete runs one Generate call. The client has no context support, so the
// call is abandoned (not cancelled) when ctx ends.
func (o *Ollama) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	done := make(chan generateResult, 1)
	go func() {
		res, err := o.client.Generate(
			o.client.Generate.WithModel(o.model),
			o.client.Generate.WithSystem(systemPrompt),
			o.client.Generate.WithPrompt(userPrompt),
		)
		if err != nil {
			done <- generateResult{err: fmt.Errorf("generate: %w", err)}
			return
		}
		if !res.Done {
			done <- generateResult{err: errors.New("generate did not finish")}
			return
		}
		if res.Response == "" {
			done <- generateResult{err: errors.New("empty response")}
			return
		}
		done <- generateResult{text: res.Response}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}
