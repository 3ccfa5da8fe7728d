package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/domain/project"
	"golang.org/x/sync/errgroup"
)

// Summary counts the outcome of a ProcessPending run.
type Summary struct {
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// ProcessPending processes every pending file of a project with at most
// Options.Workers files in flight. Files another caller already claimed, or
// that are refused because the project became terminal, count as skipped.
// Once ctx is cancelled no further files are claimed; they stay pending and
// count as skipped, while files already in flight are finished.
// Provider failures count as failed. The first other error is returned after
// all workers finish.
func (p *Processor) ProcessPending(ctx context.Context, projectID string) (Summary, error) {
	if _, err := p.stores.Projects.Get(ctx, projectID); err != nil {
		return Summary{}, notFoundOr(err)
	}
	ids, err := p.stores.Files.ListPendingIDs(ctx, projectID)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	var analyzed, failed, skipped atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			_, err := p.ProcessFile(ctx, projectID, id)
			switch {
			case err == nil:
				analyzed.Add(1)
			case errors.Is(err, project.ErrInvalidState):
				skipped.Add(1)
			case errors.Is(err, analysis.ErrProvider):
				failed.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	err = g.Wait()

	sum := Summary{
		Analyzed: int(analyzed.Load()),
		Failed:   int(failed.Load()),
		Skipped:  int(skipped.Load()),
	}
	if p.logger != nil {
		p.logger.Info("pending files processed",
			"project_id", projectID,
			"analyzed", sum.Analyzed,
			"failed", sum.Failed,
			"skipped", sum.Skipped,
		)
	}
	return sum, err
}

func notFoundOr(err error) error {
	if errors.Is(err, project.ErrProjectNotFound) {
		return err
	}
	if isNotFound(err) {
		return project.ErrProjectNotFound
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Dispatcher runs ProcessPending in the background, at most once per project
// at a time.
type Dispatcher struct {
	proc    *Processor
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]bool
	closed  bool
}

// NewDispatcher creates a dispatcher for proc.
func NewDispatcher(proc *Processor) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		proc:    proc,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]bool),
	}
}

// Start processes the pending files of projectID in the background. It
// returns false when a run for the project is already in progress or the
// dispatcher is shut down.
func (d *Dispatcher) Start(projectID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.running[projectID] {
		return false
	}
	d.running[projectID] = true
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.running, projectID)
			d.mu.Unlock()
		}()

		if _, err := d.proc.ProcessPending(d.ctx, projectID); err != nil && d.proc.logger != nil {
			d.proc.logger.Error("background processing failed", "project_id", projectID, "error", err)
		}
	}()
	return true
}

// Wait blocks until every started run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting runs and waits for running ones. When ctx ends
// first, runs stop claiming files and ctx's error is returned once the files
// in flight are finished, which is bounded by the provider timeout.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
