package eyes

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ClassicRunner collects the results of Eyes that capture from a local browser.
// Close and abort requests run in the background; GetAllTestResults joins them.
type ClassicRunner struct {
	mu         sync.Mutex
	group      errgroup.Group
	containers []*TestResultContainer
	open       map[*Eyes]struct{}
}

// NewClassicRunner creates an empty runner.
func NewClassicRunner() *ClassicRunner {
	return &ClassicRunner{
		open: make(map[*Eyes]struct{}),
	}
}

func (r *ClassicRunner) register(e *Eyes) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[e] = struct{}{}
}

// track runs stop in the background and records its outcome in submission order.
func (r *ClassicRunner) track(e *Eyes, stop func() (*TestResults, error)) {
	container := &TestResultContainer{}

	r.mu.Lock()
	delete(r.open, e)
	r.containers = append(r.containers, container)
	r.mu.Unlock()

	r.group.Go(func() error {
		results, err := stop()

		r.mu.Lock()
		container.TestResults = results
		container.Err = err
		r.mu.Unlock()

		// Failures are carried by the container, not the group.
		return nil
	})
}

// GetAllTestResults aborts any Eyes still open, waits for every pending close
// or abort, and returns the aggregated summary. The error is non-nil when ctx
// expires first, or when a test failed, found differences, or raised an error;
// the summary is returned in the latter case too.
func (r *ClassicRunner) GetAllTestResults(ctx context.Context) (*TestResultsSummary, error) {
	r.mu.Lock()
	stillOpen := make([]*Eyes, 0, len(r.open))
	for e := range r.open {
		stillOpen = append(stillOpen, e)
	}
	r.mu.Unlock()

	for _, e := range stillOpen {
		e.AbortAsync(ctx)
	}

	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.Lock()
	containers := make([]TestResultContainer, 0, len(r.containers))
	for _, c := range r.containers {
		containers = append(containers, *c)
	}
	r.mu.Unlock()

	summary := NewTestResultsSummary(containers)
	return summary, summary.Err()
}
