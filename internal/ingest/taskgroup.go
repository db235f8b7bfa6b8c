package ingest

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Outcome is the result of one task in a group, labelled by the unit of
// work it belongs to (an observer name, a location id).
type Outcome struct {
	Label string
	Err   error
}

// TaskGroup launches independent remote calls together and waits for every
// one of them to settle. Unlike errgroup it never cancels siblings and it
// reports every individual outcome: the policy of raising after completion
// without undoing successes is made at the call site, not here.
type TaskGroup struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	outcomes []Outcome
}

// Go launches one task.
func (g *TaskGroup) Go(label string, fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := fn()

		g.mu.Lock()
		g.outcomes = append(g.outcomes, Outcome{Label: label, Err: err})
		g.mu.Unlock()
	}()
}

// Wait blocks until every launched task has settled and returns all
// outcomes, successes included.
func (g *TaskGroup) Wait() []Outcome {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outcomes
}

// CombineFailures folds the failed outcomes of a settled group into a
// single TransportError, or nil when everything succeeded.
func CombineFailures(phase string, outcomes []Outcome) error {
	var merr *multierror.Error
	for _, o := range outcomes {
		if o.Err != nil {
			merr = multierror.Append(merr, &labelledError{label: o.Label, err: o.Err})
		}
	}
	if merr == nil {
		return nil
	}
	return &TransportError{Phase: phase, Err: merr}
}

type labelledError struct {
	label string
	err   error
}

func (e *labelledError) Error() string {
	return e.label + ": " + e.err.Error()
}

func (e *labelledError) Unwrap() error {
	return e.err
}
