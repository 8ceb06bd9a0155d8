package lifecycle

import (
	"fmt"
	"strings"
)

// AddResult is the outcome of one add workflow.
type AddResult struct {
	Node Node
	Err  error
}

// PartialScaleFailure is returned when at least one add workflow of a batch
// failed. Results holds every node of the batch, successful ones included.
type PartialScaleFailure struct {
	Pool    string
	Results []AddResult
}

func (e *PartialScaleFailure) Error() string {
	failed := e.Failed()
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %v", r.Node.Name, r.Err))
	}
	return fmt.Sprintf("%d of %d nodes of pool %s failed: %s",
		len(failed), len(e.Results), e.Pool, strings.Join(parts, "; "))
}

// Unwrap exposes the per-node errors to errors.Is and errors.As.
func (e *PartialScaleFailure) Unwrap() []error {
	var errs []error
	for _, r := range e.Failed() {
		errs = append(errs, r.Err)
	}
	return errs
}

// Failed returns the results that carry an error.
func (e *PartialScaleFailure) Failed() []AddResult {
	var out []AddResult
	for _, r := range e.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Succeeded returns the nodes that reached Ready.
func (e *PartialScaleFailure) Succeeded() []Node {
	var out []Node
	for _, r := range e.Results {
		if r.Err == nil {
			out = append(out, r.Node)
		}
	}
	return out
}

// RemovalBlockedError stops a remove workflow. State is the last state the
// node was confirmed in. Abandoned lists nodes queued after it that were
// not touched.
type RemovalBlockedError struct {
	Node      string
	State     Status
	Abandoned []string
	Err       error
}

func (e *RemovalBlockedError) Error() string {
	msg := fmt.Sprintf("removal of %s blocked in state %s: %v", e.Node, e.State, e.Err)
	if len(e.Abandoned) > 0 {
		msg += fmt.Sprintf(" (not attempted: %s)", strings.Join(e.Abandoned, ", "))
	}
	return msg
}

func (e *RemovalBlockedError) Unwrap() error {
	return e.Err
}
