package simulate

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/engine"
)

// FinalResult classifies the outcome of a simulation run.
type FinalResult string

const (
	Triggered    FinalResult = "triggered"
	NotTriggered FinalResult = "not-triggered"
	Error        FinalResult = "error"
)

// Options control a single simulation run.
type Options struct {
	// Timeout bounds the context passed to fact definitions. The walk itself
	// still runs to completion. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Verbose keeps leaf faults from failing the run, so every leaf result
	// is reported as part of a successful run.
	Verbose bool `json:"verbose,omitempty"`
	// SkipAST tells facts that parse file structure to skip parsing.
	SkipAST bool `json:"skipAst,omitempty"`
}

// Result is the outcome of one simulation run.
type Result struct {
	// Timestamp is when the run started.
	Timestamp time.Time `json:"timestamp"`
	// Event is the rule's event, set when the rule triggered.
	Event *condition.Event `json:"event,omitempty"`
	// Err is the error behind Error, for classification with [errors.Is].
	Err error `json:"-"`
	// FileName identifies the target, or [GlobalTarget].
	FileName string `json:"fileName"`
	// FinalResult classifies the run.
	FinalResult FinalResult `json:"finalResult"`
	// Error describes why the run failed, if it did.
	Error string `json:"error,omitempty"`
	// ConditionResults holds one entry per evaluated leaf, in document order.
	ConditionResults []engine.LeafResult `json:"conditionResults"`
	// Duration is the total run time.
	Duration time.Duration `json:"duration"`
	// Success reports whether the run completed without a run-level error.
	Success bool `json:"success"`
}

func (r *Result) fail(err error) {
	r.Success = false
	r.FinalResult = Error
	r.Event = nil
	r.Err = err
	r.Error = err.Error()
}

// Triggered reports whether the rule fired.
func (r *Result) Triggered() bool {
	return r.FinalResult == Triggered
}

// Failures returns the leaf results that recorded an error.
func (r *Result) Failures() []engine.LeafResult {
	var out []engine.LeafResult
	for _, lr := range r.ConditionResults {
		if lr.Failed() {
			out = append(out, lr)
		}
	}

	return out
}

// Batch holds the results of [Simulator.SimulateAll], keyed by file name.
type Batch map[string]*Result

// Files returns the file names in the batch, sorted.
func (b Batch) Files() []string {
	return slices.Sorted(maps.Keys(b))
}

// Count returns the number of results with the given outcome.
func (b Batch) Count(fr FinalResult) int {
	n := 0
	for _, r := range b {
		if r.FinalResult == fr {
			n++
		}
	}

	return n
}

// Err returns the errors of all failed runs, joined in file order.
func (b Batch) Err() error {
	var errs []error
	for _, name := range b.Files() {
		if r := b[name]; r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, r.Err))
		}
	}

	return errors.Join(errs...)
}
