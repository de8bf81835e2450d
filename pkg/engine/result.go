// Package engine evaluates condition trees.
//
// Evaluation runs in two passes over the same tree. The diagnostic pass
// ([Engine.EvaluateConditions]) evaluates every leaf in document order, with
// no short-circuiting, and returns a flat list of [LeafResult] values keyed by
// structural path. The aggregation pass ([AreConditionsMet]) then re-walks the
// tree and computes the trigger value from those results.
package engine

import (
	"errors"
	"time"

	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/fact"
	"github.com/macropower/rulesim/pkg/operator"
)

// LeafResult is the outcome of evaluating one leaf condition.
type LeafResult struct {
	// FactValue is the resolved fact value, after path extraction.
	FactValue any `json:"factValue"`
	// CompareValue is the leaf's comparison operand.
	CompareValue any `json:"compareValue"`
	// Err is the error behind Error, for classification with [errors.Is].
	Err error `json:"-"`
	// Params are the leaf's fact parameters.
	Params map[string]any `json:"params,omitempty"`
	// FactName is the name of the resolved fact.
	FactName string `json:"factName"`
	// Operator is the name of the dispatched operator.
	Operator string `json:"operator"`
	// Error describes why the leaf failed, if it did.
	Error string `json:"error,omitempty"`
	// JSONPath is the leaf's value path, if any.
	JSONPath string `json:"jsonPath,omitempty"`
	// Path is the leaf's position in the condition tree.
	Path condition.Path `json:"path"`
	// Duration is the wall-clock time spent evaluating the leaf.
	Duration time.Duration `json:"duration"`
	// Result is the leaf's boolean outcome.
	Result bool `json:"result"`
}

// Failed reports whether the leaf recorded an error.
func (r *LeafResult) Failed() bool {
	return r.Error != ""
}

// Unknown reports whether the leaf failed because its fact or operator is
// not registered.
func (r *LeafResult) Unknown() bool {
	return IsUnknown(r.Err)
}

// IsUnknown reports whether err is an unknown fact or unknown operator error.
func IsUnknown(err error) bool {
	return errors.Is(err, fact.ErrUnknownFact) || errors.Is(err, operator.ErrUnknownOperator)
}

func (r *LeafResult) fail(err error) {
	r.Result = false
	r.Err = err
	r.Error = err.Error()
}

// Lookup maps path keys ([condition.Path.Key]) to leaf results.
type Lookup map[string]bool

// NewLookup builds a [Lookup] from results. When two results share a path,
// the later one wins.
func NewLookup(results []LeafResult) Lookup {
	lookup := make(Lookup, len(results))
	for _, r := range results {
		lookup[r.Path.Key()] = r.Result
	}

	return lookup
}
