package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/fact"
	"github.com/macropower/rulesim/pkg/log"
	"github.com/macropower/rulesim/pkg/operator"
	"github.com/macropower/rulesim/pkg/valuepath"
)

// Engine evaluates conditions against an [fact.Almanac].
// It is stateless and safe for concurrent use.
type Engine struct {
	operators operator.Lookup
}

// New creates a new [Engine]. Operators that are not built in are looked up
// in operators, which may be nil.
func New(operators operator.Lookup) *Engine {
	return &Engine{operators: operators}
}

// Evaluation is the outcome of both evaluation passes.
type Evaluation struct {
	// Results holds one entry per evaluated leaf, in document order.
	Results []LeafResult
	// Met is the aggregated trigger value.
	Met bool
}

// Evaluate runs the diagnostic pass over root, then aggregates the results.
func (e *Engine) Evaluate(ctx context.Context, almanac *fact.Almanac, root condition.Condition) Evaluation {
	results := e.EvaluateConditions(ctx, almanac, root, condition.Root())

	return Evaluation{
		Results: results,
		Met:     AreConditionsMet(root, condition.Root(), NewLookup(results)),
	}
}

// EvaluateCondition evaluates a single leaf at path p.
//
// It never panics and never returns an error: every failure is recorded on
// the returned [LeafResult] with Result set to false.
func (e *Engine) EvaluateCondition(ctx context.Context, almanac *fact.Almanac, leaf *condition.Leaf, p condition.Path) (r LeafResult) {
	start := time.Now()

	r = LeafResult{
		Path:         p,
		FactName:     leaf.Fact,
		Operator:     leaf.Operator,
		CompareValue: leaf.Value,
		JSONPath:     leaf.Path,
		Params:       leaf.Params,
	}

	logger := log.WithContext(ctx).With(slog.String("path", p.Key()))

	defer func() {
		if rec := recover(); rec != nil {
			r.fail(fmt.Errorf("evaluate condition: %v", rec))
		}

		r.Duration = time.Since(start)

		logger.DebugContext(ctx, "evaluated condition",
			slog.String("fact", r.FactName),
			slog.String("operator", r.Operator),
			slog.Bool("result", r.Result),
			slog.String("error", r.Error),
		)
	}()

	res := almanac.Resolve(ctx, leaf.Fact, leaf.Params)
	if !res.OK {
		r.fail(res.Err)
		return r
	}

	r.FactValue = res.Value
	if leaf.Path != "" {
		r.FactValue, _ = valuepath.Get(res.Value, leaf.Path)
	}

	result, err := operator.Dispatch(e.operators, leaf.Operator, r.FactValue, leaf.Value)
	if err != nil {
		r.fail(err)
		return r
	}

	r.Result = result

	return r
}

// EvaluateConditions walks c, starting at path p, and evaluates every leaf.
//
// Children of all and any groups are all evaluated, in order. Results
// produced under a not group have their individual Result inverted; the
// subtree's aggregate is not. Invalid nodes are skipped with a warning.
func (e *Engine) EvaluateConditions(ctx context.Context, almanac *fact.Almanac, c condition.Condition, p condition.Path) []LeafResult {
	switch n := c.(type) {
	case *condition.Leaf:
		return []LeafResult{e.EvaluateCondition(ctx, almanac, n, p)}

	case *condition.All:
		var results []LeafResult
		for i, child := range n.Conditions {
			results = append(results, e.EvaluateConditions(ctx, almanac, child, p.AllChild(i))...)
		}

		return results

	case *condition.Any:
		var results []LeafResult
		for i, child := range n.Conditions {
			results = append(results, e.EvaluateConditions(ctx, almanac, child, p.AnyChild(i))...)
		}

		return results

	case *condition.Not:
		results := e.EvaluateConditions(ctx, almanac, n.Condition, p.NotChild())
		for i := range results {
			results[i].Result = !results[i].Result
		}

		return results
	}

	attrs := []any{slog.String("path", p.Key())}
	if inv, ok := c.(*condition.Invalid); ok {
		attrs = append(attrs, slog.String("reason", inv.Reason))
	}

	log.WithContext(ctx).WarnContext(ctx, "skipping invalid condition", attrs...)

	return nil
}

// AreConditionsMet computes the trigger value of c at path p from lookup.
//
// Leaves read their result from lookup, defaulting to false. An empty all
// group is true and an empty any group is false; non-empty groups
// short-circuit. A not group negates the aggregate of its child, computed
// from the same lookup. Invalid nodes are false.
func AreConditionsMet(c condition.Condition, p condition.Path, lookup Lookup) bool {
	switch n := c.(type) {
	case *condition.Leaf:
		return lookup[p.Key()]

	case *condition.All:
		for i, child := range n.Conditions {
			if !AreConditionsMet(child, p.AllChild(i), lookup) {
				return false
			}
		}

		return true

	case *condition.Any:
		for i, child := range n.Conditions {
			if AreConditionsMet(child, p.AnyChild(i), lookup) {
				return true
			}
		}

		return false

	case *condition.Not:
		return !AreConditionsMet(n.Condition, p.NotChild(), lookup)
	}

	return false
}
