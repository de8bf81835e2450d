package condition

import (
	"errors"
	"fmt"
	"slices"
)

// EventType classifies the event a rule fires.
type EventType string

const (
	EventWarning  EventType = "warning"
	EventFatality EventType = "fatality"
	EventInfo     EventType = "info"
)

var (
	// ErrInvalidRule is returned by [Rule.Validate] for malformed rules.
	ErrInvalidRule = errors.New("invalid rule")

	// AllEventTypes contains every supported [EventType].
	AllEventTypes = []EventType{EventWarning, EventFatality, EventInfo}
)

// Event is the payload attached to a rule, copied into a simulation result
// when the rule triggers.
type Event struct {
	Params  map[string]any `json:"params,omitempty"  jsonschema:"title=Event Parameters"`
	Type    EventType      `json:"type"              jsonschema:"title=Event Type,enum=warning,enum=fatality,enum=info"`
	Message string         `json:"message,omitempty" jsonschema:"title=Event Message"`
}

// Rule is an assembled rule. It is treated as immutable by evaluation.
type Rule struct {
	// Conditions is the root of the condition tree.
	Conditions Node `json:"conditions" jsonschema:"title=Conditions"`
	// Priority is informational; higher values run first in rule engines
	// that order rules.
	Priority *int `json:"priority,omitempty" jsonschema:"title=Priority"`
	// Event is fired when the conditions are met.
	Event Event `json:"event" jsonschema:"title=Event"`
	// Name identifies the rule.
	Name string `json:"name" jsonschema:"title=Rule Name"`
}

// Root returns the rule's root condition, or nil if it has none.
//
//nolint:ireturn // Condition is a closed sum type.
func (r *Rule) Root() Condition {
	if r == nil {
		return nil
	}

	return r.Conditions.Condition
}

// Validate checks the rule for structural problems that evaluation would
// otherwise skip or report per-leaf. All problems are joined into one error.
func (r *Rule) Validate() error {
	var errs []error

	if r.Root() == nil {
		errs = append(errs, errors.New("rule has no conditions"))
	} else {
		Walk(r.Root(), func(p Path, c Condition) {
			switch n := c.(type) {
			case *Leaf:
				if n.Fact == "" {
					errs = append(errs, fmt.Errorf("%s: fact name is empty", p))
				}
				if n.Operator == "" {
					errs = append(errs, fmt.Errorf("%s: operator name is empty", p))
				}

			case *Invalid:
				errs = append(errs, fmt.Errorf("%s: %s", p, n.Reason))

			case *Not:
				if n.Condition == nil {
					errs = append(errs, fmt.Errorf("%s: not has no condition", p))
				}
			}
		})
	}

	if r.Event.Type != "" && !slices.Contains(AllEventTypes, r.Event.Type) {
		errs = append(errs, fmt.Errorf("unknown event type %q", r.Event.Type))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidRule, r.Name, errors.Join(errs...))
	}

	return nil
}

// Walk visits every node of the tree rooted at c in document order, passing
// each node's structural path.
func Walk(c Condition, fn func(Path, Condition)) {
	walk(Root(), c, fn)
}

func walk(p Path, c Condition, fn func(Path, Condition)) {
	if c == nil {
		return
	}

	fn(p, c)

	switch n := c.(type) {
	case *All:
		for i, child := range n.Conditions {
			walk(p.AllChild(i), child, fn)
		}

	case *Any:
		for i, child := range n.Conditions {
			walk(p.AnyChild(i), child, fn)
		}

	case *Not:
		walk(p.NotChild(), n.Condition, fn)
	}
}

// Leaves returns the number of leaf conditions in the tree rooted at c.
func Leaves(c Condition) int {
	n := 0

	Walk(c, func(_ Path, c Condition) {
		if _, ok := c.(*Leaf); ok {
			n++
		}
	})

	return n
}
