// Package condition defines the rule data model: a tree of leaf conditions
// combined with `all`, `any` and `not` groups, plus the event a rule fires.
package condition

import (
	"strconv"
	"strings"
)

// Condition is a node in a rule's condition tree. The set of implementations
// is closed: [*Leaf], [*All], [*Any], [*Not] and [*Invalid].
type Condition interface {
	isCondition()
}

// Leaf compares a resolved fact against a literal value using an operator.
type Leaf struct {
	// Value is the comparison operand, of any shape.
	Value any `json:"value"`
	// Params are passed to the fact resolver.
	Params map[string]any `json:"params,omitempty"`
	// Fact is the name of the fact to resolve.
	Fact string `json:"fact"`
	// Operator is the name of the operator used for comparison.
	Operator string `json:"operator"`
	// Path optionally selects a sub-value of the resolved fact, e.g. `$.a.b[0]`.
	Path string `json:"path,omitempty"`
}

// All is satisfied when every child is satisfied. An empty All is satisfied.
type All struct {
	Conditions []Condition
}

// Any is satisfied when at least one child is satisfied. An empty Any is not.
type Any struct {
	Conditions []Condition
}

// Not negates its single child.
type Not struct {
	Condition Condition
}

// Invalid is a node that matched neither the leaf nor the group shape. It is
// retained so evaluation can report and skip it.
type Invalid struct {
	Raw    any
	Reason string
}

func (*Leaf) isCondition()    {}
func (*All) isCondition()     {}
func (*Any) isCondition()     {}
func (*Not) isCondition()     {}
func (*Invalid) isCondition() {}

// Path identifies a node's position in a condition tree, e.g.
// ["conditions", "all", "0", "not"].
type Path []string

// Root is the path of a rule's top-level condition.
func Root() Path {
	return Path{"conditions"}
}

// Child returns a new path with the given tokens appended. The receiver is
// never modified.
func (p Path) Child(tokens ...string) Path {
	out := make(Path, 0, len(p)+len(tokens))
	out = append(out, p...)

	return append(out, tokens...)
}

// AllChild returns the path of the i-th child of an `all` group at p.
func (p Path) AllChild(i int) Path {
	return p.Child("all", strconv.Itoa(i))
}

// AnyChild returns the path of the i-th child of an `any` group at p.
func (p Path) AnyChild(i int) Path {
	return p.Child("any", strconv.Itoa(i))
}

// NotChild returns the path of the child of a `not` group at p.
func (p Path) NotChild() Path {
	return p.Child("not")
}

// Key returns a string form of the path, suitable as a map key.
func (p Path) Key() string {
	return strings.Join(p, ".")
}

func (p Path) String() string {
	return p.Key()
}
