package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"
)

// ErrDecode is returned when decoded data cannot form a condition tree.
var ErrDecode = errors.New("decode condition")

var groupKeys = []string{"all", "any", "not"}

// FromValue builds a condition tree from generic decoded data, such as the
// output of a JSON or YAML decoder.
//
// A node that has neither a leaf shape (fact and operator) nor a group shape
// (all, any or not) becomes an [*Invalid] node. A node that mixes two group
// keys, or a group key with a fact, is an error.
//
//nolint:ireturn // Condition is a closed sum type.
func FromValue(v any) (Condition, error) {
	return fromValue(Root(), v)
}

//nolint:ireturn // Condition is a closed sum type.
func fromValue(p Path, v any) (Condition, error) {
	m, ok := asMap(v)
	if !ok {
		return &Invalid{Raw: v, Reason: fmt.Sprintf("expected a mapping, got %T", v)}, nil
	}

	var group string
	for _, k := range groupKeys {
		if _, ok := m[k]; !ok {
			continue
		}
		if group != "" {
			return nil, fmt.Errorf("%w: %s: node mixes %q and %q", ErrDecode, p, group, k)
		}

		group = k
	}

	_, hasFact := m["fact"]
	if group != "" && hasFact {
		return nil, fmt.Errorf("%w: %s: node mixes %q and \"fact\"", ErrDecode, p, group)
	}

	switch group {
	case "all":
		children, err := fromList(p, "all", m["all"])
		if err != nil {
			return nil, err
		}

		return &All{Conditions: children}, nil

	case "any":
		children, err := fromList(p, "any", m["any"])
		if err != nil {
			return nil, err
		}

		return &Any{Conditions: children}, nil

	case "not":
		child, err := fromValue(p.NotChild(), m["not"])
		if err != nil {
			return nil, err
		}

		return &Not{Condition: child}, nil
	}

	_, hasOperator := m["operator"]
	if !hasFact || !hasOperator {
		return &Invalid{Raw: v, Reason: "node has neither fact and operator nor all, any or not"}, nil
	}

	return leafFromMap(p, m)
}

func fromList(p Path, key string, v any) ([]Condition, error) {
	if v == nil {
		return []Condition{}, nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %q must be a list, got %T", ErrDecode, p, key, v)
	}

	out := make([]Condition, 0, len(items))
	for i, item := range items {
		child, err := fromValue(p.Child(key, strconv.Itoa(i)), item)
		if err != nil {
			return nil, err
		}

		out = append(out, child)
	}

	return out, nil
}

func leafFromMap(p Path, m map[string]any) (*Leaf, error) {
	leaf := &Leaf{Value: m["value"]}

	var ok bool

	leaf.Fact, ok = m["fact"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s: \"fact\" must be a string", ErrDecode, p)
	}

	leaf.Operator, ok = m["operator"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s: \"operator\" must be a string", ErrDecode, p)
	}

	if raw, exists := m["path"]; exists && raw != nil {
		leaf.Path, ok = raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: \"path\" must be a string", ErrDecode, p)
		}
	}

	if raw, exists := m["params"]; exists && raw != nil {
		leaf.Params, ok = asMap(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s: \"params\" must be a mapping", ErrDecode, p)
		}
	}

	return leaf, nil
}

// asMap accepts the map shapes produced by JSON and YAML decoders.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true

	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}

		return out, true
	}

	return nil, false
}

// ToValue converts a condition tree back into generic data suitable for
// JSON or YAML encoding. It is the inverse of [FromValue].
func ToValue(c Condition) any {
	switch n := c.(type) {
	case *Leaf:
		m := map[string]any{
			"fact":     n.Fact,
			"operator": n.Operator,
			"value":    n.Value,
		}
		if n.Path != "" {
			m["path"] = n.Path
		}
		if n.Params != nil {
			m["params"] = n.Params
		}

		return m

	case *All:
		return map[string]any{"all": toList(n.Conditions)}

	case *Any:
		return map[string]any{"any": toList(n.Conditions)}

	case *Not:
		return map[string]any{"not": ToValue(n.Condition)}

	case *Invalid:
		return n.Raw
	}

	return nil
}

func toList(cs []Condition) []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToValue(c))
	}

	return out
}

// Node wraps a [Condition] so it can be embedded in decoded documents.
type Node struct {
	Condition
}

// NewNode wraps c in a [Node].
func NewNode(c Condition) Node {
	return Node{Condition: c}
}

// UnmarshalJSON implements [json.Unmarshaler].
func (n *Node) UnmarshalJSON(b []byte) error {
	var v any

	err := json.Unmarshal(b, &v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return n.set(v)
}

// UnmarshalYAML implements [yaml.BytesUnmarshaler].
func (n *Node) UnmarshalYAML(b []byte) error {
	var v any

	err := yaml.Unmarshal(b, &v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return n.set(v)
}

func (n *Node) set(v any) error {
	if v == nil {
		n.Condition = nil
		return nil
	}

	c, err := FromValue(v)
	if err != nil {
		return err
	}

	n.Condition = c

	return nil
}

// MarshalJSON implements [json.Marshaler].
func (n Node) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(ToValue(n.Condition))
	if err != nil {
		return nil, fmt.Errorf("marshal condition: %w", err)
	}

	return b, nil
}

// MarshalYAML implements [yaml.BytesMarshaler].
func (n Node) MarshalYAML() ([]byte, error) {
	b, err := yaml.Marshal(ToValue(n.Condition))
	if err != nil {
		return nil, fmt.Errorf("marshal condition: %w", err)
	}

	return b, nil
}

// JSONSchema describes a condition node. Groups recurse through the "Node"
// definition, which the reflector registers under the type's name.
func (Node) JSONSchema() *jsonschema.Schema {
	ref := &jsonschema.Schema{Ref: "#/$defs/Node"}

	leaf := jsonschema.NewProperties()
	_, _ = leaf.Set("fact", &jsonschema.Schema{Type: "string", Title: "Fact", MinLength: ptr(uint64(1))})
	_, _ = leaf.Set("operator", &jsonschema.Schema{Type: "string", Title: "Operator", MinLength: ptr(uint64(1))})
	_, _ = leaf.Set("value", &jsonschema.Schema{Title: "Comparison Value"})
	_, _ = leaf.Set("path", &jsonschema.Schema{Type: "string", Title: "Value Path"})
	_, _ = leaf.Set("params", &jsonschema.Schema{Type: "object", Title: "Fact Parameters"})

	group := func(key string, s *jsonschema.Schema) *jsonschema.Schema {
		props := jsonschema.NewProperties()
		_, _ = props.Set(key, s)

		return &jsonschema.Schema{
			Type:                 "object",
			Properties:           props,
			Required:             []string{key},
			AdditionalProperties: jsonschema.FalseSchema,
		}
	}

	return &jsonschema.Schema{
		Title: "Condition",
		OneOf: []*jsonschema.Schema{
			{
				Type:                 "object",
				Title:                "Leaf",
				Properties:           leaf,
				Required:             []string{"fact", "operator"},
				AdditionalProperties: jsonschema.FalseSchema,
			},
			group("all", &jsonschema.Schema{Type: "array", Items: ref}),
			group("any", &jsonschema.Schema{Type: "array", Items: ref}),
			group("not", ref),
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}
