package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates decoded documents against a JSON schema, reporting
// failures as [*Error]s whose path points at the offending node.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaData, registered under url.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()

	err = c.AddResource(url, doc)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// MustNewValidator is like [NewValidator] but panics on error.
func MustNewValidator(url string, schemaData []byte) *Validator {
	v, err := NewValidator(url, schemaData)
	if err != nil {
		panic(err)
	}

	return v
}

// Validate checks data against the schema. Schema violations are returned
// as an [*Error] whose [Error.Path] is the most specific failing location,
// ready to be annotated against the document source.
func (v *Validator) Validate(data any) error {
	err := v.schema.Validate(data)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return &Error{
		Err:  verr,
		Path: locationPath(deepestLocation(verr)),
	}
}

// deepestLocation returns the longest instance location among err and all
// of its causes.
func deepestLocation(err *jsonschema.ValidationError) []string {
	best := err.InstanceLocation

	for _, cause := range err.Causes {
		if loc := deepestLocation(cause); len(loc) > len(best) {
			best = loc
		}
	}

	return best
}

// locationPath converts a JSON pointer location, split into tokens, to a
// YAML path. Numeric tokens become sequence indexes.
func locationPath(location []string) *yaml.Path {
	b := NewPathBuilder().Root()

	for _, token := range location {
		i, err := strconv.ParseUint(token, 10, 0)
		if err != nil {
			b = b.Child(token)

			continue
		}

		b = b.Index(uint(i))
	}

	return b.Build()
}
