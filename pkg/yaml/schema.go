package yaml

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaGenerator generates JSON schemas from Go types.
// Uses [github.com/invopop/jsonschema].
type SchemaGenerator struct {
	reflector *jsonschema.Reflector
	v         any
}

// NewSchemaGenerator creates a new [SchemaGenerator] for the value v.
// The root struct is expanded in place; nested types are emitted as $defs.
func NewSchemaGenerator(v any) *SchemaGenerator {
	return &SchemaGenerator{
		reflector: &jsonschema.Reflector{
			ExpandedStruct: true,
			Anonymous:      true,
		},
		v: v,
	}
}

// Schema returns the reflected schema.
func (g *SchemaGenerator) Schema() *jsonschema.Schema {
	return g.reflector.Reflect(g.v)
}

// Generate returns the indented JSON encoding of the schema.
func (g *SchemaGenerator) Generate() ([]byte, error) {
	b, err := json.MarshalIndent(g.Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return b, nil
}
