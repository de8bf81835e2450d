// Package rules provides the Rule kind for rulesim.
//
// A rule file holds one or more YAML documents, each of which is a [Rule].
package rules

//go:generate go run ../../../internal/schemagen -kind rule -o rules.v1beta1.json

import (
	"errors"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/macropower/rulesim/api"
	"github.com/macropower/rulesim/api/v1beta1"
	"github.com/macropower/rulesim/pkg/condition"
	"github.com/macropower/rulesim/pkg/config"
	"github.com/macropower/rulesim/pkg/yaml"
)

// Kind is the kind of rule documents.
const Kind = "Rule"

var (
	// ValidKinds contains the valid kind values for rules.
	ValidKinds = []string{Kind}

	// DefaultValidator validates rules against the JSON schema generated
	// from [Rule].
	DefaultValidator = yaml.MustNewValidator("/rules.v1beta1.json", MustSchema())

	ErrDuplicateName = errors.New("duplicate rule name")

	// Compile-time interface checks.
	_ v1beta1.Object = (*Rule)(nil)
)

// Rule is a named condition tree and the event it fires.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Rule struct {
	condition.Rule   `json:",inline"`
	v1beta1.TypeMeta `json:",inline"`
}

// New creates a new, empty [Rule].
func New() *Rule {
	r := &Rule{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       Kind,
		},
	}
	r.EnsureDefaults()

	return r
}

// EnsureDefaults implements [v1beta1.Object]. Rules have no defaults.
func (*Rule) EnsureDefaults() {}

// Validate checks the document header and the condition tree.
func (r *Rule) Validate() error {
	err := r.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}

	return r.Rule.Validate() //nolint:wrapcheck // Already wrapped.
}

func (r Rule) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the rule to YAML.
func (r Rule) MarshalYAML() ([]byte, error) {
	type alias Rule

	b, err := api.MarshalYAML(alias(r))
	if err != nil {
		return nil, fmt.Errorf("marshal rule: %w", err)
	}

	return b, nil
}

// ParseOpt configures [Parse] and [Load].
type ParseOpt func(*parseOptions)

type parseOptions struct {
	loaderOpts []config.LoaderOpt
	strict     bool
}

// WithStrict enables schema validation and structural checks. Without it,
// malformed condition nodes are kept so that evaluation can skip them.
func WithStrict(strict bool) ParseOpt {
	return func(o *parseOptions) {
		o.strict = strict
	}
}

// WithColor enables ANSI colors in annotated source errors.
func WithColor(color bool) ParseOpt {
	return func(o *parseOptions) {
		o.loaderOpts = append(o.loaderOpts, config.WithColor(color))
	}
}

// Parse decodes every rule document in data.
func Parse(data []byte, opts ...ParseOpt) ([]*Rule, error) {
	return parse(config.NewLoaderFromBytes(data, New, DefaultValidator, newOptions(opts).loaderOpts...), opts)
}

// Load reads and decodes every rule document in the file at path.
func Load(path string, opts ...ParseOpt) ([]*Rule, error) {
	l, err := config.NewLoaderFromFile(path, New, DefaultValidator, newOptions(opts).loaderOpts...)
	if err != nil {
		return nil, err //nolint:wrapcheck // Return the original error.
	}

	rs, err := parse(l, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return rs, nil
}

func newOptions(opts []ParseOpt) *parseOptions {
	o := &parseOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

func parse(l *config.Loader[*Rule], opts []ParseOpt) ([]*Rule, error) {
	o := newOptions(opts)

	if o.strict {
		err := l.Validate()
		if err != nil {
			return nil, err //nolint:wrapcheck // Already annotated.
		}
	}

	rs, err := l.LoadAll()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already annotated.
	}

	seen := make(map[string]int, len(rs))

	var errs []error

	for i, r := range rs {
		err := r.Check(ValidKinds...)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %d: %w", i, err))
			continue
		}

		if o.strict {
			err := r.Rule.Validate()
			if err != nil {
				errs = append(errs, fmt.Errorf("document %d: %w", i, err))
			}
		}

		if r.Name == "" {
			continue
		}
		if j, ok := seen[r.Name]; ok {
			errs = append(errs, fmt.Errorf("document %d: %w %q, first defined in document %d", i, ErrDuplicateName, r.Name, j))
		}

		seen[r.Name] = i
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return rs, nil
}

var schema = sync.OnceValues(func() ([]byte, error) {
	return yaml.NewSchemaGenerator(&Rule{}).Generate()
})

// Schema returns the JSON schema for [Rule].
func Schema() ([]byte, error) {
	return schema()
}

// MustSchema is like [Schema] but panics on error.
func MustSchema() []byte {
	b, err := Schema()
	if err != nil {
		panic(err)
	}

	return b
}
