// Package configs provides the Configuration kind for rulesim.
package configs

//go:generate go run ../../../internal/schemagen -kind config -o configs.v1beta1.json

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/rulesim/api"
	"github.com/macropower/rulesim/api/v1beta1"
	"github.com/macropower/rulesim/pkg/fact"
	"github.com/macropower/rulesim/pkg/facts"
	"github.com/macropower/rulesim/pkg/operator"
	"github.com/macropower/rulesim/pkg/project"
	"github.com/macropower/rulesim/pkg/simulate"
	"github.com/macropower/rulesim/pkg/yaml"
)

// Kind is the kind of configuration documents.
const Kind = "Configuration"

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	// ValidKinds contains the valid kind values for configurations.
	ValidKinds = []string{Kind}

	// DefaultValidator validates configuration against the JSON schema
	// generated from [Config].
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", MustSchema())

	ErrInvalidConfig = errors.New("invalid configuration")

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the rulesim configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Project configures how the project directory is read.
	Project *ProjectConfig `json:"project,omitempty" jsonschema:"title=Project"`
	// Facts defines additional facts with CEL expressions.
	Facts map[string]Expression `json:"facts,omitempty" jsonschema:"title=Facts"`
	// Operators defines additional operators with CEL expressions.
	Operators        map[string]Expression `json:"operators,omitempty" jsonschema:"title=Operators"`
	v1beta1.TypeMeta `json:",inline"`
}

// ProjectConfig configures project loading.
type ProjectConfig struct {
	// Root is the project directory. Relative paths are resolved against
	// the directory holding the configuration file.
	Root string `json:"root,omitempty" jsonschema:"title=Root"`
	// Manifest is the manifest file name, relative to the root.
	Manifest string `json:"manifest,omitempty" jsonschema:"title=Manifest"`
	// MaxFileSize is the largest file that is read, e.g. "512KiB".
	MaxFileSize string `json:"maxFileSize,omitempty" jsonschema:"title=Max File Size"`
	// Include limits loading to files whose base name matches a glob.
	Include []string `json:"include,omitempty" jsonschema:"title=Include"`
	// Exclude lists directory names that are skipped.
	Exclude []string `json:"exclude,omitempty" jsonschema:"title=Exclude"`
}

// Expression is a CEL-defined fact or operator.
type Expression struct {
	// Expression is the CEL source.
	Expression string `json:"expression" jsonschema:"title=Expression,minLength=1"`
	// Description is shown by tooling.
	Description string `json:"description,omitempty" jsonschema:"title=Description"`
}

// New creates a new [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       Kind,
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Project == nil {
		c.Project = &ProjectConfig{}
	}
	if c.Project.Manifest == "" {
		c.Project.Manifest = project.DefaultManifest
	}
	if c.Project.MaxFileSize == "" {
		c.Project.MaxFileSize = humanize.IBytes(project.DefaultMaxFileSize)
	}
	if c.Project.Exclude == nil {
		c.Project.Exclude = slices.Clone(project.DefaultExclude)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	err := c.Check(ValidKinds...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Project != nil {
		_, err := c.Project.maxFileSize()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	for _, name := range sortedKeys(c.Facts) {
		_, err := facts.NewCEL(c.Facts[name].Expression)
		if err != nil {
			return fmt.Errorf("%w: fact %q: %w", ErrInvalidConfig, name, err)
		}
	}

	for _, name := range sortedKeys(c.Operators) {
		if operator.IsBuiltin(name) {
			return fmt.Errorf("%w: operator %q: %w", ErrInvalidConfig, name, operator.ErrShadowsBuiltin)
		}

		_, err := operator.NewCEL(c.Operators[name].Expression)
		if err != nil {
			return fmt.Errorf("%w: operator %q: %w", ErrInvalidConfig, name, err)
		}
	}

	return nil
}

// Registry builds a fact registry holding the standard facts, the plugin
// operators, and every CEL fact and operator in the configuration.
func (c *Config) Registry() (*fact.Registry, error) {
	reg, err := simulate.DefaultRegistry()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	for _, name := range sortedKeys(c.Facts) {
		def, err := facts.NewCEL(c.Facts[name].Expression)
		if err != nil {
			return nil, fmt.Errorf("compile fact %q: %w", name, err)
		}

		err = reg.RegisterFact(name, def)
		if err != nil {
			return nil, fmt.Errorf("register fact %q: %w", name, err)
		}
	}

	for _, name := range sortedKeys(c.Operators) {
		op, err := operator.NewCEL(c.Operators[name].Expression)
		if err != nil {
			return nil, fmt.Errorf("compile operator %q: %w", name, err)
		}

		err = reg.RegisterOperator(name, op)
		if err != nil {
			return nil, fmt.Errorf("register operator %q: %w", name, err)
		}
	}

	return reg, nil
}

// ProjectLoader returns a [project.DirLoader] for the configured project.
// A non-empty root overrides the configured root. configDir is used to
// resolve a relative configured root.
func (c *Config) ProjectLoader(root, configDir string) (*project.DirLoader, error) {
	pc := c.Project
	if pc == nil {
		pc = &ProjectConfig{}
	}

	if root == "" {
		root = pc.Root
		if root != "" && !filepath.IsAbs(root) && configDir != "" {
			root = filepath.Join(configDir, root)
		}
	}
	if root == "" {
		root = "."
	}

	opts := []project.DirLoaderOpt{}
	if pc.Manifest != "" {
		opts = append(opts, project.WithManifest(pc.Manifest))
	}
	if len(pc.Include) > 0 {
		opts = append(opts, project.WithInclude(pc.Include...))
	}
	if pc.Exclude != nil {
		opts = append(opts, project.WithExclude(pc.Exclude...))
	}

	size, err := pc.maxFileSize()
	if err != nil {
		return nil, err
	}
	if size > 0 {
		opts = append(opts, project.WithMaxFileSize(size))
	}

	return project.NewDirLoader(root, opts...), nil
}

func (pc *ProjectConfig) maxFileSize() (uint64, error) {
	if pc.MaxFileSize == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(pc.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("parse maxFileSize %q: %w", pc.MaxFileSize, err)
	}

	return size, nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// Write writes the config to the specified path if it doesn't already exist.
func (c Config) Write(path string) error {
	b, err := c.MarshalYAML()
	if err != nil {
		return err
	}

	err = api.WriteIfNotExists(path, b)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// GetPath returns the path to the user configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}

var schema = sync.OnceValues(func() ([]byte, error) {
	return yaml.NewSchemaGenerator(&Config{}).Generate()
})

// Schema returns the JSON schema for [Config].
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

func sortedKeys(m map[string]Expression) []string {
	return slices.Sorted(maps.Keys(m))
}
