package config

import (
	"bytes"
	"errors"
	"io"

	"github.com/macropower/rulesim/api"
	"github.com/macropower/rulesim/api/v1beta1"
	"github.com/macropower/rulesim/pkg/yaml"
)

// ErrEmptyDocument is returned when a document stream holds no objects.
var ErrEmptyDocument = errors.New("no documents found")

// Validator validates configuration data against a schema.
type Validator interface {
	Validate(data any) error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*loaderOptions)

type loaderOptions struct {
	validator Validator
	color     bool
}

// WithValidator sets a custom validator.
func WithValidator(v Validator) LoaderOpt {
	return func(o *loaderOptions) {
		o.validator = v
	}
}

// WithColor enables ANSI colors in annotated source errors.
func WithColor(color bool) LoaderOpt {
	return func(o *loaderOptions) {
		o.color = color
	}
}

// Loader is a generic document loader that handles validation,
// YAML parsing, and error formatting for any object type T.
type Loader[T v1beta1.Object] struct {
	validator Validator
	newFunc   func() T
	yamlError *yaml.ErrorWrapper
	data      []byte
}

// NewLoaderFromBytes creates a [Loader] from byte data.
// The newFunc parameter is the constructor for type T (e.g., configs.New).
func NewLoaderFromBytes[T v1beta1.Object](
	data []byte,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) *Loader[T] {
	options := &loaderOptions{
		validator: defaultValidator,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Loader[T]{
		data:      data,
		newFunc:   newFunc,
		validator: options.validator,
		yamlError: yaml.NewErrorWrapper(
			yaml.WithSource(data),
			yaml.WithColor(options.color),
		),
	}
}

// NewLoaderFromFile creates a [Loader] from a file path.
func NewLoaderFromFile[T v1beta1.Object](
	path string,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) (*Loader[T], error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Return the original error.
	}

	return NewLoaderFromBytes(data, newFunc, defaultValidator, opts...), nil
}

// Validate validates every document in the data against the schema.
func (l *Loader[T]) Validate() error {
	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	for i := 0; ; i++ {
		var doc any

		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			if i == 0 {
				return ErrEmptyDocument
			}

			return nil
		}
		if err != nil {
			return l.yamlError.Wrap(err)
		}
		if doc == nil {
			continue
		}

		if l.validator != nil {
			err = l.validator.Validate(doc)
			if err != nil {
				return l.yamlError.Wrap(err)
			}
		}
	}
}

// Load parses and returns the first document.
//
//nolint:ireturn // Generic type parameter return is intentional.
func (l *Loader[T]) Load() (T, error) {
	var zero T

	objs, err := l.decode(1)
	if err != nil {
		return zero, err
	}

	return objs[0], nil
}

// LoadAll parses and returns every document, in order.
func (l *Loader[T]) LoadAll() ([]T, error) {
	return l.decode(-1)
}

func (l *Loader[T]) decode(limit int) ([]T, error) {
	var objs []T

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	for limit < 0 || len(objs) < limit {
		obj := l.newFunc()

		err := dec.Decode(obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, l.yamlError.Wrap(err)
		}

		obj.EnsureDefaults()

		objs = append(objs, obj)
	}

	if len(objs) == 0 {
		return nil, ErrEmptyDocument
	}

	return objs, nil
}

// Source returns the raw document data.
func (l *Loader[T]) Source() []byte {
	return l.data
}

// WrapError annotates err with the loader's source, if err is a YAML error.
func (l *Loader[T]) WrapError(err error, path *yaml.Path) error {
	if path == nil {
		return l.yamlError.Wrap(err)
	}

	return l.yamlError.Wrap(yaml.NewError(err, yaml.WithPath(path)))
}
