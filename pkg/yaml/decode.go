package yaml

import (
	"errors"
	"io"

	"github.com/goccy/go-yaml"
)

// Decoder reads a stream of YAML documents. Syntax and type errors are
// returned as [*Error]s carrying the offending token, so they can be
// annotated against the source with an [ErrorWrapper].
type Decoder struct {
	d *yaml.Decoder
}

// NewDecoder creates a [Decoder] reading from r. Duplicate map keys are
// tolerated, the last value wins.
func NewDecoder(r io.Reader, opts ...yaml.DecodeOption) *Decoder {
	return &Decoder{
		d: yaml.NewDecoder(r, append([]yaml.DecodeOption{yaml.AllowDuplicateMapKey()}, opts...)...),
	}
}

// Decode reads the next document into v. It returns [io.EOF] at the end of
// the stream.
func (d *Decoder) Decode(v any) error {
	err := d.d.Decode(v)

	var yerr yaml.Error
	if err == nil || !errors.As(err, &yerr) {
		return err //nolint:wrapcheck // Preserve io.EOF.
	}

	return &Error{
		Err:   errors.New(yerr.GetMessage()),
		Token: yerr.GetToken(),
	}
}
