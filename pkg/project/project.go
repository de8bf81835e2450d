// Package project loads the project data that rules are evaluated against:
// the contents of every relevant file plus the project manifest.
package project

import (
	"context"
	"maps"
	"slices"
)

// DefaultManifest is the manifest file name used when none is configured.
const DefaultManifest = "package.json"

// Data is a read-only bundle of project files and the parsed manifest.
// It is shared across concurrent simulations and must not be mutated.
type Data struct {
	// Manifest is the decoded manifest, or nil if the project has none.
	Manifest map[string]any `json:"manifest,omitempty"`
	// Files maps slash-separated paths, relative to Root, to file contents.
	Files map[string]string `json:"files"`
	// Name identifies the project.
	Name string `json:"name"`
	// Root is the directory the project was loaded from, if any.
	Root string `json:"root,omitempty"`
}

// FileNames returns the sorted names of all files.
func (d *Data) FileNames() []string {
	if d == nil {
		return nil
	}

	return slices.Sorted(maps.Keys(d.Files))
}

// File returns the content of the named file.
func (d *Data) File(name string) (string, bool) {
	if d == nil {
		return "", false
	}

	content, ok := d.Files[name]

	return content, ok
}

// WithFiles returns a copy of d with extra files laid over its own. Files in
// extra replace files with the same name. d itself is not modified.
func (d *Data) WithFiles(extra map[string]string) *Data {
	out := &Data{}
	if d != nil {
		*out = *d
	}

	out.Files = make(map[string]string, len(out.Files)+len(extra))
	if d != nil {
		maps.Copy(out.Files, d.Files)
	}

	maps.Copy(out.Files, extra)

	return out
}

// Stage identifies a phase of project loading.
type Stage string

const (
	StageScan     Stage = "scan"
	StageRead     Stage = "read"
	StageManifest Stage = "manifest"
	StageRegistry Stage = "registry"
	StageDone     Stage = "done"
)

// Progress reports loading progress.
type Progress struct {
	Stage   Stage  `json:"stage"`
	File    string `json:"file,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// ProgressFunc receives [Progress] updates. It may be nil.
type ProgressFunc func(Progress)

// Report calls fn with p if fn is not nil.
func (fn ProgressFunc) Report(p Progress) {
	if fn != nil {
		fn(p)
	}
}

// Loader loads project data. The name, if not empty, overrides the name the
// loader would otherwise derive.
type Loader interface {
	Load(ctx context.Context, name string, progress ProgressFunc) (*Data, error)
}

// StaticLoader serves in-memory project data.
type StaticLoader struct {
	Data *Data
}

// NewStaticLoader creates a [StaticLoader] for files and manifest.
func NewStaticLoader(name string, files map[string]string, manifest map[string]any) *StaticLoader {
	return &StaticLoader{Data: &Data{Name: name, Files: files, Manifest: manifest}}
}

// Load returns a copy of the static data.
func (l *StaticLoader) Load(ctx context.Context, name string, progress ProgressFunc) (*Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // Return the original error.
	}

	data := l.Data.WithFiles(nil)
	if name != "" {
		data.Name = name
	}

	progress.Report(Progress{Stage: StageRead, Current: len(data.Files), Total: len(data.Files)})

	return data, nil
}
