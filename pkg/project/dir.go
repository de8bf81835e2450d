package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"

	"github.com/macropower/rulesim/pkg/log"
)

// DefaultMaxFileSize is the largest file [DirLoader] reads by default.
const DefaultMaxFileSize = 1 << 20

// DefaultExclude lists directory names skipped by default.
var DefaultExclude = []string{".git", "node_modules", "dist", "build"}

// DirLoader loads project data from a directory. Reads never leave the
// directory tree.
type DirLoader struct {
	root        string
	manifest    string
	include     []string
	exclude     []string
	maxFileSize uint64
}

// DirLoaderOpt configures a [DirLoader].
type DirLoaderOpt func(*DirLoader)

// WithManifest sets the manifest file name, relative to the root.
func WithManifest(name string) DirLoaderOpt {
	return func(l *DirLoader) {
		l.manifest = name
	}
}

// WithInclude restricts loading to files whose base name matches one of the
// given [path.Match] patterns. With no patterns, every file is included.
func WithInclude(patterns ...string) DirLoaderOpt {
	return func(l *DirLoader) {
		l.include = patterns
	}
}

// WithExclude sets the directory names that are skipped entirely.
func WithExclude(dirs ...string) DirLoaderOpt {
	return func(l *DirLoader) {
		l.exclude = dirs
	}
}

// WithMaxFileSize sets the largest file size, in bytes, that is read.
// Larger files are skipped.
func WithMaxFileSize(size uint64) DirLoaderOpt {
	return func(l *DirLoader) {
		l.maxFileSize = size
	}
}

// NewDirLoader creates a new [DirLoader] rooted at root.
func NewDirLoader(root string, opts ...DirLoaderOpt) *DirLoader {
	l := &DirLoader{
		root:        root,
		manifest:    DefaultManifest,
		exclude:     DefaultExclude,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Root returns the directory the loader reads from.
func (l *DirLoader) Root() string {
	return l.root
}

// Exclude returns the directory names the loader skips.
func (l *DirLoader) Exclude() []string {
	return l.exclude
}

// Load walks the root directory and reads every included file.
func (l *DirLoader) Load(ctx context.Context, name string, progress ProgressFunc) (*Data, error) {
	logger := log.WithContext(ctx).With(slog.String("root", l.root))

	root, err := os.OpenRoot(l.root)
	if err != nil {
		return nil, fmt.Errorf("open project directory %q: %w", l.root, err)
	}
	defer root.Close() //nolint:errcheck // Ignore errors.

	rootFS := root.FS()

	paths, err := l.scan(ctx, rootFS)
	if err != nil {
		return nil, err
	}

	progress.Report(Progress{Stage: StageScan, Total: len(paths)})

	files := make(map[string]string, len(paths))
	for i, p := range paths {
		err := ctx.Err()
		if err != nil {
			return nil, fmt.Errorf("load project: %w", err)
		}

		progress.Report(Progress{Stage: StageRead, File: p, Current: i + 1, Total: len(paths)})

		content, ok, err := l.readFile(rootFS, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			logger.DebugContext(ctx, "skip file", slog.String("file", p))
			continue
		}

		files[p] = content
	}

	progress.Report(Progress{Stage: StageManifest, File: l.manifest})

	manifest, err := l.readManifest(rootFS)
	if err != nil {
		return nil, err
	}

	data := &Data{
		Name:     projectName(name, manifest, l.root),
		Root:     l.root,
		Files:    files,
		Manifest: manifest,
	}

	logger.InfoContext(ctx, "loaded project",
		slog.String("name", data.Name),
		slog.Int("files", len(files)),
		slog.Bool("manifest", manifest != nil),
	)

	return data, nil
}

func (l *DirLoader) scan(ctx context.Context, rootFS fs.FS) ([]string, error) {
	var paths []string

	err := fs.WalkDir(rootFS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if p != "." && slices.Contains(l.exclude, d.Name()) {
				return fs.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() || !l.included(p) {
			return nil
		}

		paths = append(paths, p)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk project directory: %w", err)
	}

	return paths, nil
}

func (l *DirLoader) included(p string) bool {
	if len(l.include) == 0 {
		return true
	}

	base := path.Base(p)
	for _, pattern := range l.include {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}

	return false
}

// readFile returns false for files that are too large or look binary.
func (l *DirLoader) readFile(rootFS fs.FS, p string) (string, bool, error) {
	info, err := fs.Stat(rootFS, p)
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", p, err)
	}

	//nolint:gosec // G115: file sizes are never negative.
	if l.maxFileSize > 0 && uint64(info.Size()) > l.maxFileSize {
		slog.Debug("file exceeds max size",
			slog.String("file", p),
			slog.String("size", humanize.IBytes(uint64(info.Size()))), //nolint:gosec // G115: see above.
			slog.String("max", humanize.IBytes(l.maxFileSize)),
		)

		return "", false, nil
	}

	b, err := fs.ReadFile(rootFS, p)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", p, err)
	}

	if bytes.IndexByte(b, 0) >= 0 {
		return "", false, nil
	}

	return string(b), true, nil
}

func (l *DirLoader) readManifest(rootFS fs.FS) (map[string]any, error) {
	if l.manifest == "" {
		return nil, nil //nolint:nilnil // No manifest configured.
	}

	b, err := fs.ReadFile(rootFS, filepath.ToSlash(l.manifest))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // Projects without a manifest are valid.
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	manifest, err := ParseManifest(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.manifest, err)
	}

	return manifest, nil
}

// ParseManifest decodes a JSON or YAML manifest document.
func ParseManifest(b []byte) (map[string]any, error) {
	var manifest map[string]any

	err := yaml.UnmarshalWithOptions(b, &manifest, yaml.AllowDuplicateMapKey())
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	return manifest, nil
}

func projectName(name string, manifest map[string]any, root string) string {
	if name != "" {
		return name
	}
	if n, ok := manifest["name"].(string); ok && n != "" {
		return n
	}

	return filepath.Base(root)
}
