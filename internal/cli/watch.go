package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/macropower/rulesim/pkg/log"
	"github.com/macropower/rulesim/pkg/project"
	"github.com/macropower/rulesim/pkg/report"
)

const watchDebounce = 200 * time.Millisecond

// watch runs the simulation, then re-runs it whenever the rule file or a
// project file changes. Only the first report is printed in full; later
// runs print a diff against the previous report.
func (sa *SimulateArgs) watch(cmd *cobra.Command, ws *Workspace, format report.Format) error {
	ctx := cmd.Context()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	defer func() {
		err := watcher.Close()
		if err != nil {
			slog.Error("close watcher", slog.Any("err", err))
		}
	}()

	dirs, err := watchDirs(sa.RulePath, ws.Loader)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		err := watcher.Add(dir)
		if err != nil {
			return fmt.Errorf("add path to watcher: %w", err)
		}
	}

	logs := log.NewRing(100)
	logHandler, err := log.CreateHandlerWithStrings(logs, sa.LogLevel, sa.LogFormat)
	if err != nil {
		return fmt.Errorf("create log handler: %w", err)
	}

	prev := slog.Default()
	slog.SetDefault(slog.New(logHandler))
	defer slog.SetDefault(prev)

	slog.Debug("added file watchers", slog.Int("count", len(dirs)))

	w := &watchLoop{
		sa:     sa,
		ws:     ws,
		format: format,
		stdin:  cmd.InOrStdin(),
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		logs:   logs,
	}
	w.cycle(ctx)

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Ignore events that are not related to file content changes.
			if evt.Has(fsnotify.Chmod) {
				continue
			}

			if evt.Has(fsnotify.Create) {
				w.addDir(watcher, evt.Name, ws.Loader.Exclude())
			}

			slog.Debug("file changed", slog.String("event", evt.String()))
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("watch files", slog.Any("err", err))

		case <-debounce.C:
			w.cycle(ctx)
		}
	}
}

type watchLoop struct {
	sa       *SimulateArgs
	ws       *Workspace
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	logs     *log.Ring
	format   report.Format
	previous string
	runs     int
}

// cycle reloads the project and the rule, and prints the outcome.
func (w *watchLoop) cycle(ctx context.Context) {
	defer flushLogs(w.stderr, w.logs)

	w.ws.Simulator.Reset()

	out, _, err := w.sa.simulate(ctx, w.stdin, w.ws, w.format, false)
	if err != nil {
		slog.Error("simulate", slog.Any("err", err))

		return
	}

	w.runs++

	switch {
	case w.runs == 1:
		mustN(io.WriteString(w.stdout, out))
	case out == w.previous:
		mustN(fmt.Fprintf(w.stdout, "[%s] no changes\n", time.Now().Format(time.TimeOnly)))
	default:
		mustN(fmt.Fprintf(w.stdout, "[%s] report changed\n", time.Now().Format(time.TimeOnly)))
		mustN(io.WriteString(w.stdout, report.Diff(w.previous, out)))
	}

	w.previous = out
}

// addDir starts watching path if it is a new, non-excluded directory.
func (w *watchLoop) addDir(watcher *fsnotify.Watcher, path string, exclude []string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || slices.Contains(exclude, info.Name()) {
		return
	}

	err = watcher.Add(path)
	if err != nil {
		slog.Error("add path to watcher", slog.String("path", path), slog.Any("err", err))
	}
}

// watchDirs returns the absolute directories to watch: the directory of the
// rule file and every non-excluded directory of the project.
func watchDirs(rulePath string, loader *project.DirLoader) ([]string, error) {
	ruleDir, err := filepath.Abs(filepath.Dir(rulePath))
	if err != nil {
		return nil, fmt.Errorf("resolve rule directory: %w", err)
	}

	root, err := filepath.Abs(loader.Root())
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	dirs := []string{ruleDir}
	exclude := loader.Exclude()

	err = fs.WalkDir(os.DirFS(root), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return fs.SkipDir
			}

			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != "." && slices.Contains(exclude, d.Name()) {
			return fs.SkipDir
		}

		dir := filepath.Join(root, filepath.FromSlash(p))
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", root, err)
	}

	return dirs, nil
}

func flushLogs(w io.Writer, logs *log.Ring) {
	slog.Debug("flush logs to console",
		slog.Int("count", logs.Len()),
		slog.Int("max", logs.Cap()),
		slog.Int("dropped", logs.Dropped()),
	)

	_, err := logs.Flush(w)
	if err != nil {
		panic(err)
	}
}
