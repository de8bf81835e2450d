package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/macropower/rulesim/pkg/yaml"
)

var (
	// ConfigFileNames are the project configuration file names searched by
	// [FindConfigFile], in order of preference.
	ConfigFileNames = []string{".rulesim.yaml", "rulesim.yaml"}

	ErrIsDirectory = errors.New("path is a directory")
	ErrNotRegular  = errors.New("not a regular file")
)

// GetConfigPath returns the path of filename in the user's rulesim config
// directory: $XDG_CONFIG_HOME/rulesim, then ~/.config/rulesim, then a
// directory under the system temp dir.
func GetConfigPath(filename string) string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "rulesim", filename)
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".config", "rulesim", filename)
	}

	tmp := filepath.Join(os.TempDir(), "rulesim", filename)

	slog.Warn("no user config directory, using temp path",
		slog.String("path", tmp),
		slog.Any("err", err),
	)

	return tmp
}

// regularFile reports whether path is an existing regular file. A missing
// path is not an error.
func regularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat file: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	case !info.Mode().IsRegular():
		return false, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	return true, nil
}

// ReadFile reads the regular file at path.
func ReadFile(path string) ([]byte, error) {
	ok, err := regularFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("read file: %w", fs.ErrNotExist)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: User-provided path.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// MarshalYAML serializes obj with the project's YAML encoder settings.
func MarshalYAML(obj any) ([]byte, error) {
	b, err := yaml.Marshal(obj)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	return b, nil
}

// WriteIfNotExists writes data to path unless a file is already there.
func WriteIfNotExists(path string, data []byte) error {
	exists, err := regularFile(path)
	if err != nil || exists {
		return err
	}

	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// FindConfigFile looks for any of fileNames in the directory of targetPath
// and then in each parent directory. It returns the first match, or an empty
// string when the filesystem root is reached without one.
func FindConfigFile(targetPath string, fileNames []string) (string, error) {
	abs, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}

	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}

		dir = parent
	}
}

// WriteDefaultFile writes defaultData to path when no file exists there.
// With force, an existing file is first renamed to a timestamped ".old"
// backup next to it. kind names the file in logs and errors.
func WriteDefaultFile(path string, defaultData []byte, force bool, kind string) error {
	exists, err := regularFile(path)
	if err != nil {
		return err
	}

	logger := slog.With(slog.String("type", kind), slog.String("path", path))

	if exists && !force {
		logger.Debug("file already exists, skipping write")

		return nil
	}

	if exists {
		backup := path + "." + strconv.FormatInt(time.Now().UnixNano(), 10) + ".old"

		logger.Info("backing up existing file", slog.String("backup", backup))

		err := os.Rename(path, backup)
		if err != nil {
			return fmt.Errorf("back up existing %s file: %w", kind, err)
		}
	}

	logger.Info("write default file")

	err = writeFile(path, defaultData)
	if err != nil {
		return fmt.Errorf("write %s file: %w", kind, err)
	}

	return nil
}

// ResolveConfigPath picks the configuration file to load. An explicit path
// wins. Otherwise the project directory and its parents are searched for
// [ConfigFileNames], falling back to the user configuration file when it
// exists. An empty result means no configuration file is used.
func ResolveConfigPath(explicit, projectDir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	found, err := FindConfigFile(projectDir, ConfigFileNames)
	if err != nil || found != "" {
		return found, err
	}

	userPath := GetConfigPath("config.yaml")

	exists, err := regularFile(userPath)
	if err != nil || !exists {
		return "", nil //nolint:nilerr // An unreadable user config is ignored.
	}

	return userPath, nil
}
