// Package testutils provides fixtures shared by tests that load prefab
// projects.
package testutils

import (
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/prefab/internal/config"
	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/normalize"
	"github.com/conneroisu/prefab/internal/paths"
	"github.com/conneroisu/prefab/internal/prefab"
	"github.com/conneroisu/prefab/internal/registry"
	"github.com/conneroisu/prefab/internal/schema"
)

// ProjectRoot is the project root used by in-memory fixtures.
const ProjectRoot = "/project"

// DoorPrefab is a leaf prefab in canonical form.
const DoorPrefab = `{
    "ContainerEntity": {
        "Id": "ContainerEntity",
        "Name": "Door"
    }
}
`

// HousePrefab nests DoorPrefab, stored at Props/Door.prefab, once.
const HousePrefab = `{
    "ContainerEntity": {
        "Id": "ContainerEntity",
        "Name": "House"
    },
    "instances": {
        "Instance_[1]": {
            "source": "Props/Door.prefab"
        }
    }
}
`

// NewProjectFs returns an in-memory file system holding files below
// ProjectRoot. Keys are slash-separated paths relative to the root.
func NewProjectFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, path.Join(ProjectRoot, name), []byte(content), 0o644))
	}
	return fs
}

// CreateTempProject writes files into a temporary directory on disk and
// returns its path.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

// CreateTestConfig returns a configuration with defaults for projectDir.
func CreateTestConfig(projectDir string) *config.Config {
	return &config.Config{
		Project: config.ProjectConfig{
			Root:        projectDir,
			SourceRoots: []string{projectDir},
		},
		Loader: config.LoaderConfig{
			MaxDepth:   config.DefaultMaxDepth,
			Extensions: config.DefaultExtensions,
		},
		Save:    config.SaveConfig{Indent: config.DefaultIndent},
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
		Watch:   config.WatchConfig{Debounce: 20 * time.Millisecond},
	}
}

// CreateTestLoader returns a loader over a fresh registry that reads fs
// with ProjectRoot as the only source root.
func CreateTestLoader(fs afero.Fs, opts ...prefab.Option) (*prefab.Loader, *registry.TemplateRegistry) {
	reg := registry.NewTemplateRegistry()
	loader := prefab.NewLoader(reg, NewResolver(fs), NewNormalizer(), fs, opts...)
	return loader, reg
}

// NewResolver returns a resolver for ProjectRoot on fs.
func NewResolver(fs afero.Fs) *paths.Resolver {
	return paths.NewResolver(ProjectRoot, paths.NewRootLookup(fs, ProjectRoot))
}

// NewNormalizer returns a normalizer over the built-in schema.
func NewNormalizer() *normalize.Normalizer {
	return normalize.New(schema.NewInstantiator(schema.Default()))
}

// HasLogEntry reports whether logger recorded msg at level.
func HasLogEntry(logger *logging.MemoryLogger, level logging.LogLevel, msg string) bool {
	for _, e := range logger.EntriesAt(level) {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
