package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/prefab/internal/logging"
)

func TestNewProjectFs(t *testing.T) {
	fs := NewProjectFs(t, map[string]string{"Props/Door.prefab": DoorPrefab})

	data, err := afero.ReadFile(fs, "/project/Props/Door.prefab")
	require.NoError(t, err)
	assert.Equal(t, DoorPrefab, string(data))
}

func TestCreateTempProject(t *testing.T) {
	dir := CreateTempProject(t, map[string]string{"Levels/House.prefab": HousePrefab})

	data, err := os.ReadFile(filepath.Join(dir, "Levels", "House.prefab"))
	require.NoError(t, err)
	assert.Equal(t, HousePrefab, string(data))
}

func TestCreateTestLoader(t *testing.T) {
	fs := NewProjectFs(t, map[string]string{
		"Props/Door.prefab":   DoorPrefab,
		"Levels/House.prefab": HousePrefab,
	})
	loader, reg := CreateTestLoader(fs)

	id, err := loader.LoadFile(context.Background(), "Levels/House.prefab")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Count())

	out, err := loader.SaveToString(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, HousePrefab, out)
}

func TestCreateTestConfig(t *testing.T) {
	cfg := CreateTestConfig("/game")

	assert.True(t, cfg.IsPrefabFile("Door.prefab"))
	roots, err := cfg.SourceRoots()
	require.NoError(t, err)
	assert.Equal(t, []string{"/game"}, roots)
}

func TestHasLogEntry(t *testing.T) {
	logger := logging.NewMemoryLogger()
	logger.Info(context.Background(), "hello")

	assert.True(t, HasLogEntry(logger, logging.LevelInfo, "hello"))
	assert.False(t, HasLogEntry(logger, logging.LevelWarn, "hello"))
}

func TestWaitForFileChange(t *testing.T) {
	dir := CreateTempProject(t, map[string]string{"a.prefab": "{}"})
	file := filepath.Join(dir, "a.prefab")
	before := time.Now().Add(-time.Hour)

	WaitForFileChange(t, file, before, time.Second)
}
