package watcher

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/registry"
	"github.com/conneroisu/prefab/internal/testutils"
)

const (
	doorPath  = "/project/Props/Door.prefab"
	housePath = "/project/Levels/House.prefab"
)

func newTestReloader(t *testing.T) (*Reloader, afero.Fs, *int) {
	t.Helper()

	fs := testutils.NewProjectFs(t, map[string]string{
		"Props/Door.prefab":   `{"ContainerEntity": {"Name": "Door"}}`,
		"Levels/House.prefab": `{"instances": {"Door": {"source": "Props/Door.prefab"}}}`,
	})
	loads := 0

	load := func(ctx context.Context) (*registry.TemplateRegistry, error) {
		loads++
		loader, reg := testutils.CreateTestLoader(fs)
		if _, err := loader.LoadFile(ctx, "Levels/House.prefab"); err != nil {
			return nil, err
		}
		return reg, nil
	}

	r := NewReloader(fs, testutils.NewResolver(fs), load, logging.NewMemoryLogger())
	require.NoError(t, r.Init(context.Background()))
	return r, fs, &loads
}

func TestReloader_Init(t *testing.T) {
	r, _, loads := newTestReloader(t)

	assert.Equal(t, 1, *loads)
	require.NotNil(t, r.Current())
	assert.Equal(t, 2, r.Current().Count())
}

func TestReloader_IgnoresUnchangedContent(t *testing.T) {
	r, fs, loads := newTestReloader(t)
	ctx := context.Background()

	// Rewriting identical bytes only touches the modification time.
	data, err := afero.ReadFile(fs, doorPath)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, doorPath, data, 0o644))

	require.NoError(t, r.Handle(ctx, []ChangeEvent{{Type: EventTypeModified, Path: doorPath}}))
	assert.Equal(t, 1, *loads)
}

func TestReloader_IgnoresFilesOutsideGraph(t *testing.T) {
	r, fs, loads := newTestReloader(t)

	require.NoError(t, afero.WriteFile(fs, "/project/Props/Window.prefab", []byte(`{}`), 0o644))

	require.NoError(t, r.Handle(context.Background(), []ChangeEvent{{Type: EventTypeCreated, Path: "/project/Props/Window.prefab"}}))
	assert.Equal(t, 1, *loads)
}

func TestReloader_ReloadsChangedContent(t *testing.T) {
	r, fs, loads := newTestReloader(t)
	before := r.Current()

	var notified *registry.TemplateRegistry
	r.OnReload(func(reg *registry.TemplateRegistry) { notified = reg })

	require.NoError(t, afero.WriteFile(fs, doorPath, []byte(`{"ContainerEntity": {"Name": "Gate"}}`), 0o644))

	events := []ChangeEvent{{Type: EventTypeModified, Path: doorPath}}
	assert.Equal(t, []string{"Props/Door.prefab"}, r.Changed(events))

	require.NoError(t, r.Handle(context.Background(), events))
	assert.Equal(t, 2, *loads)
	assert.NotSame(t, before, r.Current())
	assert.Same(t, r.Current(), notified)
	assert.Empty(t, r.Changed(events), "hashes match after reload")
}

func TestReloader_ReportsTemplatesWithErrors(t *testing.T) {
	r, fs, _ := newTestReloader(t)
	logger := logging.NewMemoryLogger()
	r.logger = logger

	require.NoError(t, fs.Remove(doorPath))
	require.NoError(t, r.Handle(context.Background(), []ChangeEvent{{Type: EventTypeDeleted, Path: doorPath}}))

	house, ok := r.Current().FindByPath("Levels/House.prefab")
	require.True(t, ok)
	tmpl, _ := r.Current().Find(house)
	assert.True(t, tmpl.LoadedWithErrors)

	var reported bool
	for _, e := range logger.EntriesAt(logging.LevelWarn) {
		if e.Message == "Prefab loaded with errors" && e.Fields["path"] == "Levels/House.prefab" {
			reported = true
		}
	}
	assert.True(t, reported)
}

func TestReloader_RecoversRepairedNestedPrefab(t *testing.T) {
	r, fs, loads := newTestReloader(t)
	ctx := context.Background()
	events := []ChangeEvent{{Type: EventTypeModified, Path: doorPath}}

	require.NoError(t, afero.WriteFile(fs, doorPath, []byte(`{"ContainerEntity": `), 0o644))
	require.NoError(t, r.Handle(ctx, events))
	assert.Equal(t, 2, *loads)
	assert.Equal(t, 1, r.Current().Count())
	_, ok := r.Current().FindByPath("Props/Door.prefab")
	require.False(t, ok, "a prefab that fails to parse is not registered")

	require.NoError(t, afero.WriteFile(fs, doorPath, []byte(`{"ContainerEntity": {"Name": "Door"}}`), 0o644))
	assert.Equal(t, []string{"Props/Door.prefab"}, r.Changed(events))
	require.NoError(t, r.Handle(ctx, events))
	assert.Equal(t, 3, *loads)
	assert.Equal(t, 2, r.Current().Count())

	house, ok := r.Current().FindByPath("Levels/House.prefab")
	require.True(t, ok)
	tmpl, _ := r.Current().Find(house)
	assert.False(t, tmpl.LoadedWithErrors)
}

func TestReloader_PicksUpCreatedNestedPrefab(t *testing.T) {
	r, fs, loads := newTestReloader(t)
	ctx := context.Background()

	require.NoError(t, fs.Remove(doorPath))
	require.NoError(t, r.Handle(ctx, []ChangeEvent{{Type: EventTypeDeleted, Path: doorPath}}))
	assert.Equal(t, 2, *loads)
	assert.Equal(t, 1, r.Current().Count())

	require.NoError(t, afero.WriteFile(fs, doorPath, []byte(`{"ContainerEntity": {"Name": "Door"}}`), 0o644))
	require.NoError(t, r.Handle(ctx, []ChangeEvent{{Type: EventTypeCreated, Path: doorPath}}))
	assert.Equal(t, 3, *loads)
	assert.Equal(t, 2, r.Current().Count())
}

func TestReloader_IgnoresUnregisteredFilesWhenGraphIsClean(t *testing.T) {
	r, _, _ := newTestReloader(t)

	assert.Empty(t, r.Changed([]ChangeEvent{{Type: EventTypeCreated, Path: "/project/Props/Window.prefab"}}))
}
