package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependents(t *testing.T) {
	r := NewTemplateRegistry()
	door, _ := r.Create("Door.prefab", leafDoc("Door"))
	house, _ := r.Create("House.prefab", parentDoc("Door"))
	shed, _ := r.Create("Shed.prefab", parentDoc("Door"))

	_, err := r.CreateLink(door, house, "Door")
	require.NoError(t, err)
	_, err = r.CreateLink(door, shed, "Door")
	require.NoError(t, err)

	assert.Equal(t, []TemplateID{house, shed}, r.Dependents(door))
	assert.Empty(t, r.Dependents(house))
	assert.Equal(t, []TemplateID{door}, r.Dependencies(house))
	assert.Nil(t, r.Dependencies(TemplateID(77)))

	graph := r.DependencyGraph()
	assert.Equal(t, []string{"Door.prefab"}, graph["House.prefab"])
	assert.Equal(t, []string{"Door.prefab"}, graph["Shed.prefab"])
	assert.Empty(t, graph["Door.prefab"])

	assert.Empty(t, r.DetectCycles())
}

func TestDetectCycles(t *testing.T) {
	r := NewTemplateRegistry()
	a, _ := r.Create("A.prefab", parentDoc("B"))
	b, _ := r.Create("B.prefab", parentDoc("A"))

	// Links made directly on the registry bypass the loader's cycle check.
	_, err := r.CreateLink(b, a, "B")
	require.NoError(t, err)
	_, err = r.CreateLink(a, b, "A")
	require.NoError(t, err)

	cycles := r.DetectCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A.prefab", "B.prefab", "A.prefab"}, cycles[0])
}
