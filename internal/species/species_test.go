package species

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurgeek/croptails/internal/wander"
)

func TestDefaults(t *testing.T) {
	catalog := Defaults()
	tuning, err := catalog.Lookup("Chicken")
	require.NoError(t, err)
	assert.Equal(t, wander.DefaultWanderConfig(), tuning.Wander)
	assert.Equal(t, wander.WalkCycles{Min: 2, Max: 6}, tuning.Cycles)
	assert.Equal(t, []string{"chicken", "cow"}, catalog.Names())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "species.yaml")
	doc := `
species:
  cow:
    wander:
      min_idle_time: 2
      max_idle_time: 8
      min_speed: 3
      max_speed: 4
    cycles:
      min: 1
      max: 2
  Sheep:
    wander: {min_idle_time: 1, max_idle_time: 1, min_speed: 6, max_speed: 6}
    cycles: {min: 1, max: 1}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	catalog, err := Load(path)
	require.NoError(t, err)

	cow, err := catalog.Lookup("cow")
	require.NoError(t, err)
	assert.Equal(t, wander.WanderConfig{MinIdleTime: 2, MaxIdleTime: 8, MinSpeed: 3, MaxSpeed: 4}, cow.Wander)
	assert.Equal(t, wander.WalkCycles{Min: 1, Max: 2}, cow.Cycles)

	sheep, err := catalog.Lookup("sheep")
	require.NoError(t, err)
	assert.Equal(t, 6.0, sheep.Wander.MinSpeed)

	chicken, err := catalog.Lookup("chicken")
	require.NoError(t, err)
	assert.Equal(t, wander.DefaultWanderConfig(), chicken.Wander)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Defaults().Lookup("dragon")
	require.ErrorIs(t, err, ErrUnknownSpecies)
}

func TestMergeRejectsInvertedRanges(t *testing.T) {
	err := Defaults().Merge([]byte("species:\n  cow:\n    cycles: {min: 4, max: 2}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycles.max")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
