package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorldFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stage.world")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWorldFileBothTuples(t *testing.T) {
	path := writeWorldFile(t, `
[rover1]
pose = 1.0 2.0 0.5
localization_origin = -1.0 -2.0 0.0
`)
	origin, err := LoadWorldFile(path, "rover1")
	require.NoError(t, err)
	assert.Equal(t, Origin{X: 1.0, Y: 2.0, A: 0.5}, origin.Pose)
	assert.Equal(t, Origin{X: -1.0, Y: -2.0, A: 0.0}, origin.LocalizationOrigin)
}

func TestLoadWorldFileMissingTupleDefaultsZero(t *testing.T) {
	path := writeWorldFile(t, `
[rover1]
pose = 1.0 2.0 0.5
`)
	origin, err := LoadWorldFile(path, "rover1")
	require.NoError(t, err)
	assert.Equal(t, Origin{}, origin.LocalizationOrigin)
}

func TestLoadWorldFileMissingSection(t *testing.T) {
	path := writeWorldFile(t, `
[rover1]
pose = 1.0 2.0 0.5
`)
	_, err := LoadWorldFile(path, "rover2")
	assert.Error(t, err)
}

func TestLoadWorldFileMalformedTuple(t *testing.T) {
	path := writeWorldFile(t, `
[rover1]
pose = 1.0 2.0
`)
	_, err := LoadWorldFile(path, "rover1")
	assert.Error(t, err)
}
