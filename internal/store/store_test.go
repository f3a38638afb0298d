package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex-annotate/internal/style"
	"cortex-annotate/pkg/geometry"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	pts := []geometry.Point2D{{X: 1.5, Y: -2.25}, {X: 0.0001, Y: 1e6}}
	require.NoError(t, s.Save("s01/left", "tract", pts))

	got, err := s.Load("s01/left", "tract")
	require.NoError(t, err)
	assert.Equal(t, pts, got)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := New(t.TempDir())
	got, err := s.Load("s01", "tract")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveEmptyDeletesFile(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save("s01", "tract", []geometry.Point2D{{X: 1, Y: 2}}))
	assert.True(t, s.Exists("s01", "tract"))

	require.NoError(t, s.Save("s01", "tract", nil))
	assert.False(t, s.Exists("s01", "tract"))

	// Deleting an already-absent annotation is not an error.
	require.NoError(t, s.Save("s01", "tract", nil))
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	path := s.Path("s01", "bad")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("1\t2\t3\n"), 0o644))

	_, err := s.Load("s01", "bad")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("1\tx\n"), 0o644))
	_, err = s.Load("s01", "bad")
	assert.Error(t, err)
}

func TestLoadSkipsBlankLines(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	path := s.Path("s01", "tract")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("1\t2\n\n3\t4\n"), 0o644))

	got, err := s.Load("s01", "tract")
	require.NoError(t, err)
	assert.Equal(t, []geometry.Point2D{{X: 1, Y: 2}, {X: 3, Y: 4}}, got)
}

func TestPreferencesDefaults(t *testing.T) {
	s := New(t.TempDir())
	p, err := s.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, 256, p.ImageSize)
	assert.Empty(t, p.Style)
}

func TestPreferencesRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	p := DefaultPreferences()
	p.ImageSize = 512
	p.Style["tract"] = style.Override{"color": "#ff0000", "linewidth": 2.5}
	p.Style[""] = style.Override{"markersize": 3.0}
	require.NoError(t, s.SavePreferences(p))

	got, err := s.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, 512, got.ImageSize)
	assert.Equal(t, "#ff0000", got.Style["tract"]["color"])
	assert.Equal(t, 3.0, got.Style[""]["markersize"])
}

func TestPreferencesRejectInvalidStyle(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	data := []byte("style:\n  tract:\n    linewidth: 99\nimagesize: 256\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, PrefsFile), data, 0o644))

	_, err := s.LoadPreferences()
	assert.Error(t, err)
}

func TestAccountFromRemote(t *testing.T) {
	cases := map[string]string{
		"git@github.com:lab/project.git":     "lab",
		"https://github.com/lab/project.git": "lab",
		"ssh://git@github.com/lab/project":   "lab",
		"not a url":                          "",
	}
	for url, want := range cases {
		assert.Equal(t, want, accountFromRemote(url), url)
	}
}
