package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeAndLoad(t *testing.T) {
	root := t.TempDir()

	cfg, err := Initialize(root, "lit/refs.bib")
	require.NoError(t, err)
	assert.Equal(t, DefaultRemote, cfg.Remote)
	assert.Equal(t, filepath.Join(root, Dir), cfg.Path())
	assert.Equal(t, root, cfg.Root())
	assert.Equal(t, filepath.Join(root, "lit", "refs.bib"), cfg.FilePath())
	assert.Equal(t, filepath.Join(root, Dir, DatabaseFile), cfg.DatabasePath())

	cfg.AuthorName = "Ada"
	cfg.AuthorEmail = "ada@example.com"
	cfg.Branch = "trunk"
	require.NoError(t, cfg.Save())

	loaded, err := LoadFrom(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, "lit/refs.bib", loaded.File)
	assert.Equal(t, "Ada", loaded.AuthorName)
	assert.Equal(t, "trunk", loaded.Branch)
	assert.Equal(t, DefaultLogLevel, loaded.LogLevel)

	_, err = Initialize(root, "refs.bib")
	assert.Error(t, err, "second init fails")
}

func TestLoadFrom_Defaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), Dir)
	require.NoError(t, os.MkdirAll(p, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(p, ConfigFile), []byte("file = \"refs.bib\"\n"), 0644))

	cfg, err := LoadFrom(p)
	require.NoError(t, err)
	assert.Equal(t, "origin", cfg.Remote)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "", cfg.Branch)
	assert.Equal(t, DefaultRetries, cfg.Retries())
}

func TestRetries_Disabled(t *testing.T) {
	cfg := &Config{FetchRetries: -1}
	cfg.applyDefaults()

	assert.Equal(t, 0, cfg.Retries())
}

func TestLoadFrom_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), Dir)
	require.NoError(t, os.MkdirAll(p, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(p, ConfigFile), []byte("remote = [unclosed"), 0644))

	_, err := LoadFrom(p)
	assert.Error(t, err)

	_, err = LoadFrom(filepath.Join(t.TempDir(), Dir))
	assert.Error(t, err)
}

func TestFindRootFrom(t *testing.T) {
	root := t.TempDir()
	_, err := Initialize(root, "refs.bib")
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindRootFrom(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, Dir), found)

	_, err = FindRootFrom(t.TempDir())
	assert.Error(t, err)
}

func TestAuthToken(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "", cfg.AuthToken())

	t.Setenv("BIBSYNC_TEST_TOKEN", "s3cret")
	cfg.AuthTokenEnv = "BIBSYNC_TEST_TOKEN"
	assert.Equal(t, "s3cret", cfg.AuthToken())
}
