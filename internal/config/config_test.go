package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Test Biz", "llc_single_member")
	cfg.BankAccounts = []BankAccount{
		{ID: "chase-checking", Name: "Chase Checking", LastFour: "1234", AccountID: "1010"},
	}

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Business, got.Business)
	assert.Equal(t, cfg.Organization, got.Organization)
	assert.Equal(t, cfg.Database, got.Database)
	assert.Equal(t, cfg.Log, got.Log)
	assert.Equal(t, cfg.Matching, got.Matching)
	assert.Equal(t, cfg.Archive, got.Archive)
	require.Len(t, got.BankAccounts, 1)
	assert.Equal(t, "Chase Checking", got.BankAccounts[0].Name)
	assert.Equal(t, "1010", got.BankAccounts[0].AccountID)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company", "llc_single_member")

	assert.Equal(t, "My Company", cfg.Business.Name)
	assert.Equal(t, "llc_single_member", cfg.Business.EntityType)
	assert.Equal(t, "default", cfg.Organization)
	assert.Equal(t, "bankrec.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Matching.Concurrency)
	assert.Equal(t, 90, cfg.Matching.AutoMatchScore)
	assert.True(t, cfg.Archive.AutoCommit)
	assert.Equal(t, "exports/reconciliations", cfg.Archive.Dir)
	assert.Empty(t, cfg.BankAccounts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test Biz", "llc_single_member")
	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "entity_type: llc_single_member")
	assert.Contains(t, contents, "organization: default")
	assert.Contains(t, contents, "path: bankrec.db")
	assert.Contains(t, contents, "concurrency: 10")
}

func TestLoadDir_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(filepath.Join(dir, FileName), Default("Test Biz", "llc_single_member")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BANKREC_LOG_LEVEL=debug\n"), 0o644))
	t.Setenv(EnvOrgID, "acme")
	t.Setenv(EnvDBPath, "/var/lib/bankrec/acme.db")
	t.Setenv(EnvLogLevel, "")
	require.NoError(t, os.Unsetenv(EnvLogLevel))

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Organization)
	assert.Equal(t, "/var/lib/bankrec/acme.db", cfg.DatabasePath(dir))
	assert.Equal(t, "debug", cfg.Log.Level, ".env fills unset variables")
}

func TestLoadDir_Validation(t *testing.T) {
	dir := t.TempDir()
	cfg := Default("Test Biz", "llc_single_member")
	cfg.Organization = ""
	require.NoError(t, Save(filepath.Join(dir, FileName), cfg))
	t.Setenv(EnvOrgID, "")

	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, "organization is required")
}

func TestDatabasePath_Relative(t *testing.T) {
	cfg := Default("Test Biz", "llc_single_member")
	assert.Equal(t, filepath.Join("/srv/books", "bankrec.db"), cfg.DatabasePath("/srv/books"))
}
