package archive

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestInit_Idempotent(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	assert.False(t, IsRepo(dir))

	require.NoError(t, Init(dir))
	assert.True(t, IsRepo(dir))
	require.NoError(t, Init(dir))
}

func TestCommit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	reports := filepath.Join(dir, "exports")
	require.NoError(t, os.MkdirAll(reports, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reports, "rec-1.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("not archived"), 0o644))

	hash, err := Commit(dir, []string{filepath.Join(reports, "rec-1.json")}, "reconcile: finalize rec-1", Author{Name: "Books Bot", Email: "books@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	out, err := exec.Command("git", "-C", dir, "log", "--format=%s|%an <%ae>", "-1").Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "reconcile: finalize rec-1|Books Bot <books@example.com>")

	files, err := exec.Command("git", "-C", dir, "ls-files").Output()
	require.NoError(t, err)
	assert.Equal(t, "exports/rec-1.json\n", string(files), "only the named paths are committed")
}

func TestCommit_NothingToCommit(t *testing.T) {
	_, err := Commit(t.TempDir(), nil, "empty", Author{Name: "a", Email: "b"})
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestCommit_UnchangedPaths(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	path := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	author := Author{Name: "Books Bot", Email: "books@example.com"}
	_, err := Commit(dir, []string{path}, "first", author)
	require.NoError(t, err)

	_, err = Commit(dir, []string{path}, "again", author)
	assert.ErrorIs(t, err, ErrNothingToCommit)
}
