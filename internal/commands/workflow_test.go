package commands_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/activitylog"
)

// stdout runs bankrec in dir and returns only its standard output.
func stdout(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command(binaryPath, append([]string{"--dir", dir}, args...)...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	require.NoError(t, err, "bankrec %v: %s", args, stderr.String())
	return string(out)
}

const statement = `Date,Description,Amount,Reference
2026-01-05,ACME INC DEPOSIT,500.00,
2026-01-10,CHECK 1001,-115.00,1001
`

// importStatement sets up bank-1, imports the sample statement and returns
// the transaction ids in date order.
func importStatement(t *testing.T, dir string) []string {
	t.Helper()
	stdout(t, dir, "accounts", "add-bank", "bank-1", "--name", "Operating", "--gl-account", "1010")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "jan.csv"), []byte(statement), 0o644))

	out := stdout(t, dir, "import", "--bank-account", "bank-1")
	assert.Contains(t, out, "jan.csv: feed ")
	assert.Contains(t, out, "2 imported, 0 duplicates skipped")

	var ids []string
	rows := strings.Split(strings.TrimSpace(stdout(t, dir, "feeds", "txns", "--bank-account", "bank-1")), "\n")
	for _, row := range rows[1:] {
		ids = append(ids, strings.Fields(row)[0])
	}
	require.Len(t, ids, 2)
	return ids
}

func TestImport_MovesFilesAndDedups(t *testing.T) {
	dir := initProject(t)
	importStatement(t, dir)

	_, err := os.Stat(filepath.Join(dir, "import", "processed", "jan.csv"))
	require.NoError(t, err, "scanned file moves to processed/")

	again := filepath.Join(t.TempDir(), "jan-again.csv")
	require.NoError(t, os.WriteFile(again, []byte(statement), 0o644))
	out := stdout(t, dir, "import", again, "--bank-account", "bank-1")
	assert.Contains(t, out, "0 imported, 2 duplicates skipped")
}

func TestReconcile_FinalizeExportsAndCommits(t *testing.T) {
	dir := initProject(t)
	ids := importStatement(t, dir)

	out := stdout(t, dir, "reconcile", "open", "--bank-account", "bank-1",
		"--statement-date", "2026-01-31", "--statement-balance", "385.00", "--opening-balance", "0")
	require.True(t, strings.HasPrefix(out, "Opened reconciliation "), out)
	recID := strings.Fields(out)[2]

	out = stdout(t, dir, "reconcile", "clear", recID, "txn:"+ids[0], "txn:"+ids[1])
	assert.Contains(t, out, "Updated 2, failed 0")

	out = stdout(t, dir, "reconcile", "status", recID)
	assert.Contains(t, out, "Balanced")

	out = stdout(t, dir, "reconcile", "finalize", recID)
	assert.Contains(t, out, "Difference:")
	assert.Contains(t, out, "Committed ")

	data, err := os.ReadFile(filepath.Join(dir, "exports", "reconciliations", recID+".json"))
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, recID, report["reconciliationId"])
	assert.Len(t, report["items"], 2)

	log := exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	subject, err := log.Output()
	require.NoError(t, err)
	assert.Equal(t, "reconcile: bank-1 statement 2026-01-31\n", string(subject))

	entries, err := activitylog.Read(dir)
	require.NoError(t, err)
	var actionsSeen []string
	for _, e := range entries {
		actionsSeen = append(actionsSeen, e.Action)
	}
	assert.Contains(t, actionsSeen, "reconcile_finalize")
	assert.Contains(t, actionsSeen, "import")

	// Finalized items are locked.
	out = stdout(t, dir, "feeds", "txns", "--bank-account", "bank-1")
	assert.Contains(t, out, "RL")
}

func TestReconcile_UnbalancedFinalizeFails(t *testing.T) {
	dir := initProject(t)
	ids := importStatement(t, dir)

	out := stdout(t, dir, "reconcile", "open", "--bank-account", "bank-1",
		"--statement-date", "2026-01-31", "--statement-balance", "385.00", "--opening-balance", "0")
	recID := strings.Fields(out)[2]
	stdout(t, dir, "reconcile", "clear", recID, "txn:"+ids[0])

	combined, err := runBankrec(t, "--dir", dir, "reconcile", "finalize", recID)
	require.Error(t, err)
	assert.Contains(t, combined, "BALANCE: ")
}

func TestTxn_ApplyAndUndo(t *testing.T) {
	dir := initProject(t)
	ids := importStatement(t, dir)

	out := stdout(t, dir, "txn", "apply", ids[1], "--type", "create_expense", "--category", "5040")
	assert.Contains(t, out, "-> CREATED (confidence 100)")

	out = stdout(t, dir, "txn", "undo", ids[1])
	assert.Contains(t, out, "-> UNPROCESSED (confidence 0)")

	combined, err := runBankrec(t, "--dir", dir, "txn", "apply", ids[1], "--type", "CREATE_EXPENSE", "--category", "9999")
	require.Error(t, err)
	assert.Contains(t, combined, "NOT_FOUND: ")
}
