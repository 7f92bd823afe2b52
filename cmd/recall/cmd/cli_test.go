package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execRoot runs args against a fresh root command, isolated from any real
// user config via HOME, and returns stdout/stderr.
func execRoot(t *testing.T, args ...string) (stdout, stderr *bytes.Buffer, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	if runtime.GOOS == "windows" {
		t.Setenv("APPDATA", t.TempDir())
	}

	root := NewRootCmd()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err = root.Execute()
	return stdout, stderr, err
}

func TestRootCmd_HasEveryCommand(t *testing.T) {
	// Given: the full command tree
	root := NewRootCmd()

	// Then: every spec.md §6.1 subcommand resolves
	for _, name := range []string{
		"init", "add", "rm", "search", "query", "context",
		"stats", "doctor", "compact", "export", "import",
		"completions", "man",
	} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, "command %q should resolve", name)
		assert.Equal(t, name, found.Name())
	}
}

func TestSearchCmd_RequiresStore(t *testing.T) {
	// Given: a directory with no store
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "recall.db")

	// When: searching without having run init
	_, _, err := execRoot(t, "--store", storePath, "search", "anything")

	// Then: a store-not-found error, not a panic or silent success
	require.Error(t, err)
}

func TestQueryCmd_RequiresRqlOrStdin(t *testing.T) {
	// Given: the root command with no --rql and no --rql-stdin
	_, _, err := execRoot(t, "query")

	// Then: an invalid-argument error
	require.Error(t, err)
}

func TestInitAddSearchStatsDoctorCompactRm_EndToEnd(t *testing.T) {
	// Given: a fresh directory
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "recall.db")
	docPath := filepath.Join(tmpDir, "note.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("the quick brown fox jumps over the lazy dog"), 0o644))

	// When: init creates a store at the given path
	stdout, stderr, err := execRoot(t, "--store", storePath, "init", tmpDir)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "initialized store")
	_, statErr := os.Stat(storePath)
	require.NoError(t, statErr, "init should create the store file")

	// When: add ingests the one document
	stdout, stderr, err = execRoot(t, "--store", storePath, "add", docPath)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "added")

	// When: stats reports a non-empty corpus
	stdout, _, err = execRoot(t, "--store", storePath, "--json", "stats")
	require.NoError(t, err)
	var statsEnv map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &statsEnv))
	assert.EqualValues(t, true, statsEnv["ok"])
	statsOut := statsEnv["stats"].(map[string]any)
	assert.EqualValues(t, 1, statsOut["docs"])

	// When: search finds the ingested document lexically
	stdout, _, err = execRoot(t, "--store", storePath, "--json", "search", "--bm25", "fox")
	require.NoError(t, err)
	var searchEnv map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &searchEnv))
	assert.EqualValues(t, true, searchEnv["ok"])
	results, ok := searchEnv["results"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, results)

	// When: doctor reports a healthy store
	stdout, _, err = execRoot(t, "--store", storePath, "--json", "doctor")
	require.NoError(t, err)
	var doctorEnv map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doctorEnv))
	doctorStats := doctorEnv["stats"].(map[string]any)
	assert.EqualValues(t, true, doctorStats["healthy"])

	// When: compact runs without error
	_, _, err = execRoot(t, "--store", storePath, "compact")
	require.NoError(t, err)

	// When: rm tombstones the document
	stdout, stderr, err = execRoot(t, "--store", storePath, "rm", docPath)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "removed")

	// Then: stats reflects the tombstone
	stdout, _, err = execRoot(t, "--store", storePath, "--json", "stats")
	require.NoError(t, err)
	var afterEnv map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &afterEnv))
	afterStats := afterEnv["stats"].(map[string]any)
	assert.EqualValues(t, 0, afterStats["docs"])
}

func TestExportImport_RoundTrip(t *testing.T) {
	// Given: a store with one ingested document
	tmpDir := t.TempDir()
	storePath := filepath.Join(tmpDir, "recall.db")
	docPath := filepath.Join(tmpDir, "note.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("roses are red violets are blue"), 0o644))

	_, _, err := execRoot(t, "--store", storePath, "init", tmpDir)
	require.NoError(t, err)
	_, _, err = execRoot(t, "--store", storePath, "add", docPath)
	require.NoError(t, err)

	// When: exporting to a file
	exportPath := filepath.Join(tmpDir, "export.ndjson")
	_, _, err = execRoot(t, "--store", storePath, "export", "--out", exportPath)
	require.NoError(t, err)
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// When: importing into a second, freshly initialized store
	storePath2 := filepath.Join(tmpDir, "recall2.db")
	_, _, err = execRoot(t, "--store", storePath2, "init", tmpDir)
	require.NoError(t, err)
	stdout, stderr, err := execRoot(t, "--store", storePath2, "import", exportPath)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "imported")

	// Then: the second store reports the same doc count as the first
	stdout, _, err = execRoot(t, "--store", storePath2, "--json", "stats")
	require.NoError(t, err)
	var statsEnv map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &statsEnv))
	statsOut := statsEnv["stats"].(map[string]any)
	assert.EqualValues(t, 1, statsOut["docs"])
}

func TestCompletionsCmd_RejectsUnknownShell(t *testing.T) {
	// Given: an unsupported shell name
	_, _, err := execRoot(t, "completions", "tcsh")

	// Then: cobra's ValidArgs check rejects it before RunE runs
	require.Error(t, err)
}

func TestCompletionsCmd_WritesBashScript(t *testing.T) {
	// Given: the bash shell
	stdout, _, err := execRoot(t, "completions", "bash")

	// Then: a non-empty completion script is written to stdout
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "recall")
}

func TestManCmd_GeneratesPages(t *testing.T) {
	// Given: an output directory
	outDir := t.TempDir()

	// When: man runs
	_, _, err := execRoot(t, "man", "--dir", outDir)
	require.NoError(t, err)

	// Then: at least the root page exists
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
