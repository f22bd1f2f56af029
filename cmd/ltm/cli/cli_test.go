package cli_test

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/cmd/ltm/cli"
)

// writeConfig points the CLI at a fresh SQLite store.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ltm.yaml")
	content := fmt.Sprintf(`collection: demo
limit: 3
embedder:
  provider: local
vector_store:
  provider: sqlite
  config:
    db_path: %s
`, filepath.Join(dir, "ltm.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, config, stdin string, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", config}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_Commands(t *testing.T) {
	root := cli.NewRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"remember", "recall", "turn", "chat", "count", "import"} {
		assert.Contains(t, names, want)
	}
}

func TestCLI_RememberRecallTurn(t *testing.T) {
	config := writeConfig(t)

	out, err := run(t, config, "", "remember", "alice", "I", "love", "hiking", "in", "the", "mountains")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "stored "))

	out, err = run(t, config, "", "turn", "bob", "Mountains are my favorite place to hike")
	require.NoError(t, err)
	assert.Contains(t, out, "You remember that alice said:I love hiking in the mountains: on ")

	out, err = run(t, config, "", "recall", "I love hiking in the mountains")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "bob said:Mountains are my favorite place to hike")

	out, err = run(t, config, "", "count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestCLI_Chat(t *testing.T) {
	config := writeConfig(t)

	stdin := strings.Join([]string{
		"alice: I love hiking in the mountains",
		"bob: ok",
		"Mountains are my favorite place to hike",
	}, "\n")

	out, err := run(t, config, stdin, "chat", "--speaker", "carol")
	require.NoError(t, err)

	// first turn evokes nothing, the short line is skipped, the third recalls alice
	assert.True(t, strings.HasPrefix(out, "\nYou remember that alice said:I love hiking in the mountains: on "))
	assert.Equal(t, 1, strings.Count(out, "You remember"))
	assert.True(t, strings.HasSuffix(out, "\n\n"))

	out, err = run(t, config, "", "count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = run(t, config, "", "--limit", "1", "recall", "Mountains are my favorite place to hike")
	require.NoError(t, err)
	assert.Contains(t, out, "alice said:")
}

func TestCLI_ImportExport(t *testing.T) {
	config := writeConfig(t)
	export := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(export, []byte(`{"histories":{"histories":[{"msgs":[
		{"text":"I love hiking in the mountains","src":{"is_human":true}},
		{"text":"Mountains are my favorite place to hike","src":{"is_human":false}},
		{"text":"ok","src":{"is_human":true}},
		{"text":"Sure thing","src":{"is_human":false}}
	]}]}}`), 0o600))

	out, err := run(t, config, "", "import", "export", export, "--user", "alice", "--bot", "guide", "--min-length", "10", "--recall")
	require.NoError(t, err)
	assert.Equal(t, "imported 3/4 turns (1 skipped, 0 failed)\n", out)

	out, err = run(t, config, "", "recall", "I love hiking in the mountains")
	require.NoError(t, err)
	assert.Contains(t, out, "guide said:Mountains are my favorite place to hike")
}

func TestCLI_ImportSQLite(t *testing.T) {
	config := writeConfig(t)
	legacy := filepath.Join(t.TempDir(), "long_term_memory.db")

	db, err := sql.Open("sqlite3", legacy)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE long_term_memory (name TEXT, message TEXT, timestamp TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO long_term_memory VALUES
		('alice', 'I love hiking in the mountains', '2023-04-01 10:00:00'),
		('bot', 'Mountains are my favorite place to hike', '2023-04-01 10:00:05')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, config, "", "import", "sqlite", legacy)
	require.NoError(t, err)
	assert.Equal(t, "imported 2/2 turns (0 skipped, 0 failed)\n", out)

	out, err = run(t, config, "", "count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestCLI_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ltm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limit: 3\nvector_store:\n  provider: chromem\n"), 0o600))

	_, err := run(t, path, "", "count")
	assert.ErrorContains(t, err, "collection is required")
}
