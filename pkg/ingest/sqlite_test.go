package ingest_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/ingest"
)

func createLegacyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "long_term_memory.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`CREATE TABLE long_term_memory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		message TEXT,
		timestamp DATETIME
	)`)
	require.NoError(t, err)

	rows := [][2]string{
		{"alice", "I love hiking in the mountains"},
		{"bot", "Mountains are my favorite place to hike"},
		{"alice", "I enjoy cooking pasta on weekends"},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO long_term_memory (name, message, timestamp) VALUES (?, ?, '2023-04-01 10:00:00')`, r[0], r[1])
		require.NoError(t, err)
	}
	return path
}

func TestSQLiteRows(t *testing.T) {
	path := createLegacyDB(t)

	turns, err := ingest.SQLiteRows(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{
		{Speaker: "alice", Text: "I love hiking in the mountains"},
		{Speaker: "bot", Text: "Mountains are my favorite place to hike"},
		{Speaker: "alice", Text: "I enjoy cooking pasta on weekends"},
	}, turns)
}

func TestSQLiteRows_CustomQuery(t *testing.T) {
	path := createLegacyDB(t)

	turns, err := ingest.SQLiteRows(context.Background(), path,
		"SELECT name, message, timestamp FROM long_term_memory WHERE name = 'bot'")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "bot", turns[0].Speaker)
}

func TestSQLiteRows_MissingTable(t *testing.T) {
	path := createLegacyDB(t)

	_, err := ingest.SQLiteRows(context.Background(), path, "SELECT name, message, timestamp FROM chat_log")
	assert.Error(t, err)
}
