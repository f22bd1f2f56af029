package ingest_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/ingest"
)

const exportJSON = `{
  "histories": {
    "histories": [
      {
        "msgs": [
          {"text": "Hello! I'm your travel companion.", "src": {"is_human": false}},
          {"text": "I love hiking in the mountains", "src": {"is_human": true}},
          {"text": "hm", "src": {"is_human": true}},
          {"text": "The Alps, definitely", "src": {"is_human": true}},
          {"text": "Great choice for summer treks", "src": {"is_human": false}},
          {"text": "Thanks!", "src": {"is_human": true}}
        ]
      },
      {
        "msgs": [
          {"text": "ignored second history", "src": {"is_human": true}}
        ]
      }
    ]
  }
}`

func TestExportPairs(t *testing.T) {
	turns, err := ingest.ExportPairs(strings.NewReader(exportJSON), "alice", "guide")
	require.NoError(t, err)

	// a greeting before the first human message pairs with it; a later human
	// message replaces an unanswered one; the trailing message is dropped
	assert.Equal(t, []core.Turn{
		{Speaker: "alice", Text: "I love hiking in the mountains"},
		{Speaker: "guide", Text: "Hello! I'm your travel companion."},
		{Speaker: "alice", Text: "The Alps, definitely"},
		{Speaker: "guide", Text: "Great choice for summer treks"},
	}, turns)
}

func TestExportPairs_DefaultNames(t *testing.T) {
	turns, err := ingest.ExportPairs(strings.NewReader(exportJSON), "", "")
	require.NoError(t, err)
	require.NotEmpty(t, turns)
	assert.Equal(t, ingest.DefaultUserName, turns[0].Speaker)
	assert.Equal(t, ingest.DefaultBotName, turns[1].Speaker)
}

func TestExportPairs_Latin1(t *testing.T) {
	// "Café" with é as the single ISO-8859-1 byte 0xE9
	var buf bytes.Buffer
	buf.WriteString(`{"histories":{"histories":[{"msgs":[`)
	buf.WriteString(`{"text":"Caf`)
	buf.WriteByte(0xE9)
	buf.WriteString(` au lait please","src":{"is_human":true}},`)
	buf.WriteString(`{"text":"Coming right up","src":{"is_human":false}}`)
	buf.WriteString(`]}]}}`)

	turns, err := ingest.ExportPairs(&buf, "alice", "bot")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Café au lait please", turns[0].Text)
}

func TestExportPairs_Errors(t *testing.T) {
	_, err := ingest.ExportPairs(strings.NewReader(`{"histories":{"histories":[]}}`), "", "")
	assert.ErrorIs(t, err, ingest.ErrNoHistory)

	_, err = ingest.ExportPairs(strings.NewReader(`not json`), "", "")
	assert.Error(t, err)
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(exportJSON), 0o600))

	turns, err := ingest.ExportFile(path, "alice", "guide")
	require.NoError(t, err)
	assert.Len(t, turns, 4)

	_, err = ingest.ExportFile(filepath.Join(t.TempDir(), "missing.json"), "", "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
