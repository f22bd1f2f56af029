package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTokenizer(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	vocab := `{"model":{"vocab":{"[PAD]":0,"[UNK]":100,"[CLS]":101,"[SEP]":102,"hello":7592,"world":2088,"hik":1001,"##ing":1002,"!":999}}}`
	require.NoError(t, os.WriteFile(path, []byte(vocab), 0o600))
	return path
}

func TestWordPiece_Encode(t *testing.T) {
	wp, err := loadWordPiece(writeTokenizer(t))
	require.NoError(t, err)

	assert.Equal(t, []int64{101, 7592, 2088, 999, 102}, wp.encode("Hello world!", maxSequenceLen))
	assert.Equal(t, []int64{101, 1001, 1002, 102}, wp.encode("hiking", maxSequenceLen))
	assert.Equal(t, []int64{101, 100, 102}, wp.encode("zzz", maxSequenceLen))
}

func TestWordPiece_Truncates(t *testing.T) {
	wp, err := loadWordPiece(writeTokenizer(t))
	require.NoError(t, err)

	ids := wp.encode("hello hello hello hello hello", 4)
	assert.Equal(t, []int64{101, 7592, 7592, 102}, ids)
}

func TestLoadWordPiece_Errors(t *testing.T) {
	_, err := loadWordPiece(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":{"vocab":{}}}`), 0o600))
	_, err = loadWordPiece(path)
	assert.Error(t, err)
}
