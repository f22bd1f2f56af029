// Package onnx embeds text locally with a BERT-style sentence model through
// ONNX Runtime. The runtime binding is only compiled with the "onnx" build
// tag; without it New reports ErrNotBuilt.
package onnx

import "errors"

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// maxSequenceLen is the token window fed to the model, [CLS] and [SEP] included.
const maxSequenceLen = 128

// ErrNotBuilt is returned by New in binaries built without the onnx tag.
var ErrNotBuilt = errors.New("onnx embedder not compiled in; rebuild with -tags onnx")

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file (required).
	ModelPath string

	// TokenizerPath is the path to the HuggingFace tokenizer.json file (required).
	TokenizerPath string

	// LibraryPath is the onnxruntime shared library. Empty uses the platform default.
	LibraryPath string

	// Dimensions is the embedding vector size (default: 384).
	Dimensions int
}
