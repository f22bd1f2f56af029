//go:build onnx

package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/oceanbase/ltm-go/pkg/embedder"
	"github.com/oceanbase/ltm-go/pkg/logging"
)

var envMu sync.Mutex

// Embedder generates sentence embeddings with ONNX Runtime.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPiece
	dimensions int
}

// New loads the tokenizer and model and starts an inference session.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, errors.New("TokenizerPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	tokenizer, err := loadWordPiece(cfg.TokenizerPath)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	logging.Default().Debug("onnx embedder ready", "model", cfg.ModelPath, "dimensions", cfg.Dimensions)

	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
	}, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize ONNX runtime: %w", err)
	}
	return nil
}

// Embed runs the model and mean-pools the token states into a unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedder.CheckText(text); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, embedder.Failed("onnx", err)
	}

	ids := e.tokenizer.encode(text, maxSequenceLen)
	inputIDs := make([]int64, maxSequenceLen)
	attention := make([]int64, maxSequenceLen)
	tokenTypes := make([]int64, maxSequenceLen)
	copy(inputIDs, ids)
	for i := range ids {
		attention[i] = 1
	}

	shape := ort.NewShape(1, maxSequenceLen)
	var inputs []ort.Value
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, data := range [][]int64{inputIDs, attention, tokenTypes} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, embedder.Failed("onnx: create tensor", err)
		}
		inputs = append(inputs, t)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, embedder.Failed("onnx: inference", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, embedder.Failed("onnx", fmt.Errorf("unexpected output type %T", outputs[0]))
	}

	vec, err := pool(hidden.GetData(), hidden.GetShape(), len(ids), e.dimensions)
	if err != nil {
		return nil, embedder.Failed("onnx", err)
	}
	return embedder.Normalize(vec), nil
}

// pool extracts a sentence vector from [1, dims] or [1, seq, dims] output,
// averaging the first attended tokens in the latter case.
func pool(data []float32, shape ort.Shape, attended, dims int) ([]float32, error) {
	vec := make([]float32, dims)

	switch len(shape) {
	case 2:
		if shape[1] != int64(dims) {
			return nil, fmt.Errorf("output size %d, expected %d", shape[1], dims)
		}
		copy(vec, data[:dims])
	case 3:
		if shape[2] != int64(dims) {
			return nil, fmt.Errorf("hidden size %d, expected %d", shape[2], dims)
		}
		for tok := 0; tok < attended; tok++ {
			row := data[tok*dims : (tok+1)*dims]
			for j, v := range row {
				vec[j] += v
			}
		}
		for j := range vec {
			vec[j] /= float32(attended)
		}
	default:
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	return vec, nil
}

// EmbedBatch embeds each text in turn.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedder.EmbedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
