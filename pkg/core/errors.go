// Package core provides the long-term memory engine: it embeds conversational
// turns, stores them in a vector store and recalls similar earlier turns as
// memory strings for a prompt.
package core

import (
	"errors"
	"fmt"

	"github.com/oceanbase/ltm-go/pkg/embedder"
	"github.com/oceanbase/ltm-go/pkg/storage"
)

// Predefined errors for common failure scenarios.
var (
	// ErrEmbeddingFailed indicates bad input text or an unavailable embedding model.
	ErrEmbeddingFailed = embedder.ErrEmbeddingFailed

	// ErrStoreUnavailable indicates a network or service failure of the vector store,
	// including store calls that timed out.
	ErrStoreUnavailable = storage.ErrUnavailable

	// ErrSchemaConflict indicates that a collection exists with a different
	// dimension or metric than the engine's embedder requires.
	ErrSchemaConflict = storage.ErrSchemaConflict

	// ErrInitialization wraps every failure of Open and New.
	ErrInitialization = errors.New("initialization failed")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRecallAfterStore indicates that RecordAndRecall stored the turn but
	// could not recall memories for it. The error is a *PartialError.
	ErrRecallAfterStore = errors.New("stored but recall failed")

	// ErrClosed indicates use of an engine after Close.
	ErrClosed = errors.New("engine closed")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Remember",
//	    Err: ErrEmbeddingFailed,
//	}
//	// Error() returns: "ltm: Remember: embedding failed"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "ltm: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("ltm: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Remember", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

// PartialError reports a RecordAndRecall whose store step succeeded and whose
// recall step failed. Hosts can continue the turn without injected memories.
type PartialError struct {
	// Record is the turn that was stored.
	Record *Record

	// Err is the recall failure.
	Err error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%v: %v", ErrRecallAfterStore, e.Err)
}

// Unwrap exposes both ErrRecallAfterStore and the recall failure.
func (e *PartialError) Unwrap() []error {
	return []error{ErrRecallAfterStore, e.Err}
}

// initError marks err as an initialization failure, keeping its cause matchable.
func initError(op string, err error) error {
	return NewMemoryError(op, fmt.Errorf("%w: %w", ErrInitialization, err))
}
