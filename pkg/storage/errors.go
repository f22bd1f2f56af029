package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable indicates a network, service or I/O failure of the backend.
	ErrUnavailable = errors.New("vector store unavailable")

	// ErrSchemaConflict indicates that a collection exists with a different
	// dimension or metric than requested.
	ErrSchemaConflict = errors.New("collection schema conflict")

	// ErrCollectionNotFound indicates an operation on a collection that was
	// never ensured.
	ErrCollectionNotFound = errors.New("collection not found")
)

// SchemaConflictError describes a mismatched collection schema.
type SchemaConflictError struct {
	// Collection is the name of the conflicting collection.
	Collection string

	// Have is the schema the backend holds.
	Have CollectionSchema

	// Want is the schema the caller asked for.
	Want CollectionSchema
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("collection %q exists with dimension=%d metric=%s, requested dimension=%d metric=%s",
		e.Collection, e.Have.Dimension, e.Have.Metric, e.Want.Dimension, e.Want.Metric)
}

// Unwrap makes errors.Is(err, ErrSchemaConflict) hold.
func (e *SchemaConflictError) Unwrap() error {
	return ErrSchemaConflict
}

// Unavailable wraps err with ErrUnavailable and the failing operation.
//
// Errors that already carry ErrUnavailable or ErrSchemaConflict are wrapped
// with the operation only.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrSchemaConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// DimensionMismatch reports a vector whose length differs from the collection's.
func DimensionMismatch(collection string, have CollectionSchema, got int) error {
	return &SchemaConflictError{
		Collection: collection,
		Have:       have,
		Want:       CollectionSchema{Dimension: got, Metric: have.Metric},
	}
}
