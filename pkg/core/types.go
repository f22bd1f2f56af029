package core

import "time"

// Record is a single conversational turn stored in a collection.
//
// Records are immutable: the engine never updates or deletes them, and the
// vector is computed once from Text.
//
// Example:
//
//	record, _ := engine.Remember(ctx, "Alice", "I love hiking in the mountains")
//	fmt.Println(record.ID, record.Timestamp)
type Record struct {
	// ID is the unique identifier of the record within its collection.
	ID int64 `json:"id"`

	// Speaker identifies who produced the utterance.
	Speaker string `json:"speaker"`

	// Text is the utterance content.
	Text string `json:"text"`

	// Timestamp is when the record was stored (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Vector is the embedding of Text.
	// Omitted from JSON to reduce payload size.
	Vector []float32 `json:"-"`
}

// Recollection is a recalled record together with its similarity to the query.
type Recollection struct {
	// ID is the identifier of the recalled record.
	ID int64 `json:"id"`

	// Speaker identifies who produced the recalled utterance.
	Speaker string `json:"speaker"`

	// Text is the recalled utterance.
	Text string `json:"text"`

	// Timestamp is the stored timestamp string, as persisted in the payload.
	Timestamp string `json:"timestamp"`

	// Score is the cosine similarity to the query (higher = more similar).
	Score float64 `json:"score"`
}

// RecordResult contains the result of an asynchronous Remember.
type RecordResult struct {
	// Record is the stored record (nil if an error occurred).
	Record *Record

	// Error is the error that occurred (nil if successful).
	Error error
}

// RecallResult contains the result of an asynchronous Recall or RecordAndRecall.
type RecallResult struct {
	// Memories are the formatted memory strings (nil if an error occurred).
	Memories []string

	// Error is the error that occurred (nil if successful).
	// For RecordAndRecall it may be a *PartialError.
	Error error
}

// Turn is one (speaker, text) pair fed to a batch operation.
type Turn struct {
	// Speaker identifies who produced the utterance.
	Speaker string `json:"speaker"`

	// Text is the utterance content.
	Text string `json:"text"`
}

// BatchResult contains the result of a batch operation.
type BatchResult struct {
	// Created contains successfully stored records, in input order.
	Created []*Record

	// Failed contains turns that failed to be stored, along with their errors.
	Failed []BatchError

	// Total is the total number of items in the batch.
	Total int

	// CreatedCount is the number of successfully stored records.
	CreatedCount int

	// FailedCount is the number of failed items.
	FailedCount int
}

// BatchError contains information about a failed batch item.
type BatchError struct {
	// Turn is the turn that failed to be stored.
	Turn Turn

	// Error is the error that occurred.
	Error error

	// Index is the index of the item in the original batch.
	Index int
}
