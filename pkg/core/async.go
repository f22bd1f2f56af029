package core

import (
	"context"
	"sync"
)

// AsyncEngine provides asynchronous memory operations.
//
// It wraps the synchronous Engine and executes operations in separate goroutines,
// so a chat host can store a turn while it is still generating the reply.
//
// All async methods return channels that receive exactly one result and are then
// closed. The engine tracks its goroutines; Wait blocks until all of them finish
// and Close waits before releasing the engine.
//
// Example:
//
//	asyncEngine, _ := core.OpenAsync(ctx, config)
//	defer asyncEngine.Close()
//
//	resultChan := asyncEngine.RecordAndRecallAsync(ctx, "Alice", "I love hiking")
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncEngine struct {
	*Engine
	wg sync.WaitGroup
}

// NewAsync wraps an existing engine.
func NewAsync(engine *Engine) *AsyncEngine {
	return &AsyncEngine{Engine: engine}
}

// OpenAsync creates an asynchronous engine from configuration.
func OpenAsync(ctx context.Context, cfg *Config, opts ...Option) (*AsyncEngine, error) {
	engine, err := Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewAsync(engine), nil
}

// RememberAsync stores a turn asynchronously.
func (ae *AsyncEngine) RememberAsync(ctx context.Context, speaker, text string) <-chan *RecordResult {
	resultChan := make(chan *RecordResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		record, err := ae.Remember(ctx, speaker, text)
		resultChan <- &RecordResult{
			Record: record,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// RecallAsync recalls memories asynchronously.
func (ae *AsyncEngine) RecallAsync(ctx context.Context, query string) <-chan *RecallResult {
	resultChan := make(chan *RecallResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		memories, err := ae.Recall(ctx, query)
		resultChan <- &RecallResult{
			Memories: memories,
			Error:    err,
		}
		close(resultChan)
	}()

	return resultChan
}

// RecordAndRecallAsync stores a turn and recalls memories asynchronously.
func (ae *AsyncEngine) RecordAndRecallAsync(ctx context.Context, speaker, text string) <-chan *RecallResult {
	resultChan := make(chan *RecallResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		memories, err := ae.RecordAndRecall(ctx, speaker, text)
		resultChan <- &RecallResult{
			Memories: memories,
			Error:    err,
		}
		close(resultChan)
	}()

	return resultChan
}

// Wait waits for all asynchronous operations to complete.
func (ae *AsyncEngine) Wait() {
	ae.wg.Wait()
}

// Close waits for pending operations, then closes the engine.
func (ae *AsyncEngine) Close() error {
	ae.Wait()
	return ae.Engine.Close()
}
