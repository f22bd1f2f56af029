package ingest

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/logging"
)

// Mode selects the engine operation each turn is fed to.
type Mode int

const (
	// ModeRemember stores turns without recalling.
	ModeRemember Mode = iota

	// ModeRecordAndRecall stores each turn and recalls for it, as a live chat would.
	ModeRecordAndRecall
)

// Recorder is the part of *core.Engine that ingestion drives.
type Recorder interface {
	Remember(ctx context.Context, speaker, text string) (*core.Record, error)
	RecordAndRecall(ctx context.Context, speaker, text string) ([]string, error)
}

// Options configures Run.
type Options struct {
	// Mode selects Remember or RecordAndRecall (default: ModeRemember).
	Mode Mode

	// MinTextLength skips shorter turns; zero keeps every non-empty turn.
	MinTextLength int

	// OnTurn, if set, is called after each stored turn with the memories it evoked.
	OnTurn func(index int, turn core.Turn, memories []string)
}

// Result summarizes a Run.
type Result struct {
	// Failed contains turns that could not be stored, along with their errors.
	Failed []core.BatchError

	// Total is the number of turns given to Run.
	Total int

	// StoredCount is the number of turns stored.
	StoredCount int

	// SkippedCount is the number of turns dropped by the length filter.
	SkippedCount int

	// FailedCount is the number of turns that failed.
	FailedCount int
}

// Filter drops turns whose trimmed text is shorter than minLength characters.
func Filter(turns []core.Turn, minLength int) []core.Turn {
	out := make([]core.Turn, 0, len(turns))
	for _, t := range turns {
		if keep(t, minLength) {
			out = append(out, t)
		}
	}
	return out
}

func keep(t core.Turn, minLength int) bool {
	text := strings.TrimSpace(t.Text)
	return text != "" && utf8.RuneCountInString(text) >= minLength
}

// Run feeds turns to rec one at a time, in order.
//
// A failed turn is recorded and the run continues. A RecordAndRecall whose
// recall failed still counts as stored. Run stops early only when ctx is
// done, returning the partial result with the context error.
func Run(ctx context.Context, rec Recorder, turns []core.Turn, opts Options) (*Result, error) {
	logger := logging.From(ctx)
	result := &Result{
		Total:  len(turns),
		Failed: make([]core.BatchError, 0),
	}

	for i, turn := range turns {
		if err := ctx.Err(); err != nil {
			result.FailedCount = len(result.Failed)
			return result, err
		}
		if !keep(turn, opts.MinTextLength) {
			result.SkippedCount++
			continue
		}

		var (
			memories []string
			err      error
		)
		switch opts.Mode {
		case ModeRecordAndRecall:
			memories, err = rec.RecordAndRecall(ctx, turn.Speaker, turn.Text)
			if errors.Is(err, core.ErrRecallAfterStore) {
				logger.Warn("turn stored without recall", "index", i, "error", err)
				err = nil
			}
		default:
			_, err = rec.Remember(ctx, turn.Speaker, turn.Text)
		}

		if err != nil {
			logger.Warn("turn not stored", "index", i, "speaker", turn.Speaker, "error", err)
			result.Failed = append(result.Failed, core.BatchError{Turn: turn, Error: err, Index: i})
			continue
		}

		result.StoredCount++
		logger.Debug("turn stored", "index", i, "speaker", turn.Speaker, "memories", len(memories))
		if opts.OnTurn != nil {
			opts.OnTurn(i, turn, memories)
		}
	}

	result.FailedCount = len(result.Failed)
	logger.Info("ingestion finished",
		"total", result.Total,
		"stored", result.StoredCount,
		"skipped", result.SkippedCount,
		"failed", result.FailedCount,
	)
	return result, nil
}
