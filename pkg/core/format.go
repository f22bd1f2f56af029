package core

import (
	"fmt"
	"time"

	"github.com/oceanbase/ltm-go/pkg/storage"
)

// FormatMemory renders a recollection as the sentence injected into a prompt.
//
// The output is fully determined by the recollection and now, so formatting
// the same inputs twice yields identical strings.
func FormatMemory(r *Recollection, now time.Time) string {
	return fmt.Sprintf("You remember that %s said:%s: on %s: Current date/time is:%s",
		r.Speaker, r.Text, r.Timestamp, storage.FormatTimestamp(now))
}

// FormatMemories renders every recollection with the same current time.
func FormatMemories(rs []*Recollection, now time.Time) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = FormatMemory(r, now)
	}
	return out
}

// toPoint converts a record into the storage representation.
func toPoint(r *Record) *storage.Point {
	return &storage.Point{
		ID:     r.ID,
		Vector: r.Vector,
		Payload: storage.Payload{
			Speaker:   r.Speaker,
			Text:      r.Text,
			Timestamp: storage.FormatTimestamp(r.Timestamp),
		},
	}
}

// toRecollection converts a search hit into a recollection.
func toRecollection(p *storage.ScoredPoint) *Recollection {
	return &Recollection{
		ID:        p.ID,
		Speaker:   p.Payload.Speaker,
		Text:      p.Payload.Text,
		Timestamp: p.Payload.Timestamp,
		Score:     p.Score,
	}
}
