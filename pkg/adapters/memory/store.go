package memory

import (
	"context"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
)

// DefaultLimit is the number of log lines kept when no limit is given.
const DefaultLimit = 100

// LogSink implements ports.LogSink as a bounded ring in memory.
// Safe for concurrent use.
type LogSink struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	start   int
	limit   int
}

// NewLogSink creates an empty sink retaining at most limit entries.
func NewLogSink(limit int) *LogSink {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &LogSink{
		entries: make([]domain.LogEntry, 0, limit),
		limit:   limit,
	}
}

// Append adds entries, overwriting the oldest once the ring is full.
func (s *LogSink) Append(ctx context.Context, entries ...domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if len(s.entries) < s.limit {
			s.entries = append(s.entries, e)
			continue
		}
		s.entries[s.start] = e
		s.start = (s.start + 1) % s.limit
	}
	return nil
}

// Entries returns a copy of the retained entries, oldest first.
func (s *LogSink) Entries(ctx context.Context) ([]domain.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LogEntry, 0, len(s.entries))
	out = append(out, s.entries[s.start:]...)
	out = append(out, s.entries[:s.start]...)
	return out, nil
}

// Limit returns the ring capacity.
func (s *LogSink) Limit() int {
	return s.limit
}
