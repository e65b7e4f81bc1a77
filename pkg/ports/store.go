package ports

import (
	"context"

	"github.com/aretw0/tapestry/pkg/domain"
)

// LogSink is the capped, append-only backing store of the visual log panel.
// Once the cap is reached, the oldest entries are evicted.
type LogSink interface {
	// Append adds entries in order.
	Append(ctx context.Context, entries ...domain.LogEntry) error

	// Entries returns the retained entries, oldest first.
	Entries(ctx context.Context) ([]domain.LogEntry, error)

	// Limit returns the maximum number of retained entries.
	Limit() int
}
