package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/tapestry/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const (
	defaultKey   = "tapestry:log"
	defaultLimit = 100
)

// LogSink implements ports.LogSink as a capped Redis list.
// Several editors pointed at the same key share one log panel.
type LogSink struct {
	client *backend.Client
	key    string
	limit  int
}

type Option func(*LogSink)

// WithKey sets the list key.
func WithKey(key string) Option {
	return func(s *LogSink) {
		s.key = key
	}
}

// WithLimit sets how many entries the list retains.
func WithLimit(limit int) Option {
	return func(s *LogSink) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// New creates a Redis log sink with its own client.
func New(address, password string, db int, opts ...Option) *LogSink {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis log sink from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *LogSink {
	sink := &LogSink{
		client: client,
		key:    defaultKey,
		limit:  defaultLimit,
	}

	for _, opt := range opts {
		opt(sink)
	}

	return sink
}

// Append pushes entries to the tail of the list and trims the head to the limit.
func (s *LogSink) Append(ctx context.Context, entries ...domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal log entry %s: %w", e.ID, err)
		}
		values = append(values, data)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.RPush(ctx, s.key, values...)
		pipe.LTrim(ctx, s.key, int64(-s.limit), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append log entries: %w", err)
	}
	return nil
}

// Entries returns the retained entries, oldest first.
func (s *LogSink) Entries(ctx context.Context) ([]domain.LogEntry, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read log entries: %w", err)
	}

	entries := make([]domain.LogEntry, 0, len(raw))
	for _, r := range raw {
		var e domain.LogEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Limit returns the list cap.
func (s *LogSink) Limit() int {
	return s.limit
}

// Close releases the client.
func (s *LogSink) Close() error {
	return s.client.Close()
}
