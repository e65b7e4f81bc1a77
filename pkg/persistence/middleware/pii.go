package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.LogSink
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching the
// patterns in structured log entries before they are stored.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.LogSink) ports.LogSink {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Append(ctx context.Context, entries ...domain.LogEntry) error {
	masked := make([]domain.LogEntry, len(entries))
	for i, e := range entries {
		masked[i] = e
		masked[i].Data = maskValue(e.Data, m.patterns)
	}
	return m.next.Append(ctx, masked...)
}

func (m *piiMiddleware) Entries(ctx context.Context) ([]domain.LogEntry, error) {
	return m.next.Entries(ctx)
}

func (m *piiMiddleware) Limit() int {
	return m.next.Limit()
}

// maskValue returns a copy of v with matching keys masked. The input is never modified.
func maskValue(v any, patterns []*regexp.Regexp) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			if matchesAny(k, patterns) {
				out[k] = Mask
				continue
			}
			out[k] = maskValue(sub, patterns)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			out[i] = maskValue(sub, patterns)
		}
		return out
	}
	return v
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
