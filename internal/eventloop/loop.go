package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
)

// ErrStopped is returned when work is posted to a loop that is not running anymore.
var ErrStopped = errors.New("event loop stopped")

type ticker struct {
	name     string
	interval time.Duration
	fn       func()
}

// Loop serialises all access to editor state on a single goroutine.
//
// Transport readers, timers and request handlers never touch state directly:
// they post closures that run one at a time, each to completion, so nothing
// ever observes the store mid-mutation.
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	tickers []ticker
	logger  *slog.Logger
}

// Option configures the Loop.
type Option func(*Loop)

// WithLogger sets the loop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates a loop. Register timers with Every before calling Run.
func New(opts ...Option) *Loop {
	l := &Loop{
		tasks:  make(chan func(), 256),
		done:   make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Every runs fn on the loop at a fixed interval while the loop runs.
// A non-positive interval disables the timer.
func (l *Loop) Every(name string, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	l.tickers = append(l.tickers, ticker{name: name, interval: interval, fn: fn})
}

// Post schedules fn on the loop. It blocks while the queue is full and
// reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	ok := l.Post(func() {
		result <- fn()
	})
	if !ok {
		return ErrStopped
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The closure may have run just before shutdown.
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run processes posted closures and timers until ctx is cancelled.
// A panicking closure is logged and does not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	fire := make(chan int, len(l.tickers))
	stop := make(chan struct{})
	defer close(stop)

	for i, t := range l.tickers {
		go func(i int, interval time.Duration) {
			tk := time.NewTicker(interval)
			defer tk.Stop()
			for {
				select {
				case <-tk.C:
					// Coalesce: skip a beat rather than queue up behind a slow loop.
					select {
					case fire <- i:
					default:
					}
				case <-stop:
					return
				}
			}
		}(i, t.interval)
	}

	l.logger.Debug("event loop started", "timers", len(l.tickers))
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("event loop stopped")
			return ctx.Err()
		case fn := <-l.tasks:
			l.run("task", fn)
		case i := <-fire:
			l.run(l.tickers[i].name, l.tickers[i].fn)
		}
	}
}

func (l *Loop) run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop handler panicked", "handler", name, "err", fmt.Sprint(r))
		}
	}()
	fn()
}
