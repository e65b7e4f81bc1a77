package tapestry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/tapestry/internal/eventloop"
	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/adapters/backend"
	"github.com/aretw0/tapestry/pkg/adapters/memory"
	"github.com/aretw0/tapestry/pkg/adapters/ws"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/interaction"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/reconciler"
	"github.com/aretw0/tapestry/pkg/render"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Version is the editor version reported by the CLI and the HTTP surface.
const Version = "0.3.0"

const (
	// MessageDisconnected is written to the log panel when the state channel is lost.
	MessageDisconnected = "lost connection to Streamtools. Retrying..."
	// MessageConnected prefixes the log panel line written on every (re)connection.
	MessageConnected = "connected to Streamtools"
)

// Editor is the high-level entry point: it owns the graph store, the
// reconciler, the interaction controller and the renderer, and keeps them in
// sync with a backend over its two push channels.
//
// All state lives on a single event loop. Use Do (or the helpers built on it)
// to read or change it from another goroutine.
type Editor struct {
	client     *backend.Client
	info       *backend.Info
	loop       *eventloop.Loop
	store      *graph.Store
	reconciler *reconciler.Reconciler
	controller *interaction.Controller
	renderer   *render.Renderer
	logs       ports.LogSink

	logger        *slog.Logger
	metrics       *observability.Metrics
	mutator       ports.Mutator
	measurer      ports.Measurer
	dialer        *websocket.Dialer
	httpClient    *http.Client
	reconnectWait time.Duration
	rateRefresh   time.Duration
	frameInterval time.Duration
	logLimit      int
	logListeners  []func(domain.LogEntry)

	connected atomic.Bool
	lastEvent atomic.Int64

	// inbox holds state events not yet handed to the loop; they are applied
	// as one reconciliation batch.
	inboxMu sync.Mutex
	inbox   []domain.Event
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithLogSink sets the backing store of the log panel (default: in-memory ring).
func WithLogSink(sink ports.LogSink) Option {
	return func(e *Editor) {
		e.logs = sink
	}
}

// WithLogLimit sets the capacity of the default in-memory log panel.
func WithLogLimit(n int) Option {
	return func(e *Editor) {
		e.logLimit = n
	}
}

// WithReconnectWait sets the fixed delay between reconnection attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(e *Editor) {
		e.reconnectWait = d
	}
}

// WithRateRefresh sets how often connection rate labels are re-derived.
func WithRateRefresh(d time.Duration) Option {
	return func(e *Editor) {
		e.rateRefresh = d
	}
}

// WithFrameInterval sets the flow animation period. Zero disables the animation.
func WithFrameInterval(d time.Duration) Option {
	return func(e *Editor) {
		e.frameInterval = d
	}
}

// WithMutator replaces the backend client as the destination of mutation requests.
func WithMutator(m ports.Mutator) Option {
	return func(e *Editor) {
		e.mutator = m
	}
}

// WithMeasurer overrides how block labels are sized.
func WithMeasurer(m ports.Measurer) Option {
	return func(e *Editor) {
		e.measurer = m
	}
}

// WithHTTPClient sets the client used for bootstrap and mutation requests.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Editor) {
		e.httpClient = c
	}
}

// WithDialer sets the websocket dialer used by the push channels.
func WithDialer(d *websocket.Dialer) Option {
	return func(e *Editor) {
		e.dialer = d
	}
}

// New bootstraps an editor against the backend at backendURL.
// It fetches the block catalog, the push channel address and the backend
// version; any failure there is returned and the editor is unusable.
func New(ctx context.Context, backendURL string, opts ...Option) (*Editor, error) {
	e := &Editor{
		logger:        logging.NewNop(),
		reconnectWait: ws.DefaultReconnectWait,
		rateRefresh:   100 * time.Millisecond,
		frameInterval: 16 * time.Millisecond,
		logLimit:      memory.DefaultLimit,
		measurer:      render.DefaultMeasurer,
		dialer:        websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logs == nil {
		e.logs = memory.NewLogSink(e.logLimit)
	}

	clientOpts := []backend.Option{backend.WithLogger(e.logger), backend.WithMetrics(e.metrics)}
	if e.httpClient != nil {
		clientOpts = append(clientOpts, backend.WithHTTPClient(e.httpClient))
	}
	client, err := backend.New(backendURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	e.client = client

	info, err := client.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	e.info = info
	e.logger.Debug("backend bootstrapped", "backend", client.BaseURL(), "version", info.Version, "types", len(info.Library))
	if e.mutator == nil {
		e.mutator = client
	}

	e.store = graph.NewStore()
	e.reconciler = reconciler.New(e.store, info.Library,
		reconciler.WithLogger(e.logger),
		reconciler.WithMetrics(e.metrics),
		reconciler.WithMeasurer(e.measurer),
	)
	e.controller = interaction.New(e.store, info.Library, e.mutator,
		interaction.WithLogger(e.logger),
		interaction.WithMetrics(e.metrics),
	)
	e.renderer = render.New(e.store,
		render.WithLogger(e.logger),
		render.WithOverlay(e.controller),
	)
	// Selection pruning runs before the renderer projects the change.
	e.controller.Attach()
	e.renderer.Attach()

	e.loop = eventloop.New(eventloop.WithLogger(e.logger))
	e.loop.Every("labels", e.rateRefresh, e.renderer.RefreshLabels)
	e.loop.Every("frame", e.frameInterval, e.renderer.Tick)

	return e, nil
}

// Info returns what was learned from the backend at startup.
func (e *Editor) Info() backend.Info {
	return *e.info
}

// Library returns the block-type catalog.
func (e *Editor) Library() domain.Library {
	return e.info.Library
}

// Connected reports whether the state channel is currently up.
func (e *Editor) Connected() bool {
	return e.connected.Load()
}

// Logs returns the log panel entries, oldest first.
func (e *Editor) Logs(ctx context.Context) ([]domain.LogEntry, error) {
	return e.logs.Entries(ctx)
}

// OnDiff registers a listener for render passes. It runs on the event loop
// and must not block. Register listeners before calling Run.
func (e *Editor) OnDiff(fn render.DiffListener) {
	e.renderer.OnDiff(fn)
}

// OnLog registers a listener for log panel entries, including the editor's
// own connection notices. It runs on a channel goroutine and must not block.
// Register listeners before calling Run.
func (e *Editor) OnLog(fn func(domain.LogEntry)) {
	e.logListeners = append(e.logListeners, fn)
}

// Run connects the push channels and processes events until ctx is cancelled.
func (e *Editor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	state := ws.New("ui", e.info.SocketURL("ui"),
		ws.WithLogger(e.logger),
		ws.WithMetrics(e.metrics),
		ws.WithReconnectWait(e.reconnectWait),
		ws.WithDialer(e.dialer),
		ws.OnOpen(e.stateOpened(ctx)),
		ws.OnMessage(e.stateMessage),
		ws.OnClose(e.stateClosed(ctx)),
	)
	logs := ws.New("log", e.info.SocketURL("log"),
		ws.WithLogger(e.logger),
		ws.WithMetrics(e.metrics),
		ws.WithReconnectWait(e.reconnectWait),
		ws.WithDialer(e.dialer),
		ws.OnMessage(e.logMessage(ctx)),
	)

	g.Go(func() error { return e.loop.Run(ctx) })
	g.Go(func() error { return state.Run(ctx) })
	g.Go(func() error { return logs.Run(ctx) })

	err := g.Wait()
	e.client.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Editor) stateOpened(ctx context.Context) func(*ws.Channel) {
	return func(c *ws.Channel) {
		e.connected.Store(true)
		e.lastEvent.Store(time.Now().UnixNano())
		e.uiLog(ctx, fmt.Sprintf("%s %s", MessageConnected, e.info.Version))
		if err := c.Send([]byte(domain.StateRequest)); err != nil {
			e.logger.Warn("state request failed", "channel", c.Name(), "err", err)
		}
	}
}

func (e *Editor) stateMessage(msg []byte) {
	e.lastEvent.Store(time.Now().UnixNano())

	var ev domain.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		e.metrics.Dropped("", "malformed")
		e.logger.Warn("undecodable push event", "err", err)
		return
	}
	e.inboxMu.Lock()
	e.inbox = append(e.inbox, ev)
	first := len(e.inbox) == 1
	e.inboxMu.Unlock()
	if first {
		e.loop.Post(e.drainInbox)
	}
}

// drainInbox runs on the loop and applies every queued state event as a batch.
func (e *Editor) drainInbox() {
	e.inboxMu.Lock()
	batch := e.inbox
	e.inbox = nil
	e.inboxMu.Unlock()
	_ = e.reconciler.ApplyAll(batch)
}

func (e *Editor) stateClosed(ctx context.Context) func(error) {
	return func(err error) {
		e.connected.Store(false)
		e.metrics.Reset()
		e.loop.Post(func() {
			e.controller.Reset()
			e.store.Reset()
			e.metrics.GraphSize(0, 0)
		})
		e.uiLog(ctx, MessageDisconnected)
	}
}

func (e *Editor) logMessage(ctx context.Context) func([]byte) {
	return func(msg []byte) {
		var batch domain.LogBatch
		if err := json.Unmarshal(msg, &batch); err != nil {
			e.logger.Warn("undecodable log batch", "err", err)
			return
		}
		now := time.Now()
		for i := range batch.Log {
			if batch.Log[i].Time.IsZero() {
				batch.Log[i].Time = now
			}
		}
		if err := e.logs.Append(ctx, batch.Log...); err != nil {
			e.logger.Warn("log panel append failed", "err", err)
			return
		}
		e.metrics.Logged(len(batch.Log))
		e.notifyLog(batch.Log...)
	}
}

func (e *Editor) uiLog(ctx context.Context, msg string) {
	entry := domain.LogEntry{Type: domain.LogTypeUI, Data: msg, Time: time.Now()}
	if err := e.logs.Append(ctx, entry); err != nil {
		e.logger.Warn("log panel append failed", "err", err)
		return
	}
	e.metrics.Logged(1)
	e.notifyLog(entry)
}

func (e *Editor) notifyLog(entries ...domain.LogEntry) {
	for _, fn := range e.logListeners {
		for _, entry := range entries {
			fn(entry)
		}
	}
}
