package reconciler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/render"
	"github.com/mitchellh/mapstructure"
)

// nodePayload is the block shape of a push event.
type nodePayload struct {
	ID       string           `mapstructure:"Id"`
	Type     string           `mapstructure:"Type"`
	Position *domain.Position `mapstructure:"Position"`
}

// edgePayload is the connection shape of a push event.
type edgePayload struct {
	ID      string   `mapstructure:"Id"`
	FromID  string   `mapstructure:"FromId"`
	ToID    string   `mapstructure:"ToId"`
	ToRoute string   `mapstructure:"ToRoute"`
	Rate    *float64 `mapstructure:"Rate"`
}

// Reconciler applies inbound push events to the graph store.
//
// It is the only writer of server-confirmed changes. Protocol inconsistencies
// (unknown identifiers, unknown block types, malformed payloads) are absorbed:
// they are logged, counted and returned, but never leave the store half-applied.
type Reconciler struct {
	store    *graph.Store
	library  domain.Library
	measurer ports.Measurer
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures the Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for absorbed inconsistencies.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithMetrics records applied and dropped events.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithMeasurer overrides how new blocks are sized.
func WithMeasurer(m ports.Measurer) Option {
	return func(r *Reconciler) {
		r.measurer = m
	}
}

// New creates a reconciler for a store and a block-type catalog.
func New(store *graph.Store, library domain.Library, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		library:  library,
		measurer: render.DefaultMeasurer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyAll applies a batch of events and returns the absorbed errors joined.
//
// Events keep their arrival order, except that a connection CREATE whose
// endpoints are created later in the same batch waits for them. A DELETE of a
// waiting connection, or of one of its endpoints, cancels it. Whatever is still
// waiting at the end of the batch is applied and dropped as dangling.
func (r *Reconciler) ApplyAll(events []domain.Event) error {
	upcoming := map[string]int{}
	for _, ev := range events {
		if ev.Kind == domain.EventCreate && ev.IsNode() {
			upcoming[eventID(ev)]++
		}
	}

	var (
		errs    []error
		waiting []pendingEdge
	)
	apply := func(ev domain.Event) {
		if err := r.Apply(ev); err != nil {
			errs = append(errs, err)
		}
	}
	release := func() {
		kept := waiting[:0]
		for _, pe := range waiting {
			if r.store.HasNode(pe.from) && r.store.HasNode(pe.to) {
				apply(pe.ev)
				continue
			}
			kept = append(kept, pe)
		}
		waiting = kept
	}
	cancel := func(id string) {
		kept := waiting[:0]
		for _, pe := range waiting {
			if pe.id == id || pe.from == id || pe.to == id {
				r.logger.Debug("waiting connection cancelled", "id", pe.id, "by", id)
				continue
			}
			kept = append(kept, pe)
		}
		waiting = kept
	}

	for _, ev := range events {
		switch {
		case ev.Kind == domain.EventCreate && ev.IsNode():
			upcoming[eventID(ev)]--
			apply(ev)
			release()
		case ev.Kind == domain.EventCreate:
			if pe, ok := r.deferrable(ev, upcoming); ok {
				waiting = append(waiting, pe)
				continue
			}
			apply(ev)
		case ev.Kind == domain.EventDelete:
			cancel(eventID(ev))
			apply(ev)
		default:
			apply(ev)
		}
	}
	for _, pe := range waiting {
		apply(pe.ev)
	}
	return errors.Join(errs...)
}

// pendingEdge is a connection CREATE waiting for its endpoints within a batch.
type pendingEdge struct {
	ev           domain.Event
	id, from, to string
}

// deferrable reports whether a connection CREATE references an endpoint that
// is missing from the store but created later in the batch.
func (r *Reconciler) deferrable(ev domain.Event, upcoming map[string]int) (pendingEdge, bool) {
	var p edgePayload
	if err := decode(ev.Data, &p); err != nil || p.ID == "" {
		return pendingEdge{}, false
	}
	pe := pendingEdge{ev: ev, id: p.ID, from: p.FromID, to: p.ToID}
	later := false
	for _, end := range []string{p.FromID, p.ToID} {
		if r.store.HasNode(end) {
			continue
		}
		if upcoming[end] <= 0 {
			return pendingEdge{}, false
		}
		later = true
	}
	return pe, later
}

// Apply applies one push event. A non-nil error means the event was absorbed as a no-op.
func (r *Reconciler) Apply(ev domain.Event) error {
	var err error
	entity := "edge"
	if ev.IsNode() {
		entity = "node"
	}

	switch ev.Kind {
	case domain.EventCreate:
		if ev.IsNode() {
			err = r.createNode(ev)
		} else {
			err = r.createEdge(ev)
		}
	case domain.EventUpdate:
		err = r.update(ev)
	case domain.EventDelete:
		err = r.delete(ev)
	case domain.EventQuery:
		r.logger.Debug("query event ignored", "id", ev.ID)
		return nil
	default:
		err = fmt.Errorf("event kind %q: %w", ev.Kind, domain.ErrMalformedPayload)
	}

	if err != nil {
		r.metrics.Dropped(string(ev.Kind), reason(err))
		r.logger.Warn("push event absorbed", "event", ev.Kind, "entity", entity, "id", eventID(ev), "reason", err)
		return err
	}

	r.metrics.Applied(string(ev.Kind), entity)
	nodes, edges := r.store.Len()
	r.metrics.GraphSize(nodes, edges)
	return nil
}

func (r *Reconciler) createNode(ev domain.Event) error {
	var p nodePayload
	if err := decode(ev.Data, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("create node without id: %w", domain.ErrMalformedPayload)
	}

	td, ok := r.library.Lookup(p.Type)
	if !ok {
		return fmt.Errorf("create node %s: type %q: %w", p.ID, p.Type, domain.ErrUnknownType)
	}

	n := &domain.Node{
		ID:       p.ID,
		Type:     p.Type,
		Size:     r.measurer.Measure(p.Type),
		TypeInfo: td,
	}
	if p.Position != nil {
		n.Position = *p.Position
	}

	_, err := r.store.UpsertNode(n)
	return err
}

func (r *Reconciler) createEdge(ev domain.Event) error {
	var p edgePayload
	if err := decode(ev.Data, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("create edge without id: %w", domain.ErrMalformedPayload)
	}

	e := &domain.Edge{ID: p.ID, FromID: p.FromID, ToID: p.ToID, ToRoute: p.ToRoute}
	if p.Rate != nil {
		e.Rate = *p.Rate
	}
	_, err := r.store.UpsertEdge(e)
	return err
}

// update recognises two shapes only: block position and connection rate.
func (r *Reconciler) update(ev domain.Event) error {
	if _, ok := ev.Data["Position"]; ok {
		var p nodePayload
		if err := decode(ev.Data, &p); err != nil {
			return err
		}
		id := firstNonEmpty(p.ID, ev.ID)
		if p.Position == nil {
			return fmt.Errorf("update node %s: null position: %w", id, domain.ErrMalformedPayload)
		}
		return r.store.MoveNode(id, *p.Position)
	}

	if _, ok := ev.Data["Rate"]; ok {
		var p edgePayload
		if err := decode(ev.Data, &p); err != nil {
			return err
		}
		id := firstNonEmpty(p.ID, ev.ID)
		if p.Rate == nil {
			return fmt.Errorf("update edge %s: null rate: %w", id, domain.ErrMalformedPayload)
		}
		return r.store.SetRate(id, *p.Rate)
	}

	r.logger.Debug("update event without position or rate ignored", "id", eventID(ev))
	return nil
}

func (r *Reconciler) delete(ev domain.Event) error {
	id := eventID(ev)
	if id == "" {
		return fmt.Errorf("delete without id: %w", domain.ErrMalformedPayload)
	}
	if removed, ok := r.store.DeleteNode(id); ok {
		if len(removed) > 0 {
			r.logger.Debug("node delete cascaded", "id", id, "edges", removed)
		}
		return nil
	}
	if !r.store.DeleteEdge(id) {
		r.logger.Debug("delete of unknown identifier", "id", id)
	}
	return nil
}

func decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return nil
}

func eventID(ev domain.Event) string {
	if id, ok := ev.Data["Id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	return ev.ID
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDanglingEdge):
		return "dangling_edge"
	case errors.Is(err, domain.ErrUnknownNode):
		return "unknown_node"
	case errors.Is(err, domain.ErrUnknownEdge):
		return "unknown_edge"
	case errors.Is(err, domain.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, domain.ErrDuplicateID):
		return "duplicate_id"
	}
	return "malformed"
}
