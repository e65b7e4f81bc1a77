package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/aretw0/tapestry/pkg/ports"
)

// Controller turns user gestures into optimistic store changes and mutation requests.
//
// It must be driven from the goroutine that owns the store. Connections,
// creations and deletions are never applied locally: only the push event
// that confirms them changes the store. Node moves are applied immediately.
type Controller struct {
	store   *graph.Store
	library domain.Library
	mutator ports.Mutator
	logger  *slog.Logger
	metrics *observability.Metrics
	state   State
}

// Option configures the Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics records rejected gestures.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates a controller that sends mutations through mutator.
func New(store *graph.Store, library domain.Library, mutator ports.Mutator, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		library: library,
		mutator: mutator,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach prunes the selection whenever the store drops elements.
func (c *Controller) Attach() {
	c.store.Subscribe(func(ch graph.Change) {
		if ch.Kind == graph.ChangeTopology || ch.Kind == graph.ChangeReset {
			c.prune()
		}
	})
}

// State returns a copy of the current interaction state.
func (c *Controller) State() State {
	return c.state.Clone()
}

// Selected reports whether the element is part of the selection.
func (c *Controller) Selected(id string) bool {
	_, ok := c.state.Selection[id]
	return ok
}

// Pending returns the connection being drawn and the current pointer.
func (c *Controller) Pending() (origin, route string, dir domain.PortDirection, pointer domain.Position, ok bool) {
	p := c.state.Pending
	if c.state.Mode != Connecting || p == nil {
		return "", "", "", domain.Position{}, false
	}
	return p.NodeID, p.Route, p.Direction, c.state.Pointer, true
}

// SetShift records whether the multi-select modifier is held.
func (c *Controller) SetShift(held bool) {
	c.state.Shift = held
}

// PointerMove updates the pointer used to draw the pending connection.
func (c *Controller) PointerMove(pos domain.Position) {
	c.state.Pointer = pos
}

// ClickPort activates a port anchor.
//
// From Idle it starts a connection. While Connecting, a port of the opposite
// direction on another block completes it and sends exactly one connection
// request; anything else cancels the gesture and sends nothing. The returned
// bool reports whether a request was sent.
func (c *Controller) ClickPort(ctx context.Context, nodeID string, dir domain.PortDirection, route string) (domain.Mutation, bool, error) {
	if dir == domain.PortQuery {
		err := fmt.Errorf("port %s/%s: %w", nodeID, route, domain.ErrQueryPort)
		c.reject(err)
		return domain.Mutation{}, false, err
	}
	if err := c.checkPort(nodeID, dir, route); err != nil {
		c.reject(err)
		return domain.Mutation{}, false, err
	}

	if c.state.Mode != Connecting || c.state.Pending == nil {
		c.state.Mode = Connecting
		c.state.Pending = &PendingConnection{NodeID: nodeID, Route: route, Direction: dir}
		c.logger.Debug("connection started", "node", nodeID, "route", route, "direction", dir)
		return domain.Mutation{}, false, nil
	}

	origin := *c.state.Pending
	switch {
	case dir == origin.Direction:
		err := fmt.Errorf("connect %s to %s: %w", origin.NodeID, nodeID, domain.ErrSameDirection)
		c.reject(err)
		return domain.Mutation{}, false, err
	case nodeID == origin.NodeID:
		err := fmt.Errorf("connect %s: %w", nodeID, domain.ErrSelfConnection)
		c.reject(err)
		return domain.Mutation{}, false, err
	}

	var m domain.Mutation
	if origin.Direction == domain.PortOut {
		m = domain.Connect(origin.NodeID, nodeID, route)
	} else {
		m = domain.Connect(nodeID, origin.NodeID, origin.Route)
	}
	c.state.idle()
	c.send(ctx, m)
	return m, true, nil
}

// Connect runs a whole connection gesture from an out port to an in port.
func (c *Controller) Connect(ctx context.Context, fromID, fromRoute, toID, toRoute string) (domain.Mutation, error) {
	c.state.idle()
	if _, _, err := c.ClickPort(ctx, fromID, domain.PortOut, fromRoute); err != nil {
		return domain.Mutation{}, err
	}
	m, sent, err := c.ClickPort(ctx, toID, domain.PortIn, toRoute)
	if err != nil {
		return domain.Mutation{}, err
	}
	if !sent {
		return domain.Mutation{}, domain.ErrNotConnecting
	}
	return m, nil
}

// CancelConnection returns to Idle without sending anything.
func (c *Controller) CancelConnection() error {
	if c.state.Mode != Connecting {
		return domain.ErrNotConnecting
	}
	c.state.idle()
	return nil
}

// ClickBackground cancels a pending connection and clears the selection
// unless the multi-select modifier is held.
func (c *Controller) ClickBackground() {
	if c.state.Mode == Connecting {
		c.logger.Debug("connection cancelled")
	}
	c.state.idle()
	if !c.state.Shift {
		c.state.Selection = nil
	}
}

// ClickNode selects a block.
func (c *Controller) ClickNode(id string) error {
	if !c.store.HasNode(id) {
		return fmt.Errorf("select %s: %w", id, domain.ErrUnknownNode)
	}
	c.selectElement(id, TargetNode)
	return nil
}

// ClickEdge selects a connection.
func (c *Controller) ClickEdge(id string) error {
	if !c.store.HasEdge(id) {
		return fmt.Errorf("select %s: %w", id, domain.ErrUnknownEdge)
	}
	c.selectElement(id, TargetEdge)
	return nil
}

func (c *Controller) selectElement(id string, t Target) {
	if !c.state.Shift {
		c.state.Selection = map[string]Target{id: t}
		return
	}
	if c.state.Selection == nil {
		c.state.Selection = make(map[string]Target)
	}
	c.state.Selection[id] = t
}

// DragStart grabs a block body at the given pointer position.
func (c *Controller) DragStart(id string, pointer domain.Position) error {
	n, ok := c.store.Node(id)
	if !ok {
		return fmt.Errorf("drag %s: %w", id, domain.ErrUnknownNode)
	}
	c.state.Drag = &DragState{
		NodeID: id,
		Offset: domain.Position{X: pointer.X - n.Position.X, Y: pointer.Y - n.Position.Y},
	}
	c.state.Pointer = pointer
	return nil
}

// DragTo moves the grabbed block under the pointer. The store is updated
// immediately so dependent edge paths follow.
func (c *Controller) DragTo(pointer domain.Position) error {
	d := c.state.Drag
	if d == nil {
		return nil
	}
	c.state.Pointer = pointer
	pos := domain.Position{X: pointer.X - d.Offset.X, Y: pointer.Y - d.Offset.Y}
	if err := c.store.MoveNode(d.NodeID, pos); err != nil {
		c.state.Drag = nil
		return err
	}
	d.Moved = true
	return nil
}

// DragEnd releases the block and sends its final position.
func (c *Controller) DragEnd(ctx context.Context) (domain.Mutation, bool) {
	d := c.state.Drag
	c.state.Drag = nil
	if d == nil || !d.Moved {
		return domain.Mutation{}, false
	}
	n, ok := c.store.Node(d.NodeID)
	if !ok {
		return domain.Mutation{}, false
	}
	m := domain.MoveBlock(n.ID, n.Position)
	c.send(ctx, m)
	return m, true
}

// Move places a block at pos as a single drag gesture.
func (c *Controller) Move(ctx context.Context, id string, pos domain.Position) (domain.Mutation, error) {
	n, ok := c.store.Node(id)
	if !ok {
		return domain.Mutation{}, fmt.Errorf("move %s: %w", id, domain.ErrUnknownNode)
	}
	if err := c.DragStart(id, n.Position); err != nil {
		return domain.Mutation{}, err
	}
	if err := c.DragTo(pos); err != nil {
		return domain.Mutation{}, err
	}
	m, _ := c.DragEnd(ctx)
	return m, nil
}

// KeyDelete requests removal of every selected element. Nothing is removed
// locally; the confirming push events do that.
func (c *Controller) KeyDelete(ctx context.Context) []domain.Mutation {
	sel := c.state.Selected()
	out := make([]domain.Mutation, 0, len(sel))
	for _, id := range sel {
		var m domain.Mutation
		switch c.state.Selection[id] {
		case TargetNode:
			m = domain.DeleteBlock(id)
		case TargetEdge:
			m = domain.DeleteConnection(id)
		default:
			continue
		}
		c.send(ctx, m)
		out = append(out, m)
	}
	return out
}

// Delete requests removal of one element by identifier.
func (c *Controller) Delete(ctx context.Context, id string) (domain.Mutation, error) {
	var m domain.Mutation
	switch {
	case c.store.HasNode(id):
		m = domain.DeleteBlock(id)
	case c.store.HasEdge(id):
		m = domain.DeleteConnection(id)
	default:
		return domain.Mutation{}, fmt.Errorf("delete %s: %w", id, domain.ErrUnknownID)
	}
	c.send(ctx, m)
	return m, nil
}

// CreateBlock requests a new block of a catalog type.
func (c *Controller) CreateBlock(ctx context.Context, blockType string, pos domain.Position) (domain.Mutation, error) {
	if _, ok := c.library.Lookup(blockType); !ok {
		err := fmt.Errorf("create %q: %w", blockType, domain.ErrUnknownType)
		c.reject(err)
		return domain.Mutation{}, err
	}
	m := domain.CreateBlock(blockType, pos)
	c.send(ctx, m)
	return m, nil
}

// Reset drops every transient gesture, used when the push channel is lost.
func (c *Controller) Reset() {
	c.state = State{Shift: c.state.Shift}
}

func (c *Controller) checkPort(nodeID string, dir domain.PortDirection, route string) error {
	n, ok := c.store.Node(nodeID)
	if !ok {
		return fmt.Errorf("port %s/%s: %w", nodeID, route, domain.ErrUnknownNode)
	}
	if n.TypeInfo != nil && n.TypeInfo.RouteIndex(dir, route) < 0 {
		return fmt.Errorf("port %s/%s (%s): %w", nodeID, route, dir, domain.ErrUnknownRoute)
	}
	return nil
}

func (c *Controller) prune() {
	for id, t := range c.state.Selection {
		if (t == TargetNode && !c.store.HasNode(id)) || (t == TargetEdge && !c.store.HasEdge(id)) {
			delete(c.state.Selection, id)
		}
	}
	if d := c.state.Drag; d != nil && !c.store.HasNode(d.NodeID) {
		c.state.Drag = nil
	}
}

func (c *Controller) reject(err error) {
	c.state.idle()
	c.metrics.Rejected(rejection(err))
	c.logger.Debug("gesture rejected", "reason", err)
}

func (c *Controller) send(ctx context.Context, m domain.Mutation) {
	c.logger.Debug("mutation", "kind", m.Kind, "id", m.ID)
	c.mutator.Send(ctx, m)
}

func rejection(err error) string {
	switch {
	case errors.Is(err, domain.ErrSameDirection):
		return "same_direction"
	case errors.Is(err, domain.ErrSelfConnection):
		return "self_connection"
	case errors.Is(err, domain.ErrQueryPort):
		return "query_port"
	case errors.Is(err, domain.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, domain.ErrUnknownRoute):
		return "unknown_route"
	}
	return "unknown_node"
}
