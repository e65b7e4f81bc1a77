package tapestry

import (
	"context"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/interaction"
	"github.com/aretw0/tapestry/pkg/render"
)

// Canvas is the view of editor state handed to Do. It is only valid inside the callback.
type Canvas struct {
	Store      *graph.Store
	Controller *interaction.Controller
	Renderer   *render.Renderer
}

// Do runs fn on the event loop and waits for it.
func (e *Editor) Do(ctx context.Context, fn func(*Canvas) error) error {
	return e.loop.Do(ctx, func() error {
		return fn(&Canvas{Store: e.store, Controller: e.controller, Renderer: e.renderer})
	})
}

// Snapshot is a consistent copy of the graph.
type Snapshot struct {
	Revision uint64         `json:"revision"`
	Nodes    []*domain.Node `json:"nodes"`
	Edges    []*domain.Edge `json:"edges"`
}

// Snapshot returns a copy of the graph store.
func (e *Editor) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.Do(ctx, func(c *Canvas) error {
		snap = Snapshot{Revision: c.Store.Revision(), Nodes: c.Store.Nodes(), Edges: c.Store.Edges()}
		return nil
	})
	return snap, err
}

// Scene returns the current rendered scene.
func (e *Editor) Scene(ctx context.Context) (render.Scene, error) {
	var scene render.Scene
	err := e.Do(ctx, func(c *Canvas) error {
		scene = c.Renderer.Scene()
		return nil
	})
	return scene, err
}

// Interaction returns the current gesture state.
func (e *Editor) Interaction(ctx context.Context) (interaction.State, error) {
	var st interaction.State
	err := e.Do(ctx, func(c *Canvas) error {
		st = c.Controller.State()
		return nil
	})
	return st, err
}

// CreateBlock requests a new block of a catalog type.
func (e *Editor) CreateBlock(ctx context.Context, blockType string, pos domain.Position) (domain.Mutation, error) {
	var m domain.Mutation
	err := e.Do(ctx, func(c *Canvas) error {
		var err error
		m, err = c.Controller.CreateBlock(ctx, blockType, pos)
		return err
	})
	return m, err
}

// MoveBlock moves a block locally and requests the new position.
func (e *Editor) MoveBlock(ctx context.Context, id string, pos domain.Position) (domain.Mutation, error) {
	var m domain.Mutation
	err := e.Do(ctx, func(c *Canvas) error {
		var err error
		m, err = c.Controller.Move(ctx, id, pos)
		return err
	})
	return m, err
}

// Connect requests a connection from an out port to an in port.
func (e *Editor) Connect(ctx context.Context, fromID, fromRoute, toID, toRoute string) (domain.Mutation, error) {
	var m domain.Mutation
	err := e.Do(ctx, func(c *Canvas) error {
		var err error
		m, err = c.Controller.Connect(ctx, fromID, fromRoute, toID, toRoute)
		return err
	})
	return m, err
}

// Delete requests removal of a block or connection.
func (e *Editor) Delete(ctx context.Context, id string) (domain.Mutation, error) {
	var m domain.Mutation
	err := e.Do(ctx, func(c *Canvas) error {
		var err error
		m, err = c.Controller.Delete(ctx, id)
		return err
	})
	return m, err
}

// WaitSettled blocks until the state channel is up and no push event has
// arrived for quiet, i.e. the initial state burst has been applied.
func (e *Editor) WaitSettled(ctx context.Context, quiet time.Duration) error {
	if quiet <= 0 {
		quiet = 200 * time.Millisecond
	}
	tick := time.NewTicker(quiet / 4)
	defer tick.Stop()
	for {
		if e.Connected() && time.Since(time.Unix(0, e.lastEvent.Load())) >= quiet {
			// Flush whatever is still queued on the loop.
			return e.Do(ctx, func(*Canvas) error { return nil })
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}
