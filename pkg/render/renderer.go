package render

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
)

// Overlay exposes the interaction state the renderer draws on top of the graph.
type Overlay interface {
	// Selected reports whether the node or edge with this identifier is selected.
	Selected(id string) bool
	// Pending returns the connection being drawn, if any.
	Pending() (origin, route string, dir domain.PortDirection, pointer domain.Position, ok bool)
}

// DiffListener receives the result of every render pass that changed something.
type DiffListener func(Diff)

// Renderer projects the graph store into keyed visual elements.
//
// Full passes (Sync) diff the store against the current elements by identifier.
// Geometry changes only recompute the affected edge paths, and the flow
// animation (Tick) and label refresh (RefreshLabels) never touch the store.
type Renderer struct {
	store     *graph.Store
	overlay   Overlay
	logger    *slog.Logger
	nodes     map[string]*NodeElement
	edges     map[string]*EdgeElement
	revision  uint64
	listeners []DiffListener
}

// Option configures the Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithOverlay sets the selection and pending-connection source.
func WithOverlay(o Overlay) Option {
	return func(r *Renderer) {
		r.overlay = o
	}
}

// New creates a renderer bound to a store. Call Attach to follow store mutations.
func New(store *graph.Store, opts ...Option) *Renderer {
	r := &Renderer{
		store:  store,
		logger: logging.NewNop(),
		nodes:  make(map[string]*NodeElement),
		edges:  make(map[string]*EdgeElement),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetOverlay replaces the overlay source.
func (r *Renderer) SetOverlay(o Overlay) {
	r.overlay = o
}

// OnDiff registers a listener for render passes.
func (r *Renderer) OnDiff(l DiffListener) {
	r.listeners = append(r.listeners, l)
}

// Attach subscribes the renderer to the store so every mutation is projected.
func (r *Renderer) Attach() {
	r.store.Subscribe(r.handleChange)
}

func (r *Renderer) handleChange(c graph.Change) {
	switch c.Kind {
	case graph.ChangeGeometry:
		r.UpdateLinks(c.NodeIDs...)
	case graph.ChangeRate:
		for _, id := range c.EdgeIDs {
			if el, ok := r.edges[id]; ok {
				if e, ok := r.store.Edge(id); ok {
					el.Rate = e.Rate
				}
			}
		}
	default:
		r.Sync()
	}
}

// Sync runs a full keyed diff between the store and the current elements.
func (r *Renderer) Sync() Diff {
	r.revision = r.store.Revision()
	d := Diff{Revision: r.revision}

	seen := make(map[string]bool)
	for _, n := range r.store.Nodes() {
		seen[n.ID] = true
		if el, ok := r.nodes[n.ID]; ok {
			el.place(n)
			d.UpdatedNodes = append(d.UpdatedNodes, n.ID)
			continue
		}
		r.nodes[n.ID] = projectNode(n)
		d.EnteredNodes = append(d.EnteredNodes, n.ID)
	}
	for id := range r.nodes {
		if !seen[id] {
			delete(r.nodes, id)
			d.ExitedNodes = append(d.ExitedNodes, id)
		}
	}

	seen = make(map[string]bool)
	for _, e := range r.store.Edges() {
		seen[e.ID] = true
		el, ok := r.edges[e.ID]
		if !ok {
			el = &EdgeElement{ID: e.ID, Label: FormatRate(e.Rate)}
			r.edges[e.ID] = el
			d.EnteredEdges = append(d.EnteredEdges, e.ID)
		} else {
			d.UpdatedEdges = append(d.UpdatedEdges, e.ID)
		}
		el.FromID, el.ToID, el.ToRoute, el.Rate = e.FromID, e.ToID, e.ToRoute, e.Rate
		r.route(el)
	}
	for id := range r.edges {
		if !seen[id] {
			delete(r.edges, id)
			d.ExitedEdges = append(d.ExitedEdges, id)
		}
	}

	sort.Strings(d.ExitedNodes)
	sort.Strings(d.ExitedEdges)
	r.logger.Debug("render pass",
		"revision", d.Revision,
		"entered_nodes", len(d.EnteredNodes),
		"exited_nodes", len(d.ExitedNodes),
		"entered_edges", len(d.EnteredEdges),
		"exited_edges", len(d.ExitedEdges),
	)
	r.notify(d)
	return d
}

// UpdateLinks repositions the given nodes and recomputes the paths of their edges.
// With no arguments every edge is recomputed.
func (r *Renderer) UpdateLinks(nodeIDs ...string) Diff {
	r.revision = r.store.Revision()
	d := Diff{Revision: r.revision}

	if len(nodeIDs) == 0 {
		for _, el := range r.edges {
			r.route(el)
			d.UpdatedEdges = append(d.UpdatedEdges, el.ID)
		}
		sort.Strings(d.UpdatedEdges)
		r.notify(d)
		return d
	}

	touched := make(map[string]bool)
	for _, id := range nodeIDs {
		n, ok := r.store.Node(id)
		if !ok {
			continue
		}
		if el, ok := r.nodes[id]; ok {
			el.place(n)
			d.UpdatedNodes = append(d.UpdatedNodes, id)
		}
		for _, eid := range r.store.EdgesOf(id) {
			if touched[eid] {
				continue
			}
			touched[eid] = true
			if el, ok := r.edges[eid]; ok {
				r.route(el)
				d.UpdatedEdges = append(d.UpdatedEdges, eid)
			}
		}
	}
	r.notify(d)
	return d
}

func (r *Renderer) route(el *EdgeElement) {
	from, okFrom := r.store.Node(el.FromID)
	to, okTo := r.store.Node(el.ToID)
	if !okFrom || !okTo {
		// Unreachable while the store keeps its no-dangling invariant.
		r.logger.Warn("edge endpoint missing at render time", "edge_id", el.ID)
		return
	}
	el.Path = EdgePath(from, to, el.ToRoute)
	el.Length = el.Path.Length()
	el.Ping = el.Path.PointAtLength(el.Progress * el.Length)
}

// Tick advances every flow indicator by one animation frame.
func (r *Renderer) Tick() {
	for _, el := range r.edges {
		el.Progress = AdvanceProgress(el.Progress, el.Rate)
		el.Ping = el.Path.PointAtLength(el.Progress * el.Length)
	}
}

// RefreshLabels re-derives the rate label text of every edge.
func (r *Renderer) RefreshLabels() {
	for _, el := range r.edges {
		el.Label = FormatRate(el.Rate)
	}
}

func (r *Renderer) notify(d Diff) {
	if d.Empty() {
		return
	}
	for _, l := range r.listeners {
		l(d)
	}
}

// NodeAt returns the topmost block whose box contains p.
func (r *Renderer) NodeAt(p Point) (*NodeElement, bool) {
	ids := make([]string, 0, len(r.nodes))
	for id, el := range r.nodes {
		if el.Box.Contains(p) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, false
	}
	sort.Slice(ids, func(i, j int) bool { return lessNumeric(ids[i], ids[j]) })
	el := r.nodes[ids[len(ids)-1]].clone()
	return &el, true
}

// Scene returns an ordered copy of every element.
func (r *Renderer) Scene() Scene {
	s := Scene{Revision: r.revision}
	for _, el := range r.nodes {
		c := el.clone()
		if r.overlay != nil {
			c.Selected = r.overlay.Selected(el.ID)
		}
		s.Nodes = append(s.Nodes, c)
	}
	for _, el := range r.edges {
		c := *el
		c.Path = append(Path(nil), el.Path...)
		if r.overlay != nil {
			c.Selected = r.overlay.Selected(el.ID)
		}
		s.Edges = append(s.Edges, c)
	}
	sort.Slice(s.Nodes, func(i, j int) bool { return lessNumeric(s.Nodes[i].ID, s.Nodes[j].ID) })
	sort.Slice(s.Edges, func(i, j int) bool { return lessNumeric(s.Edges[i].ID, s.Edges[j].ID) })
	s.Preview = r.Preview()
	return s
}

// Preview returns the path of the connection being drawn, or nil.
func (r *Renderer) Preview() Path {
	if r.overlay == nil {
		return nil
	}
	origin, route, dir, pointer, ok := r.overlay.Pending()
	if !ok {
		return nil
	}
	n, ok := r.store.Node(origin)
	if !ok {
		return nil
	}
	return PreviewPath(n, route, dir, Point{X: pointer.X, Y: pointer.Y})
}

// Edge returns a copy of one edge element.
func (r *Renderer) Edge(id string) (EdgeElement, bool) {
	el, ok := r.edges[id]
	if !ok {
		return EdgeElement{}, false
	}
	c := *el
	c.Path = append(Path(nil), el.Path...)
	return c, true
}

// Node returns a copy of one node element.
func (r *Renderer) Node(id string) (NodeElement, bool) {
	el, ok := r.nodes[id]
	if !ok {
		return NodeElement{}, false
	}
	return el.clone(), true
}

func lessNumeric(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	if (aerr == nil) != (berr == nil) {
		return aerr == nil
	}
	return a < b
}
