package graph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/aretw0/tapestry/pkg/domain"
)

// ChangeKind classifies a store mutation so listeners can pick the cheapest refresh.
type ChangeKind int

const (
	// ChangeTopology means nodes or edges appeared or vanished.
	ChangeTopology ChangeKind = iota
	// ChangeGeometry means node positions moved; only dependent edge paths need recomputing.
	ChangeGeometry
	// ChangeRate means an edge rate changed; topology and positions are untouched.
	ChangeRate
	// ChangeReset means the store was emptied.
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeTopology:
		return "topology"
	case ChangeGeometry:
		return "geometry"
	case ChangeRate:
		return "rate"
	case ChangeReset:
		return "reset"
	}
	return "unknown"
}

// Change describes one completed mutation.
type Change struct {
	Kind     ChangeKind
	Revision uint64
	NodeIDs  []string
	EdgeIDs  []string
}

// Listener is notified after every mutation, once the store is consistent again.
type Listener func(Change)

// Store is the canonical container of nodes and edges, keyed by identifier.
//
// Store is not safe for concurrent use. It is owned by the editor event loop
// and every mutation completes before listeners run, so no reader ever sees
// a half-applied change.
type Store struct {
	nodes     map[string]*domain.Node
	edges     map[string]*domain.Edge
	revision  uint64
	listeners []Listener
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]*domain.Node),
		edges: make(map[string]*domain.Edge),
	}
}

// Subscribe registers a listener for subsequent mutations.
func (s *Store) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Store) emit(kind ChangeKind, nodeIDs, edgeIDs []string) {
	s.revision++
	c := Change{Kind: kind, Revision: s.revision, NodeIDs: nodeIDs, EdgeIDs: edgeIDs}
	for _, l := range s.listeners {
		l(c)
	}
}

// Revision increases by one on every mutation.
func (s *Store) Revision() uint64 {
	return s.revision
}

// UpsertNode inserts a node, or merges it into the existing entry with the same identifier.
// A merge only moves the node: type, TypeInfo and Size are fixed at creation,
// and a CREATE carrying a different type for a known identifier is rejected.
// It reports whether a new entry was created.
func (s *Store) UpsertNode(n *domain.Node) (bool, error) {
	if n == nil || n.ID == "" {
		return false, fmt.Errorf("upsert node: %w", domain.ErrMalformedPayload)
	}
	if _, ok := s.edges[n.ID]; ok {
		return false, fmt.Errorf("upsert node %s: %w", n.ID, domain.ErrDuplicateID)
	}

	if existing, ok := s.nodes[n.ID]; ok {
		if existing.Type != n.Type {
			return false, fmt.Errorf("upsert node %s: type %q is already %q: %w", n.ID, n.Type, existing.Type, domain.ErrDuplicateID)
		}
		existing.Position = n.Position
		s.emit(ChangeGeometry, []string{n.ID}, nil)
		return false, nil
	}

	s.nodes[n.ID] = n.Clone()
	s.emit(ChangeTopology, []string{n.ID}, nil)
	return true, nil
}

// UpsertEdge inserts an edge or replaces the topology of the existing entry.
// Both endpoints must be present. The live rate of an existing edge is preserved.
func (s *Store) UpsertEdge(e *domain.Edge) (bool, error) {
	if e == nil || e.ID == "" {
		return false, fmt.Errorf("upsert edge: %w", domain.ErrMalformedPayload)
	}
	if _, ok := s.nodes[e.ID]; ok {
		return false, fmt.Errorf("upsert edge %s: %w", e.ID, domain.ErrDuplicateID)
	}
	if _, ok := s.nodes[e.FromID]; !ok {
		return false, fmt.Errorf("upsert edge %s: from %s: %w", e.ID, e.FromID, domain.ErrDanglingEdge)
	}
	if _, ok := s.nodes[e.ToID]; !ok {
		return false, fmt.Errorf("upsert edge %s: to %s: %w", e.ID, e.ToID, domain.ErrDanglingEdge)
	}

	if existing, ok := s.edges[e.ID]; ok {
		existing.FromID = e.FromID
		existing.ToID = e.ToID
		existing.ToRoute = e.ToRoute
		s.emit(ChangeTopology, nil, []string{e.ID})
		return false, nil
	}

	s.edges[e.ID] = e.Clone()
	s.emit(ChangeTopology, nil, []string{e.ID})
	return true, nil
}

// MoveNode replaces the position of a node. Size and type are left untouched.
func (s *Store) MoveNode(id string, pos domain.Position) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("move node %s: %w", id, domain.ErrUnknownNode)
	}
	n.Position = pos
	s.emit(ChangeGeometry, []string{id}, nil)
	return nil
}

// SetRate replaces the live rate metric of an edge.
func (s *Store) SetRate(id string, rate float64) error {
	e, ok := s.edges[id]
	if !ok {
		return fmt.Errorf("set rate %s: %w", id, domain.ErrUnknownEdge)
	}
	e.Rate = rate
	s.emit(ChangeRate, nil, []string{id})
	return nil
}

// DeleteNode removes a node and every edge that references it.
// Deleting an unknown identifier is a no-op and reports false.
func (s *Store) DeleteNode(id string) (removedEdges []string, ok bool) {
	if _, ok := s.nodes[id]; !ok {
		return nil, false
	}
	for eid, e := range s.edges {
		if e.Touches(id) {
			delete(s.edges, eid)
			removedEdges = append(removedEdges, eid)
		}
	}
	delete(s.nodes, id)
	sortIDs(removedEdges)
	s.emit(ChangeTopology, []string{id}, removedEdges)
	return removedEdges, true
}

// DeleteEdge removes an edge. Deleting an unknown identifier is a no-op and reports false.
func (s *Store) DeleteEdge(id string) bool {
	if _, ok := s.edges[id]; !ok {
		return false
	}
	delete(s.edges, id)
	s.emit(ChangeTopology, nil, []string{id})
	return true
}

// Delete removes the node or edge with the given identifier, whichever collection holds it.
func (s *Store) Delete(id string) bool {
	if _, ok := s.nodes[id]; ok {
		_, removed := s.DeleteNode(id)
		return removed
	}
	return s.DeleteEdge(id)
}

// Reset empties both collections. Used when the push channel is lost.
func (s *Store) Reset() {
	s.nodes = make(map[string]*domain.Node)
	s.edges = make(map[string]*domain.Edge)
	s.emit(ChangeReset, nil, nil)
}

// Node returns a copy of the node with the given identifier.
func (s *Store) Node(id string) (*domain.Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Edge returns a copy of the edge with the given identifier.
func (s *Store) Edge(id string) (*domain.Edge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// HasNode reports whether a node is present.
func (s *Store) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// HasEdge reports whether an edge is present.
func (s *Store) HasEdge(id string) bool {
	_, ok := s.edges[id]
	return ok
}

// Len returns the number of nodes and edges.
func (s *Store) Len() (nodes, edges int) {
	return len(s.nodes), len(s.edges)
}

// Nodes returns copies of all nodes ordered by identifier.
func (s *Store) Nodes() []*domain.Node {
	out := make([]*domain.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// Edges returns copies of all edges ordered by identifier.
func (s *Store) Edges() []*domain.Edge {
	out := make([]*domain.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// EdgesOf returns the identifiers of edges that start or end at nodeID.
func (s *Store) EdgesOf(nodeID string) []string {
	var ids []string
	for id, e := range s.edges {
		if e.Touches(nodeID) {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
}

// lessID orders numeric identifiers numerically ("2" < "10") and everything else lexically.
func lessID(a, b string) bool {
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
