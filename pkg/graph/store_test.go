package graph_test

import (
	"math/rand"
	"sort"
	"strconv"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, typ string, x, y float64) *domain.Node {
	return &domain.Node{ID: id, Type: typ, Position: domain.Position{X: x, Y: y}}
}

func TestStore_UpsertDeduplicates(t *testing.T) {
	s := graph.NewStore()

	created, err := s.UpsertNode(node("1", "ticker", 10, 10))
	require.NoError(t, err)
	assert.True(t, created)

	// Authoritative CREATE for the same identifier merges instead of duplicating.
	created, err = s.UpsertNode(node("1", "ticker", 40, 50))
	require.NoError(t, err)
	assert.False(t, created)

	n, e := s.Len()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, e)

	got, ok := s.Node("1")
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 40, Y: 50}, got.Position)
}

func TestStore_TypeIsFixedAtCreation(t *testing.T) {
	s := graph.NewStore()
	_, err := s.UpsertNode(node("1", "ticker", 10, 10))
	require.NoError(t, err)
	rev := s.Revision()

	_, err = s.UpsertNode(node("1", "map", 40, 50))
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
	assert.Equal(t, rev, s.Revision())

	got, _ := s.Node("1")
	assert.Equal(t, "ticker", got.Type)
	assert.Equal(t, domain.Position{X: 10, Y: 10}, got.Position)
}

func TestStore_EdgeRequiresEndpoints(t *testing.T) {
	s := graph.NewStore()
	_, _ = s.UpsertNode(node("1", "ticker", 0, 0))

	_, err := s.UpsertEdge(&domain.Edge{ID: "10", FromID: "1", ToID: "2", ToRoute: "in"})
	assert.ErrorIs(t, err, domain.ErrDanglingEdge)
	assert.False(t, s.HasEdge("10"))
}

func TestStore_IdentifierCollision(t *testing.T) {
	s := graph.NewStore()
	_, _ = s.UpsertNode(node("1", "ticker", 0, 0))
	_, _ = s.UpsertNode(node("2", "map", 0, 0))

	_, err := s.UpsertEdge(&domain.Edge{ID: "1", FromID: "1", ToID: "2"})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
}

func TestStore_DeleteNodeCascades(t *testing.T) {
	s := graph.NewStore()
	_, _ = s.UpsertNode(node("1", "ticker", 0, 0))
	_, _ = s.UpsertNode(node("2", "map", 0, 0))
	_, _ = s.UpsertNode(node("3", "tolog", 0, 0))
	_, err := s.UpsertEdge(&domain.Edge{ID: "10", FromID: "1", ToID: "2", ToRoute: "in"})
	require.NoError(t, err)
	_, err = s.UpsertEdge(&domain.Edge{ID: "11", FromID: "2", ToID: "3", ToRoute: "in"})
	require.NoError(t, err)

	removed, ok := s.DeleteNode("1")
	assert.True(t, ok)
	assert.Equal(t, []string{"10"}, removed)
	assert.False(t, s.HasEdge("10"))
	assert.True(t, s.HasEdge("11"))

	for _, e := range s.Edges() {
		assert.True(t, s.HasNode(e.FromID))
		assert.True(t, s.HasNode(e.ToID))
	}
}

func TestStore_DeleteUnknownIsNoop(t *testing.T) {
	s := graph.NewStore()
	rev := s.Revision()

	assert.False(t, s.Delete("nope"))
	_, ok := s.DeleteNode("nope")
	assert.False(t, ok)
	assert.False(t, s.DeleteEdge("nope"))
	assert.Equal(t, rev, s.Revision(), "no-op deletes must not notify listeners")
}

func TestStore_MoveAndRate(t *testing.T) {
	s := graph.NewStore()
	_, _ = s.UpsertNode(&domain.Node{ID: "1", Type: "ticker", Size: domain.Size{Width: 60, Height: 20}})
	_, _ = s.UpsertNode(node("2", "map", 0, 0))
	_, _ = s.UpsertEdge(&domain.Edge{ID: "10", FromID: "1", ToID: "2", ToRoute: "in"})

	require.NoError(t, s.MoveNode("1", domain.Position{X: 5, Y: 6}))
	n, _ := s.Node("1")
	assert.Equal(t, domain.Position{X: 5, Y: 6}, n.Position)
	assert.Equal(t, domain.Size{Width: 60, Height: 20}, n.Size, "size must survive a move")

	require.NoError(t, s.SetRate("10", 4.2))
	e, _ := s.Edge("10")
	assert.InDelta(t, 4.2, e.Rate, 1e-9)

	// Rate survives an authoritative re-CREATE of the same edge.
	_, err := s.UpsertEdge(&domain.Edge{ID: "10", FromID: "1", ToID: "2", ToRoute: "in"})
	require.NoError(t, err)
	e, _ = s.Edge("10")
	assert.InDelta(t, 4.2, e.Rate, 1e-9)

	assert.ErrorIs(t, s.MoveNode("9", domain.Position{}), domain.ErrUnknownNode)
	assert.ErrorIs(t, s.SetRate("9", 1), domain.ErrUnknownEdge)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := graph.NewStore()
	_, _ = s.UpsertNode(node("1", "ticker", 1, 1))

	n, _ := s.Node("1")
	n.Position.X = 999

	again, _ := s.Node("1")
	assert.Equal(t, 1.0, again.Position.X)
}

func TestStore_ListenerKinds(t *testing.T) {
	s := graph.NewStore()
	var kinds []graph.ChangeKind
	s.Subscribe(func(c graph.Change) { kinds = append(kinds, c.Kind) })

	_, _ = s.UpsertNode(node("1", "ticker", 0, 0))
	_, _ = s.UpsertNode(node("2", "map", 0, 0))
	_, _ = s.UpsertEdge(&domain.Edge{ID: "10", FromID: "1", ToID: "2"})
	_ = s.MoveNode("1", domain.Position{X: 1})
	_ = s.SetRate("10", 2)
	s.Reset()

	assert.Equal(t, []graph.ChangeKind{
		graph.ChangeTopology,
		graph.ChangeTopology,
		graph.ChangeTopology,
		graph.ChangeGeometry,
		graph.ChangeRate,
		graph.ChangeReset,
	}, kinds)

	n, e := s.Len()
	assert.Zero(t, n)
	assert.Zero(t, e)
}

func TestStore_OrderedSnapshots(t *testing.T) {
	s := graph.NewStore()
	for _, id := range []string{"10", "2", "b", "1", "a"} {
		_, _ = s.UpsertNode(node(id, "ticker", 0, 0))
	}
	var ids []string
	for _, n := range s.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"1", "2", "10", "a", "b"}, ids)
}

// Any sequence of creates and deletes leaves exactly the net set of identifiers.
func TestStore_NetEffectOfCreateDelete(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		s := graph.NewStore()
		want := map[string]bool{}

		for step := 0; step < 200; step++ {
			id := strconv.Itoa(rng.Intn(20))
			if rng.Intn(3) == 0 {
				s.Delete(id)
				delete(want, id)
				continue
			}
			_, err := s.UpsertNode(node(id, "ticker", float64(step), 0))
			require.NoError(t, err)
			want[id] = true
		}

		var wantIDs, gotIDs []string
		for id := range want {
			wantIDs = append(wantIDs, id)
		}
		for _, n := range s.Nodes() {
			gotIDs = append(gotIDs, n.ID)
		}
		sort.Strings(wantIDs)
		sort.Strings(gotIDs)
		assert.Equal(t, wantIDs, gotIDs, "round %d", round)
	}
}
