package reconciler_test

import (
	"fmt"
	"log"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/graph"
	"github.com/aretw0/tapestry/pkg/reconciler"
)

// Example shows a state burst followed by a cascading delete. Numeric ids are
// accepted and normalized to strings.
func Example() {
	library := domain.Library{
		"ticker": {OutRoutes: []string{"out"}},
		"tolog":  {InRoutes: []string{"in"}},
	}
	store := graph.NewStore()
	rec := reconciler.New(store, library)

	err := rec.ApplyAll([]domain.Event{
		{Kind: domain.EventCreate, Data: map[string]any{"Id": 1, "Type": "ticker", "Position": map[string]any{"X": 10, "Y": 10}}},
		{Kind: domain.EventCreate, Data: map[string]any{"Id": 2, "Type": "tolog", "Position": map[string]any{"X": 10, "Y": 200}}},
		{Kind: domain.EventCreate, Data: map[string]any{"Id": 3, "FromId": 1, "ToId": 2, "ToRoute": "in"}},
		{Kind: domain.EventUpdate, Data: map[string]any{"Id": 3, "Rate": 4.2}},
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, e := range store.Edges() {
		fmt.Printf("%s: %s -> %s (%s) rate %.1f\n", e.ID, e.FromID, e.ToID, e.ToRoute, e.Rate)
	}

	_ = rec.Apply(domain.Event{Kind: domain.EventDelete, Data: map[string]any{"Id": "1"}})
	nodes, edges := store.Len()
	fmt.Println("after delete:", nodes, "blocks,", edges, "connections")

	// Output:
	// 3: 1 -> 2 (in) rate 4.2
	// after delete: 1 blocks, 0 connections
}
