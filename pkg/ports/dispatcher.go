package ports

import (
	"context"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Mutator sends change requests to the backend.
//
// Send is fire-and-forget: it must not block the caller on the network round
// trip. Success or failure is only ever observed through the push channel.
type Mutator interface {
	Send(ctx context.Context, m domain.Mutation)
}

// MutatorFunc adapts a function to the Mutator interface.
type MutatorFunc func(ctx context.Context, m domain.Mutation)

// Send calls f(ctx, m).
func (f MutatorFunc) Send(ctx context.Context, m domain.Mutation) {
	f(ctx, m)
}

// Measurer computes the label box of a block type when a node is created.
type Measurer interface {
	Measure(label string) domain.Size
}
