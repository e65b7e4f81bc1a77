/*
Package tapestry is a live graph editor core for a streaming dataflow backend.

It keeps a local copy of the backend graph (blocks and the connections
between them) in sync over two push channels, lets a user reshape it through
gestures, and projects it into a renderable scene.

# Concept

The backend is the source of truth. Gestures never create or delete anything
locally: they send a request and wait for the push event that confirms it.
The only optimistic change is a block move, which is applied immediately so
dragging stays smooth and is later overwritten by the echoed position.

When the state channel drops, the local graph is discarded and rebuilt from a
full state request once the channel is back. Nothing is replayed.

# Components

  - graph: identifier-keyed store of blocks and connections.
  - reconciler: applies push events to the store.
  - interaction: gesture state machine (connect, drag, select, delete).
  - render: keyed scene projection, edge routing and flow animation.
  - adapters/backend, adapters/ws: the transport.

All of them are owned by a single event loop, so none of them needs locking.

# Usage

	ed, err := tapestry.New(ctx, "http://localhost:7070",
		tapestry.WithLogger(logging.New(slog.LevelInfo)),
	)
	if err != nil {
		log.Fatal(err)
	}
	go ed.Run(ctx)

	scene, err := ed.Scene(ctx)
*/
package tapestry
