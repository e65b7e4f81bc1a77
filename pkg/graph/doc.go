/*
Package graph holds the Graph Store: the single source of truth for rendering.

Nodes and edges are kept in identifier-keyed maps. The store enforces the
no-dangling-edge invariant itself: edges can only be inserted between present
nodes and deleting a node removes every edge that touches it.

Writers are the reconciler (server-confirmed changes) and the interaction
controller (optimistic position changes). Everything else reads copies.
*/
package graph
