/*
Package render projects the graph store into visual primitives.

Elements are keyed by entity identifier: a render pass creates elements for
new nodes and edges, updates the ones that changed and drops the ones that
vanished. Edge geometry is a 4-point routed path recomputed only when an
endpoint moves. Flow indicators and rate labels run on their own timers and
never read or write the store.
*/
package render
