/*
Package observability provides the Prometheus collectors of the editor.

Counters cover push events (applied and absorbed), mutation requests, reconnects
and rejected gestures; gauges track the size of the graph store.
*/
package observability
