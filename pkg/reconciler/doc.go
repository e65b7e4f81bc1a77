/*
Package reconciler applies push events from the backend state channel to the graph store.

Payloads arrive undecoded and are discriminated by shape: a "Type" key marks a
block, anything else is a connection. Only position-bearing block updates and
rate-bearing connection updates are recognised. Deletes are idempotent and a
block delete takes its connections with it.
*/
package reconciler
