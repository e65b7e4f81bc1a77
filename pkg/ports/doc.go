/*
Package ports defines the driven ports (interfaces) of the editor core.

These interfaces decouple the store, reconciler and controller from transport
and storage implementations.

# Key Interfaces

  - Mutator: fire-and-forget change requests to the backend.
  - LogSink: the capped, append-only log panel (memory or Redis).
  - Measurer: label measurement used when a block is first created.
*/
package ports
