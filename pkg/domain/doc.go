/*
Package domain contains the core models of the graph editor.

It is kept free of I/O so every other package (store, reconciler, controller,
renderer, adapters) can share the same vocabulary.

# Key Entities

  - Node: a visual instance of a block, with its catalog TypeDescriptor.
  - Edge: a connection from one block's output to another block's input route.
  - Library: the block-type catalog fetched from the backend at startup.
  - Event: a push notification from the backend state channel.
  - Mutation: a fire-and-forget change request sent to the backend.
*/
package domain
