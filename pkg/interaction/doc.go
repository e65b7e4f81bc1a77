// Package interaction implements the editor gesture state machine:
// drag-to-move, click-to-connect, multi-select and delete.
package interaction
