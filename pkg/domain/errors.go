package domain

import "errors"

var (
	// ErrUnknownNode is returned when an identifier does not match any block in the store.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownEdge is returned when an identifier does not match any connection in the store.
	ErrUnknownEdge = errors.New("unknown edge")

	// ErrUnknownID is returned when an identifier matches neither a block nor a connection.
	ErrUnknownID = errors.New("unknown identifier")

	// ErrUnknownType is returned when a block type is missing from the catalog.
	ErrUnknownType = errors.New("unknown block type")

	// ErrDanglingEdge is returned when a connection references a block that is not present.
	ErrDanglingEdge = errors.New("edge endpoint not present")

	// ErrDuplicateID is returned when an identifier is already used by the other collection.
	ErrDuplicateID = errors.New("identifier already in use")

	// ErrMalformedPayload is returned when an event payload cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrSameDirection is returned when a connection gesture ends on a port of the origin's direction.
	ErrSameDirection = errors.New("ports have the same direction")

	// ErrSelfConnection is returned when a connection gesture ends on the origin block.
	ErrSelfConnection = errors.New("cannot connect a block to itself")

	// ErrQueryPort is returned when a connection gesture involves a query port.
	ErrQueryPort = errors.New("query ports cannot be connected")

	// ErrUnknownRoute is returned when a port name is not part of the block type layout.
	ErrUnknownRoute = errors.New("unknown port")

	// ErrNotConnecting is returned when a gesture requires a connection in progress.
	ErrNotConnecting = errors.New("no connection in progress")
)
