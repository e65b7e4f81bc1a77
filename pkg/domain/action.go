package domain

import "fmt"

// MutationKind names a request sent to the backend.
type MutationKind string

const (
	MutationCreateBlock      MutationKind = "CREATE_BLOCK"
	MutationMoveBlock        MutationKind = "MOVE_BLOCK"
	MutationDeleteBlock      MutationKind = "DELETE_BLOCK"
	MutationCreateConnection MutationKind = "CREATE_CONNECTION"
	MutationDeleteConnection MutationKind = "DELETE_CONNECTION"
)

// Mutation is a fire-and-forget change request.
// The backend confirms (or not) only through a later push event.
type Mutation struct {
	Kind MutationKind
	// ID is the target block or connection, empty for creations.
	ID   string
	Body any
}

// CreateBlockRequest is the body of POST /blocks.
type CreateBlockRequest struct {
	Type     string   `json:"Type"`
	Position Position `json:"Position"`
}

// ConnectRequest is the body of POST /connections.
type ConnectRequest struct {
	FromID  string `json:"FromId"`
	ToID    string `json:"ToId"`
	ToRoute string `json:"ToRoute"`
}

// CreateBlock builds the request for a new block.
func CreateBlock(blockType string, pos Position) Mutation {
	return Mutation{Kind: MutationCreateBlock, Body: CreateBlockRequest{Type: blockType, Position: pos}}
}

// MoveBlock builds the position update for a block.
func MoveBlock(id string, pos Position) Mutation {
	return Mutation{Kind: MutationMoveBlock, ID: id, Body: pos}
}

// DeleteBlock builds the removal request for a block.
func DeleteBlock(id string) Mutation {
	return Mutation{Kind: MutationDeleteBlock, ID: id}
}

// Connect builds the request for a new connection.
func Connect(fromID, toID, toRoute string) Mutation {
	return Mutation{Kind: MutationCreateConnection, Body: ConnectRequest{FromID: fromID, ToID: toID, ToRoute: toRoute}}
}

// DeleteConnection builds the removal request for a connection.
func DeleteConnection(id string) Mutation {
	return Mutation{Kind: MutationDeleteConnection, ID: id}
}

// Endpoint returns the HTTP method and path of the mutation.
func (m Mutation) Endpoint() (method, path string, err error) {
	switch m.Kind {
	case MutationCreateBlock:
		return "POST", "/blocks", nil
	case MutationMoveBlock:
		return "PUT", "/blocks/" + m.ID, nil
	case MutationDeleteBlock:
		return "DELETE", "/blocks/" + m.ID, nil
	case MutationCreateConnection:
		return "POST", "/connections", nil
	case MutationDeleteConnection:
		return "DELETE", "/connections/" + m.ID, nil
	}
	return "", "", fmt.Errorf("unsupported mutation %q", m.Kind)
}
