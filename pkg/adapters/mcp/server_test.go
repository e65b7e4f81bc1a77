package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/testutils"
	"github.com/aretw0/tapestry/pkg/adapters/backend"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEditor records requests instead of sending them.
type MockEditor struct {
	Nodes []*domain.Node
	Edges []*domain.Edge
	Sent  []domain.Mutation
	Err   error
}

func (m *MockEditor) Info() backend.Info {
	return backend.Info{Library: testutils.DefaultLibrary(), Version: "0.2.8"}
}
func (m *MockEditor) Connected() bool { return true }
func (m *MockEditor) Snapshot(ctx context.Context) (tapestry.Snapshot, error) {
	return tapestry.Snapshot{Revision: 7, Nodes: m.Nodes, Edges: m.Edges}, nil
}
func (m *MockEditor) Logs(ctx context.Context) ([]domain.LogEntry, error) {
	return []domain.LogEntry{{Type: "INFO", Data: "hello", ID: "1"}}, nil
}
func (m *MockEditor) record(mu domain.Mutation) (domain.Mutation, error) {
	if m.Err != nil {
		return domain.Mutation{}, m.Err
	}
	m.Sent = append(m.Sent, mu)
	return mu, nil
}
func (m *MockEditor) CreateBlock(ctx context.Context, blockType string, pos domain.Position) (domain.Mutation, error) {
	return m.record(domain.Mutation{Kind: domain.MutationCreateBlock, Body: domain.CreateBlockRequest{Type: blockType, Position: pos}})
}
func (m *MockEditor) MoveBlock(ctx context.Context, id string, pos domain.Position) (domain.Mutation, error) {
	return m.record(domain.Mutation{Kind: domain.MutationMoveBlock, ID: id, Body: pos})
}
func (m *MockEditor) Connect(ctx context.Context, fromID, fromRoute, toID, toRoute string) (domain.Mutation, error) {
	return m.record(domain.Mutation{Kind: domain.MutationCreateConnection, Body: domain.ConnectRequest{FromID: fromID, ToID: toID, ToRoute: toRoute}})
}
func (m *MockEditor) Delete(ctx context.Context, id string) (domain.Mutation, error) {
	return m.record(domain.Mutation{Kind: domain.MutationDeleteBlock, ID: id})
}

func newMock() *MockEditor {
	lib := testutils.DefaultLibrary()
	return &MockEditor{
		Nodes: []*domain.Node{
			{ID: "1", Type: "ticker", TypeInfo: lib["ticker"]},
			{ID: "2", Type: "map", TypeInfo: lib["map"]},
		},
		Edges: []*domain.Edge{{ID: "10", FromID: "1", ToID: "2", ToRoute: "in", Rate: 2}},
	}
}

func TestTools_ListGraph(t *testing.T) {
	ed := newMock()
	s := NewServer(ed, nil)

	resp, err := s.handleListGraph(context.Background(), mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 7, resp.Revision)
	assert.True(t, resp.Connected)
	assert.Len(t, resp.Nodes, 2)
	assert.Len(t, resp.Edges, 1)
}

func TestTools_Mutations(t *testing.T) {
	ed := newMock()
	s := NewServer(ed, nil)
	ctx := context.Background()

	resp, err := s.handleCreateBlock(ctx, mcp.CallToolRequest{}, CreateBlockArgs{Type: "tolog", X: 5, Y: 6})
	require.NoError(t, err)
	assert.Equal(t, "CREATE_BLOCK", resp.Kind)

	resp, err = s.handleMoveBlock(ctx, mcp.CallToolRequest{}, MoveBlockArgs{ID: "2", X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, "2", resp.ID)

	_, err = s.handleConnect(ctx, mcp.CallToolRequest{}, ConnectArgs{FromID: "1", ToID: "2", ToRoute: "rule"})
	require.NoError(t, err)

	_, err = s.handleDelete(ctx, mcp.CallToolRequest{}, DeleteArgs{ID: "10"})
	require.NoError(t, err)

	require.Len(t, ed.Sent, 4)
	assert.Equal(t, domain.MutationCreateConnection, ed.Sent[2].Kind)

	ed.Err = domain.ErrUnknownType
	_, err = s.handleCreateBlock(ctx, mcp.CallToolRequest{}, CreateBlockArgs{Type: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownType)
}

func TestFirstOutRoute(t *testing.T) {
	ed := newMock()
	assert.Equal(t, "out", firstOutRoute(ed.Nodes, "1"))
	assert.Equal(t, "", firstOutRoute(ed.Nodes, "404"))
}

func TestServer_ToolsList(t *testing.T) {
	s := NewServer(newMock(), nil)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	out := s.MCPServer().HandleMessage(context.Background(), msg)
	data, err := json.Marshal(out)
	require.NoError(t, err)

	for _, name := range []string{"list_graph", "create_block", "move_block", "connect", "delete", "get_logs"} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
}

func TestServer_GraphResource(t *testing.T) {
	s := NewServer(newMock(), nil)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"tapestry://graph"}}`)
	out := s.MCPServer().HandleMessage(context.Background(), msg)
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "graph TD")
	assert.Contains(t, string(data), "in @ 2/s")
}
