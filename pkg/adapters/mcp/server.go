package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/logging"
	presentation "github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/pkg/adapters/backend"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MutationResponse reports the request that was sent to the backend.
// The graph changes only when the backend pushes the resulting event.
type MutationResponse struct {
	Kind string `json:"kind" jsonschema_description:"The mutation that was sent"`
	ID   string `json:"id,omitempty" jsonschema_description:"Target block or connection id"`
	Body any    `json:"body,omitempty" jsonschema_description:"Request body sent to the backend"`
}

// GraphResponse is the current mirrored graph.
type GraphResponse struct {
	Revision  uint64         `json:"revision" jsonschema_description:"Store revision"`
	Connected bool           `json:"connected" jsonschema_description:"Whether the state channel is up"`
	Nodes     []*domain.Node `json:"nodes" jsonschema_description:"Blocks"`
	Edges     []*domain.Edge `json:"edges" jsonschema_description:"Connections with their rates"`
}

// CreateBlockArgs are the create_block tool arguments.
type CreateBlockArgs struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// MoveBlockArgs are the move_block tool arguments.
type MoveBlockArgs struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// ConnectArgs are the connect tool arguments.
type ConnectArgs struct {
	FromID    string `json:"from_id"`
	FromRoute string `json:"from_route"`
	ToID      string `json:"to_id"`
	ToRoute   string `json:"to_route"`
}

// DeleteArgs are the delete tool arguments.
type DeleteArgs struct {
	ID string `json:"id"`
}

// Editor defines what the MCP server needs from the live editor.
type Editor interface {
	Info() backend.Info
	Connected() bool
	Snapshot(ctx context.Context) (tapestry.Snapshot, error)
	Logs(ctx context.Context) ([]domain.LogEntry, error)
	CreateBlock(ctx context.Context, blockType string, pos domain.Position) (domain.Mutation, error)
	MoveBlock(ctx context.Context, id string, pos domain.Position) (domain.Mutation, error)
	Connect(ctx context.Context, fromID, fromRoute, toID, toRoute string) (domain.Mutation, error)
	Delete(ctx context.Context, id string) (domain.Mutation, error)
}

var _ Editor = (*tapestry.Editor)(nil)

// Server wraps the editor and exposes it as an MCP Server.
type Server struct {
	editor    Editor
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(editor Editor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		editor: editor,
		logger: logger,
		mcpServer: server.NewMCPServer("tapestry-mcp", strings.TrimSpace(tapestry.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on addr using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_graph",
		mcp.WithDescription("List the blocks and connections currently mirrored from Streamtools, with live rates."),
		mcp.WithOutputSchema[GraphResponse](),
	), mcp.NewStructuredToolHandler(s.handleListGraph))

	s.mcpServer.AddTool(mcp.NewTool("create_block",
		mcp.WithDescription("Request a new block. It appears once the backend confirms it."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Block type from the library")),
		mcp.WithNumber("x", mcp.Description("Canvas X coordinate")),
		mcp.WithNumber("y", mcp.Description("Canvas Y coordinate")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateBlock))

	s.mcpServer.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Move a block and request the new position."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block id")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Canvas X coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Canvas Y coordinate")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleMoveBlock))

	s.mcpServer.AddTool(mcp.NewTool("connect",
		mcp.WithDescription("Request a connection from an out port to an in port."),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Source block id")),
		mcp.WithString("from_route", mcp.Description("Source out port (defaults to the first one)")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Destination block id")),
		mcp.WithString("to_route", mcp.Required(), mcp.Description("Destination in port")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleConnect))

	s.mcpServer.AddTool(mcp.NewTool("delete",
		mcp.WithDescription("Request removal of a block or a connection."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block or connection id")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleDelete))

	s.mcpServer.AddTool(mcp.NewTool("get_logs",
		mcp.WithDescription("Get the most recent log panel entries."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logs, err := s.editor.Logs(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("logs failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(logs)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleListGraph(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (GraphResponse, error) {
	snap, err := s.editor.Snapshot(ctx)
	if err != nil {
		return GraphResponse{}, fmt.Errorf("snapshot failed: %w", err)
	}
	return GraphResponse{
		Revision:  snap.Revision,
		Connected: s.editor.Connected(),
		Nodes:     snap.Nodes,
		Edges:     snap.Edges,
	}, nil
}

func (s *Server) handleCreateBlock(ctx context.Context, request mcp.CallToolRequest, args CreateBlockArgs) (MutationResponse, error) {
	m, err := s.editor.CreateBlock(ctx, args.Type, domain.Position{X: args.X, Y: args.Y})
	return s.mutation("create_block", m, err)
}

func (s *Server) handleMoveBlock(ctx context.Context, request mcp.CallToolRequest, args MoveBlockArgs) (MutationResponse, error) {
	m, err := s.editor.MoveBlock(ctx, args.ID, domain.Position{X: args.X, Y: args.Y})
	return s.mutation("move_block", m, err)
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest, args ConnectArgs) (MutationResponse, error) {
	route := args.FromRoute
	if route == "" {
		snap, err := s.editor.Snapshot(ctx)
		if err != nil {
			return MutationResponse{}, err
		}
		route = firstOutRoute(snap.Nodes, args.FromID)
	}
	m, err := s.editor.Connect(ctx, args.FromID, route, args.ToID, args.ToRoute)
	return s.mutation("connect", m, err)
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest, args DeleteArgs) (MutationResponse, error) {
	m, err := s.editor.Delete(ctx, args.ID)
	return s.mutation("delete", m, err)
}

func (s *Server) mutation(tool string, m domain.Mutation, err error) (MutationResponse, error) {
	if err != nil {
		s.logger.Warn("MCP tool rejected", "tool", tool, "err", err)
		return MutationResponse{}, fmt.Errorf("%s failed: %w", tool, err)
	}
	return MutationResponse{Kind: string(m.Kind), ID: m.ID, Body: m.Body}, nil
}

func firstOutRoute(nodes []*domain.Node, id string) string {
	for _, n := range nodes {
		if n.ID == id {
			if routes := n.TypeInfo.Routes(domain.PortOut); len(routes) > 0 {
				return routes[0]
			}
		}
	}
	return ""
}

func (s *Server) registerResources() {
	// EXPOSE: tapestry://graph
	s.mcpServer.AddResource(mcp.NewResource("tapestry://graph", "Current Graph (Mermaid)",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snap, err := s.editor.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "tapestry://graph",
				MIMEType: "text/plain",
				Text:     presentation.GenerateMermaid(snap.Nodes, snap.Edges, nil),
			},
		}, nil
	})

	// EXPOSE: tapestry://library
	s.mcpServer.AddResource(mcp.NewResource("tapestry://library", "Block Type Library",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(s.editor.Info().Library)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "tapestry://library",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
