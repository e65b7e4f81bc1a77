package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/eventloop"
	"github.com/aretw0/tapestry/internal/logging"
	presentation "github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/pkg/adapters/backend"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/interaction"
	"github.com/aretw0/tapestry/pkg/render"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Editor is the part of tapestry.Editor the HTTP surface drives.
type Editor interface {
	Info() backend.Info
	Connected() bool
	OnDiff(fn render.DiffListener)
	Do(ctx context.Context, fn func(*tapestry.Canvas) error) error
	Snapshot(ctx context.Context) (tapestry.Snapshot, error)
	Scene(ctx context.Context) (render.Scene, error)
	Interaction(ctx context.Context) (interaction.State, error)
	Logs(ctx context.Context) ([]domain.LogEntry, error)
	CreateBlock(ctx context.Context, blockType string, pos domain.Position) (domain.Mutation, error)
	MoveBlock(ctx context.Context, id string, pos domain.Position) (domain.Mutation, error)
	Connect(ctx context.Context, fromID, fromRoute, toID, toRoute string) (domain.Mutation, error)
	Delete(ctx context.Context, id string) (domain.Mutation, error)
}

var _ Editor = (*tapestry.Editor)(nil)

// Server serves the editor over HTTP.
type Server struct {
	Editor  Editor
	Streams *StreamManager
	spec    *openapi3.T
	logger  *slog.Logger
	gather  prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gather = g
	}
}

// NewHandler creates the HTTP handler for an editor.
// It subscribes to render diffs, so it must be created before the editor runs.
func NewHandler(ctx context.Context, editor Editor, opts ...Option) (http.Handler, error) {
	s := &Server{
		Editor: editor,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	spec, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	s.spec = spec
	router, err := newRouter(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi router: %w", err)
	}

	editor.OnDiff(func(d render.Diff) {
		if s.Streams.Len() == 0 {
			return
		}
		if data, err := json.Marshal(d); err == nil {
			s.Streams.Broadcast(string(data))
		}
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(RawSpec())
	})
	if s.gather != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(validateRequests(router))

		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
		r.Get("/library", s.GetLibrary)
		r.Get("/graph", s.GetGraph)
		r.Get("/scene", s.GetScene)
		r.Get("/scene.svg", s.GetSceneSVG)
		r.Get("/logs", s.GetLogs)
		r.Get("/events", s.SubscribeEvents)
		r.Get("/interaction", s.GetInteraction)

		r.Post("/blocks", s.CreateBlock)
		r.Put("/blocks/{id}", s.MoveBlock)
		r.Delete("/blocks/{id}", s.DeleteElement)
		r.Post("/connections", s.CreateConnection)
		r.Delete("/connections/{id}", s.DeleteElement)

		r.Post("/gestures/{gesture}", s.Gesture)
	})

	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.Editor.Connected() {
		status = "disconnected"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec != nil && s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	info := s.Editor.Info()
	writeJSON(w, http.StatusOK, map[string]any{
		"app":             "tapestry-http",
		"version":         strings.TrimSpace(tapestry.Version),
		"api_version":     apiVersion,
		"backend_version": info.Version,
		"connected":       s.Editor.Connected(),
	})
}

// GetLibrary handles the GET /library request.
func (s *Server) GetLibrary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Editor.Info().Library)
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Editor.Snapshot(r.Context())
	if err != nil {
		s.fail(w, "GetGraph", err)
		return
	}
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(presentation.GenerateMermaid(snap.Nodes, snap.Edges, nil)))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetScene handles the GET /scene request.
func (s *Server) GetScene(w http.ResponseWriter, r *http.Request) {
	scene, err := s.Editor.Scene(r.Context())
	if err != nil {
		s.fail(w, "GetScene", err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// GetSceneSVG handles the GET /scene.svg request.
func (s *Server) GetSceneSVG(w http.ResponseWriter, r *http.Request) {
	scene, err := s.Editor.Scene(r.Context())
	if err != nil {
		s.fail(w, "GetSceneSVG", err)
		return
	}
	width := queryInt(r, "width", 1280)
	height := queryInt(r, "height", 800)
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write([]byte(render.SVG(scene, width, height)))
}

// GetLogs handles the GET /logs request.
func (s *Server) GetLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.Editor.Logs(r.Context())
	if err != nil {
		s.fail(w, "GetLogs", err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetInteraction handles the GET /interaction request.
func (s *Server) GetInteraction(w http.ResponseWriter, r *http.Request) {
	st, err := s.Editor.Interaction(r.Context())
	if err != nil {
		s.fail(w, "GetInteraction", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CreateBlock handles the POST /blocks request.
func (s *Server) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var body domain.CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.Editor.CreateBlock(r.Context(), body.Type, body.Position)
	if err != nil {
		s.fail(w, "CreateBlock", err)
		return
	}
	writeJSON(w, http.StatusAccepted, mutationResponse(m))
}

// MoveBlock handles the PUT /blocks/{id} request.
func (s *Server) MoveBlock(w http.ResponseWriter, r *http.Request) {
	var pos domain.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.Editor.MoveBlock(r.Context(), chi.URLParam(r, "id"), pos)
	if err != nil {
		s.fail(w, "MoveBlock", err)
		return
	}
	writeJSON(w, http.StatusAccepted, mutationResponse(m))
}

type connectBody struct {
	FromID    string `json:"FromId"`
	FromRoute string `json:"FromRoute"`
	ToID      string `json:"ToId"`
	ToRoute   string `json:"ToRoute"`
}

// CreateConnection handles the POST /connections request.
// FromRoute defaults to the first out port of the source block.
func (s *Server) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var body connectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var m domain.Mutation
	err := s.Editor.Do(r.Context(), func(c *tapestry.Canvas) error {
		route := body.FromRoute
		if route == "" {
			n, ok := c.Store.Node(body.FromID)
			if !ok {
				return fmt.Errorf("connect from %s: %w", body.FromID, domain.ErrUnknownNode)
			}
			if routes := n.TypeInfo.Routes(domain.PortOut); len(routes) > 0 {
				route = routes[0]
			}
		}
		var err error
		m, err = c.Controller.Connect(r.Context(), body.FromID, route, body.ToID, body.ToRoute)
		return err
	})
	if err != nil {
		s.fail(w, "CreateConnection", err)
		return
	}
	writeJSON(w, http.StatusAccepted, mutationResponse(m))
}

// DeleteElement handles DELETE /blocks/{id} and DELETE /connections/{id}.
func (s *Server) DeleteElement(w http.ResponseWriter, r *http.Request) {
	m, err := s.Editor.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "Delete", err)
		return
	}
	writeJSON(w, http.StatusAccepted, mutationResponse(m))
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		for _, f := range strings.Split(watch, ",") {
			watchList = append(watchList, strings.TrimSpace(f))
		}
	}

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !matches(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func matches(msg string, watchList []string) bool {
	var d render.Diff
	if err := json.Unmarshal([]byte(msg), &d); err != nil {
		return true
	}
	for _, field := range watchList {
		switch field {
		case "nodes":
			if len(d.EnteredNodes)+len(d.UpdatedNodes)+len(d.ExitedNodes) > 0 {
				return true
			}
		case "edges":
			if len(d.EnteredEdges)+len(d.UpdatedEdges)+len(d.ExitedEdges) > 0 {
				return true
			}
		}
	}
	return false
}

type mutationBody struct {
	Kind domain.MutationKind `json:"kind"`
	ID   string              `json:"id,omitempty"`
	Body any                 `json:"body,omitempty"`
}

func mutationResponse(m domain.Mutation) mutationBody {
	return mutationBody{Kind: m.Kind, ID: m.ID, Body: m.Body}
}

// fail maps editor errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownNode), errors.Is(err, domain.ErrUnknownEdge),
		errors.Is(err, domain.ErrUnknownID):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownType), errors.Is(err, domain.ErrUnknownRoute),
		errors.Is(err, domain.ErrSameDirection), errors.Is(err, domain.ErrSelfConnection),
		errors.Is(err, domain.ErrQueryPort), errors.Is(err, domain.ErrNotConnecting):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, eventloop.ErrStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "err", err)
	}
	writeError(w, status, err)
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
