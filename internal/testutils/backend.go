package testutils

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Request is a mutation request received by the FakeBackend.
type Request struct {
	Method    string
	Path      string
	Body      []byte
	RequestID string
}

// FakeBackend is an in-process stand-in for the streaming backend: the
// bootstrap endpoints, the mutation endpoints and the /ui and /log push channels.
// Accepted mutations are echoed back as push events, like the real server does.
type FakeBackend struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	library  domain.Library
	version  string
	echo     bool
	nextID   int
	blocks   map[string]map[string]any
	conns    map[string]map[string]any
	requests []Request
	ui       map[*websocket.Conn]struct{}
	logs     map[*websocket.Conn]struct{}
	gets     int
}

// FakeOption configures the FakeBackend.
type FakeOption func(*FakeBackend)

// WithLibrary sets the block catalog served on /library.
func WithLibrary(lib domain.Library) FakeOption {
	return func(f *FakeBackend) {
		f.library = lib
	}
}

// WithVersion sets the version served on /version.
func WithVersion(v string) FakeOption {
	return func(f *FakeBackend) {
		f.version = v
	}
}

// DefaultLibrary is a small catalog used by tests.
func DefaultLibrary() domain.Library {
	return domain.Library{
		"ticker": {OutRoutes: []string{"out"}, QueryRoutes: []string{"rule"}},
		"map":    {InRoutes: []string{"in", "rule"}, OutRoutes: []string{"out"}, QueryRoutes: []string{"rule"}},
		"tolog":  {InRoutes: []string{"in"}},
	}
}

// NewFakeBackend starts a backend that is shut down when the test ends.
func NewFakeBackend(t *testing.T, opts ...FakeOption) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		library: DefaultLibrary(),
		version: "0.2.8",
		echo:    true,
		nextID:  1,
		blocks:  make(map[string]map[string]any),
		conns:   make(map[string]map[string]any),
		ui:      make(map[*websocket.Conn]struct{}),
		logs:    make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	r := chi.NewRouter()
	r.Get("/library", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.library)
	})
	r.Get("/domain", func(w http.ResponseWriter, r *http.Request) {
		host, _ := f.hostPort()
		writeJSON(w, map[string]string{"Domain": host})
	})
	r.Get("/port", func(w http.ResponseWriter, r *http.Request) {
		_, port := f.hostPort()
		writeJSON(w, map[string]string{"Port": port})
	})
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, map[string]string{"Version": f.version})
	})

	r.Post("/blocks", f.createBlock)
	r.Put("/blocks/{id}", f.moveBlock)
	r.Delete("/blocks/{id}", f.deleteBlock)
	r.Post("/connections", f.createConnection)
	r.Delete("/connections/{id}", f.deleteConnection)

	r.Get("/ui", f.serveUI)
	r.Get("/log", f.serveLog)

	f.server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// URL returns the base address of the backend.
func (f *FakeBackend) URL() string {
	return f.server.URL
}

// Close drops every socket and stops the server.
func (f *FakeBackend) Close() {
	f.DropSockets()
	f.server.Close()
}

// SetEcho controls whether accepted mutations are pushed back as events.
func (f *FakeBackend) SetEcho(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echo = on
}

// Requests returns the mutation requests received so far.
func (f *FakeBackend) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// StateRequests returns how many "get_state" messages were received.
func (f *FakeBackend) StateRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// Sockets returns the number of open ui and log sockets.
func (f *FakeBackend) Sockets() (ui, log int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ui), len(f.logs)
}

// AddBlock seeds a block without going through the mutation endpoint.
func (f *FakeBackend) AddBlock(id, blockType string, x, y float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := map[string]any{"Id": id, "Type": blockType, "Rule": nil, "Position": map[string]any{"X": x, "Y": y}}
	f.blocks[id] = b
	f.broadcastLocked(domain.Event{Kind: domain.EventCreate, Data: b})
}

// AddConnection seeds a connection without going through the mutation endpoint.
func (f *FakeBackend) AddConnection(id, from, to, route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := map[string]any{"Id": id, "FromId": from, "ToId": to, "ToRoute": route}
	f.conns[id] = c
	f.broadcastLocked(domain.Event{Kind: domain.EventCreate, Data: c})
}

// Push sends an arbitrary event on every ui socket.
func (f *FakeBackend) Push(ev domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcastLocked(ev)
}

// PushRate reports a connection rate.
func (f *FakeBackend) PushRate(id string, rate float64) {
	f.Push(domain.Event{Kind: domain.EventUpdate, Data: map[string]any{"Id": id, "Rate": rate}})
}

// PushLog sends a log batch on every log socket.
func (f *FakeBackend) PushLog(entries ...domain.LogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.logs {
		_ = c.WriteJSON(domain.LogBatch{Log: entries})
	}
}

// DropSockets closes every push channel, simulating a transport loss.
func (f *FakeBackend) DropSockets() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.ui {
		_ = c.Close()
		delete(f.ui, c)
	}
	for c := range f.logs {
		_ = c.Close()
		delete(f.logs, c)
	}
}

func (f *FakeBackend) hostPort() (string, string) {
	u, _ := url.Parse(f.server.URL)
	host, port, _ := net.SplitHostPort(u.Host)
	return host, port
}

func (f *FakeBackend) record(r *http.Request) []byte {
	body, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Body:      body,
		RequestID: r.Header.Get("X-Request-Id"),
	})
	return body
}

func (f *FakeBackend) createBlock(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var req domain.CreateBlockRequest
	if err := json.Unmarshal(f.record(r), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := f.library[req.Type]; !ok {
		http.Error(w, "unknown block type", http.StatusBadRequest)
		return
	}

	id := f.newID()
	b := map[string]any{"Id": id, "Type": req.Type, "Rule": nil, "Position": map[string]any{"X": req.Position.X, "Y": req.Position.Y}}
	f.blocks[id] = b
	if f.echo {
		f.broadcastLocked(domain.Event{Kind: domain.EventCreate, Data: b})
	}
	writeJSON(w, b)
}

func (f *FakeBackend) moveBlock(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := chi.URLParam(r, "id")
	var pos domain.Position
	if err := json.Unmarshal(f.record(r), &pos); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, ok := f.blocks[id]
	if !ok {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	b["Position"] = map[string]any{"X": pos.X, "Y": pos.Y}
	if f.echo {
		f.broadcastLocked(domain.Event{Kind: domain.EventUpdate, Data: map[string]any{"Id": id, "Position": b["Position"]}})
	}
	writeJSON(w, b)
}

func (f *FakeBackend) deleteBlock(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := chi.URLParam(r, "id")
	f.record(r)
	if _, ok := f.blocks[id]; !ok {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	for cid, c := range f.conns {
		if c["FromId"] == id || c["ToId"] == id {
			delete(f.conns, cid)
			if f.echo {
				f.broadcastLocked(domain.Event{Kind: domain.EventDelete, Data: map[string]any{"Id": cid}})
			}
		}
	}
	delete(f.blocks, id)
	if f.echo {
		f.broadcastLocked(domain.Event{Kind: domain.EventDelete, Data: map[string]any{"Id": id}})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeBackend) createConnection(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var req domain.ConnectRequest
	if err := json.Unmarshal(f.record(r), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, fromOK := f.blocks[req.FromID]
	_, toOK := f.blocks[req.ToID]
	if !fromOK || !toOK {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}

	id := f.newID()
	c := map[string]any{"Id": id, "FromId": req.FromID, "ToId": req.ToID, "ToRoute": req.ToRoute}
	f.conns[id] = c
	if f.echo {
		f.broadcastLocked(domain.Event{Kind: domain.EventCreate, Data: c})
	}
	writeJSON(w, c)
}

func (f *FakeBackend) deleteConnection(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := chi.URLParam(r, "id")
	f.record(r)
	if _, ok := f.conns[id]; !ok {
		http.Error(w, "connection not found", http.StatusNotFound)
		return
	}
	delete(f.conns, id)
	if f.echo {
		f.broadcastLocked(domain.Event{Kind: domain.EventDelete, Data: map[string]any{"Id": id}})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeBackend) serveUI(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.ui[conn] = struct{}{}
	f.mu.Unlock()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			f.forget(conn)
			return
		}
		if string(msg) == domain.StateRequest {
			f.mu.Lock()
			f.gets++
			for _, ev := range f.stateLocked() {
				_ = conn.WriteJSON(ev)
			}
			f.mu.Unlock()
		}
	}
}

func (f *FakeBackend) serveLog(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.logs[conn] = struct{}{}
	f.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.forget(conn)
			return
		}
	}
}

func (f *FakeBackend) forget(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ui, conn)
	delete(f.logs, conn)
	_ = conn.Close()
}

// stateLocked returns the current graph as CREATE events, blocks first.
func (f *FakeBackend) stateLocked() []domain.Event {
	var out []domain.Event
	for _, id := range sortedKeys(f.blocks) {
		out = append(out, domain.Event{Kind: domain.EventCreate, Data: f.blocks[id]})
	}
	for _, id := range sortedKeys(f.conns) {
		out = append(out, domain.Event{Kind: domain.EventCreate, Data: f.conns[id]})
	}
	return out
}

func (f *FakeBackend) broadcastLocked(ev domain.Event) {
	for c := range f.ui {
		_ = c.WriteJSON(ev)
	}
}

func (f *FakeBackend) newID() string {
	for {
		id := strconv.Itoa(f.nextID)
		f.nextID++
		if _, ok := f.blocks[id]; ok {
			continue
		}
		if _, ok := f.conns[id]; ok {
			continue
		}
		return id
	}
}

func sortedKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
