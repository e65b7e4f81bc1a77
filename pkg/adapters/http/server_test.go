package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/testutils"
	httpadapter "github.com/aretw0/tapestry/pkg/adapters/http"
	"github.com/aretw0/tapestry/pkg/interaction"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 3 * time.Second

type fixture struct {
	fake   *testutils.FakeBackend
	editor *tapestry.Editor
	srv    *httptest.Server
}

func setup(t *testing.T, opts ...httpadapter.Option) *fixture {
	t.Helper()
	fake := testutils.NewFakeBackend(t)
	fake.AddBlock("1", "ticker", 100, 100)
	fake.AddBlock("2", "map", 300, 300)
	fake.AddConnection("10", "1", "2", "in")

	reg := prometheus.NewRegistry()
	ed, err := tapestry.New(context.Background(), fake.URL(),
		tapestry.WithReconnectWait(20*time.Millisecond),
		tapestry.WithFrameInterval(0),
		tapestry.WithMetrics(observability.NewMetrics(reg)),
	)
	require.NoError(t, err)

	handler, err := httpadapter.NewHandler(context.Background(), ed,
		append([]httpadapter.Option{httpadapter.WithGatherer(reg)}, opts...)...)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ed.Run(ctx) }()
	t.Cleanup(func() {
		srv.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(wait):
			t.Error("editor did not stop")
		}
	})

	assert.Eventually(t, func() bool {
		snap, err := ed.Snapshot(context.Background())
		return err == nil && len(snap.Nodes) == 2 && len(snap.Edges) == 1
	}, wait, 10*time.Millisecond)

	return &fixture{fake: fake, editor: ed, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServer_HealthAndInfo(t *testing.T) {
	f := setup(t)

	assert.Eventually(t, f.editor.Connected, wait, 10*time.Millisecond)

	resp, body := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = f.do(t, "GET", "/info", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var info map[string]any
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, "0.2.8", info["backend_version"])
	assert.Equal(t, tapestry.Version, info["version"])

	resp, body = f.do(t, "GET", "/library", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tolog")

	resp, body = f.do(t, "GET", "/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, httpadapter.RawSpec(), body)
}

func TestServer_GraphViews(t *testing.T) {
	f := setup(t)

	resp, body := f.do(t, "GET", "/graph", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snap tapestry.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Len(t, snap.Nodes, 2)
	assert.Len(t, snap.Edges, 1)

	resp, body = f.do(t, "GET", "/graph?format=mermaid", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "b1 -- \"in\" --> b2")

	resp, _ = f.do(t, "GET", "/graph?format=dot", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "format is an enum")

	resp, body = f.do(t, "GET", "/scene", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "\"10\"")

	resp, body = f.do(t, "GET", "/scene.svg?width=640&height=480", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), "<svg"))
	assert.Contains(t, string(body), `width="640"`)
}

func TestServer_Mutations(t *testing.T) {
	f := setup(t)

	resp, body := f.do(t, "POST", "/blocks", `{"Type":"tolog","Position":{"X":10,"Y":20}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"kind":"CREATE_BLOCK"`)

	assert.Eventually(t, func() bool {
		snap, err := f.editor.Snapshot(context.Background())
		return err == nil && len(snap.Nodes) == 3
	}, wait, 10*time.Millisecond)

	resp, body = f.do(t, "POST", "/connections", `{"FromId":"2","ToId":"1","ToRoute":"in"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))

	resp, _ = f.do(t, "PUT", "/blocks/2", `{"X":50,"Y":60}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = f.do(t, "PUT", "/blocks/404", `{"X":50,"Y":60}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, "DELETE", "/connections/10", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body = f.do(t, "DELETE", "/connections/404", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "unknown identifier")

	assert.Eventually(t, func() bool {
		snap, err := f.editor.Snapshot(context.Background())
		return err == nil && len(snap.Edges) == 0
	}, wait, 10*time.Millisecond)

	var paths []string
	for _, r := range f.fake.Requests() {
		paths = append(paths, r.Method+" "+r.Path)
	}
	assert.Contains(t, paths, "POST /blocks")
	assert.Contains(t, paths, "PUT /blocks/2")
	assert.Contains(t, paths, "DELETE /connections/10")
}

func TestServer_RequestValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"Missing Type", "POST", "/blocks", `{"Position":{"X":1,"Y":2}}`},
		{"Empty Type", "POST", "/blocks", `{"Type":""}`},
		{"Missing ToRoute", "POST", "/connections", `{"FromId":"1","ToId":"2"}`},
		{"Bad Position", "PUT", "/blocks/1", `{"X":"left"}`},
		{"Unknown Gesture", "POST", "/gestures/wiggle", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
	assert.Empty(t, f.fake.Requests(), "rejected requests never reach the backend")
}

func TestServer_Gestures(t *testing.T) {
	f := setup(t)

	resp, body := f.do(t, "POST", "/gestures/click-port", `{"id":"1","route":"out","direction":"out"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var gr httpadapter.GestureResponse
	require.NoError(t, json.Unmarshal(body, &gr))
	assert.Equal(t, interaction.Connecting, gr.State.Mode)
	assert.Empty(t, gr.Sent)

	resp, body = f.do(t, "POST", "/gestures/click-port", `{"id":"2","route":"in","direction":"in"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	gr = httpadapter.GestureResponse{}
	require.NoError(t, json.Unmarshal(body, &gr))
	assert.Equal(t, interaction.Idle, gr.State.Mode)
	require.Len(t, gr.Sent, 1)
	assert.EqualValues(t, "CREATE_CONNECTION", gr.Sent[0].Kind)

	resp, _ = f.do(t, "POST", "/gestures/click-port", `{"id":"1","route":"rule","direction":"query"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = f.do(t, "POST", "/gestures/click-node", `{"id":"1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = f.do(t, "GET", "/interaction", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"1"`)

	resp, body = f.do(t, "POST", "/gestures/key-delete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "DELETE_BLOCK")

	assert.Eventually(t, func() bool {
		snap, err := f.editor.Snapshot(context.Background())
		return err == nil && len(snap.Nodes) == 1
	}, wait, 10*time.Millisecond)
}

func TestServer_SubscribeEvents(t *testing.T) {
	f := setup(t)

	req, err := http.NewRequest("GET", f.srv.URL+"/events?watch=nodes", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	require.Equal(t, "event: ping", <-lines)

	// Rate updates only touch edges and are filtered out by the watch list.
	f.fake.PushRate("10", 3)
	f.fake.AddBlock("7", "tolog", 0, 0)

	for line := range lines {
		if !strings.HasPrefix(line, "data: {") {
			continue
		}
		assert.Contains(t, line, `"entered_nodes":["7"]`)
		return
	}
	t.Fatal("stream closed before a diff arrived")
}

func TestServer_Metrics(t *testing.T) {
	f := setup(t)

	resp, _ := f.do(t, "POST", "/blocks", `{"Type":"ticker"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Eventually(t, func() bool {
		_, body := f.do(t, "GET", "/metrics", "")
		return bytes.Contains(body, []byte("tapestry_mutations_sent_total"))
	}, wait, 20*time.Millisecond)
}
