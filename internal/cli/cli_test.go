package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/testutils"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tapestry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: http://st:7070\nlog_limit: 20\nlisten: \":9000\"\n"), 0644))

	t.Run("File Only", func(t *testing.T) {
		cfg, err := Resolve(Options{ConfigPath: path})
		require.NoError(t, err)
		assert.Equal(t, "http://st:7070", cfg.Backend)
		assert.Equal(t, 20, cfg.LogLimit)
		assert.Equal(t, ":9000", cfg.Listen)
	})

	t.Run("Flags Win", func(t *testing.T) {
		cfg, err := Resolve(Options{
			ConfigPath:    path,
			Backend:       "http://other:7070",
			ReconnectWait: time.Second,
			RedisAddr:     "localhost:6379",
			Debug:         true,
		})
		require.NoError(t, err)
		assert.Equal(t, "http://other:7070", cfg.Backend)
		assert.Equal(t, time.Second, cfg.ReconnectWait.Std())
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.True(t, cfg.Debug)
		assert.Equal(t, 20, cfg.LogLimit)
	})

	t.Run("Missing File Uses Defaults", func(t *testing.T) {
		cfg, err := Resolve(Options{ConfigPath: filepath.Join(dir, "absent.yaml")})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:7070", cfg.Backend)
	})
}

func TestFormatEntry(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, "15:04:05 [INFO] 3: hello",
		formatEntry(&buf, domain.LogEntry{Type: "INFO", ID: "3", Data: "hello", Time: at}))
	assert.Equal(t, `15:04:05 [ERROR] 3: {"n":1}`,
		formatEntry(&buf, domain.LogEntry{Type: "ERROR", ID: "3", Data: map[string]any{"n": 1}, Time: at}))
	assert.Equal(t, "15:04:05 [INFO] boot",
		formatEntry(&buf, domain.LogEntry{Type: "INFO", Data: "boot", Time: at}))

	lost := formatEntry(&buf, domain.LogEntry{Type: domain.LogTypeUI, Data: tapestry.MessageDisconnected})
	assert.True(t, strings.HasPrefix(lost, "○ "))
	up := formatEntry(&buf, domain.LogEntry{Type: domain.LogTypeUI, Data: tapestry.MessageConnected + " 0.2.8"})
	assert.True(t, strings.HasPrefix(up, "● "))
}

func seeded(t *testing.T) (*testutils.FakeBackend, Options) {
	fake := testutils.NewFakeBackend(t)
	fake.AddBlock("1", "ticker", 100, 100)
	fake.AddBlock("2", "map", 300, 300)
	fake.AddConnection("10", "1", "2", "in")
	return fake, Options{
		ConfigPath:    filepath.Join(t.TempDir(), "none.yaml"),
		Backend:       fake.URL(),
		ReconnectWait: 20 * time.Millisecond,
	}
}

func TestExportGraph(t *testing.T) {
	_, opts := seeded(t)
	quick := ExportOptions{Quiet: 50 * time.Millisecond, Timeout: 5 * time.Second}

	t.Run("Mermaid", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, ExportGraph(context.Background(), opts, quick, &out))
		assert.Contains(t, out.String(), "graph TD")
		assert.Contains(t, out.String(), "b1 -- \"in\" --> b2")
	})

	t.Run("JSON", func(t *testing.T) {
		var out bytes.Buffer
		e := quick
		e.Format = FormatJSON
		require.NoError(t, ExportGraph(context.Background(), opts, e, &out))

		var snap tapestry.Snapshot
		require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
		assert.Len(t, snap.Nodes, 2)
		assert.Len(t, snap.Edges, 1)
	})

	t.Run("Summary", func(t *testing.T) {
		var out bytes.Buffer
		e := quick
		e.Format = FormatSummary
		require.NoError(t, ExportGraph(context.Background(), opts, e, &out))
		assert.Contains(t, out.String(), "2 blocks, 1 connections.")
	})

	t.Run("Unknown Format", func(t *testing.T) {
		e := quick
		e.Format = "dot"
		err := ExportGraph(context.Background(), opts, e, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown format")
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunLive_JSON(t *testing.T) {
	fake, opts := seeded(t)

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- RunLive(ctx, opts, true, &out) }()

	assert.Eventually(t, func() bool { _, n := fake.Sockets(); return n == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), tapestry.MessageConnected)
	}, 3*time.Second, 10*time.Millisecond)
	fake.PushLog(domain.LogEntry{Type: "INFO", Data: "tick", ID: "1"})

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"Data":"tick"`)
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("RunLive did not stop")
	}

	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var e domain.LogEntry
		assert.NoError(t, json.Unmarshal([]byte(line), &e), line)
	}
}

func TestBootstrapFailure(t *testing.T) {
	fake := testutils.NewFakeBackend(t)
	url := fake.URL()
	fake.Close()

	err := ExportGraph(context.Background(), Options{ConfigPath: "", Backend: url}, ExportOptions{Timeout: time.Second}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFormatEntry_StripsControlSequences(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	line := formatEntry(&buf, domain.LogEntry{Type: "INFO", ID: "3", Data: "\x1b[2Jboom\nforged", Time: at})
	assert.Equal(t, "15:04:05 [INFO] 3: [2Jboom forged", line)
}
