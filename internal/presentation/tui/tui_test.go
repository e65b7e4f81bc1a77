package tui_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/tapestry/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "http://localhost:7070", "0.2.8")

	out := buf.String()
	assert.Contains(t, out, "|_   _|_ _ _ __")
	assert.Contains(t, out, "http://localhost:7070 (streamtools 0.2.8)")
}

func TestStatus(t *testing.T) {
	var buf bytes.Buffer
	assert.Contains(t, tui.Status(&buf, true, "connected"), "● connected")
	assert.Contains(t, tui.Status(&buf, false, "retrying"), "○ retrying")
}

func TestRenderer(t *testing.T) {
	render, err := tui.NewRenderer(80)
	require.NoError(t, err)

	out, err := render("# Blocks\n\n| Type | Count |\n|---|---|\n| ticker | 1 |\n")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "ticker"))
}

func TestIsInteractive_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	assert.False(t, tui.IsInteractive(w))
	assert.Equal(t, 42, tui.Width(w, 42))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"Clean", "hello\tworld", 0, "hello\tworld"},
		{"ANSI Escape", "\x1b[31mred\x1b[0m", 0, "[31mred[0m"},
		{"Forged Line", "ok\n12:00:00 [INFO] fake", 0, "ok 12:00:00 [INFO] fake"},
		{"Invalid UTF-8", "a\xffb", 0, "a�b"},
		{"Truncated", "abcdef", 3, "abc…"},
		{"Rune Boundary", "aé", 2, "a…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tui.Sanitize(tt.in, tt.max))
		})
	}
}
