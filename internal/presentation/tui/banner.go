package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{" _____                     _              ", "#818cf8"},
	{"|_   _|_ _ _ __   ___  ___| |_ _ __ _   _ ", "#a78bfa"},
	{"  | |/ _` | '_ \\ / _ \\/ __| __| '__| | | |", "#c084fc"},
	{"  | | (_| | |_) |  __/\\__ \\ |_| |  | |_| |", "#e879f9"},
	{"  |_|\\__,_| .__/ \\___||___/\\__|_|   \\__, |", "#f472b6"},
	{"          |_|                       |___/ ", "#fb7185"},
}

// PrintBanner writes the Tapestry banner followed by the backend it is attached to.
func PrintBanner(w io.Writer, backend, version string) {
	out := termenv.NewOutput(w)

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
	if backend != "" {
		fmt.Fprintf(w, "  %s %s (streamtools %s)\n\n", out.String("attached to").Faint(), backend, version)
	}
}

// Status renders the connection indicator shown by the interactive runner.
func Status(w io.Writer, connected bool, message string) string {
	out := termenv.NewOutput(w)
	if connected {
		return out.String("● " + message).Foreground(out.Color("#22c55e")).String()
	}
	return out.String("○ " + message).Foreground(out.Color("#f97316")).Bold().String()
}
