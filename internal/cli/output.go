package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/presentation/tui"
	"github.com/aretw0/tapestry/pkg/domain"
)

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && tui.IsInteractive(f)
}

// formatEntry renders one log panel line. Editor notices show as a status
// indicator; backend entries as "time [TYPE] block: data".
func formatEntry(w io.Writer, e domain.LogEntry) string {
	data := tui.Sanitize(entryData(e.Data), 0)
	if e.Type == domain.LogTypeUI {
		return tui.Status(w, data != tapestry.MessageDisconnected, data)
	}
	ts := e.Time.Format("15:04:05")
	typ := tui.Sanitize(e.Type, 32)
	if e.ID == "" {
		return fmt.Sprintf("%s [%s] %s", ts, typ, data)
	}
	return fmt.Sprintf("%s [%s] %s: %s", ts, typ, tui.Sanitize(e.ID, 64), data)
}

func entryData(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
