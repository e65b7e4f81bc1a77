package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/render"
)

// Overlay contains interaction state to highlight on the graph.
type Overlay struct {
	Selected []string
}

// GenerateMermaid produces a Mermaid flowchart of blocks and connections.
// Block shape follows the port layout:
// - Source (no in ports): ((Circle))
// - Sink (no out ports): [/Parallelogram/]
// - Default: [Rectangle]
// Connections are labelled with their destination port and, when data is
// flowing, with the current rate; flowing links are drawn thicker.
func GenerateMermaid(nodes []*domain.Node, edges []*domain.Edge, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, n := range nodes {
		safeID := sanitizeMermaidID(n.ID)

		opener, closer := "[", "]"
		switch {
		case n.TypeInfo != nil && len(n.TypeInfo.InRoutes) == 0:
			opener, closer = "((", "))"
		case n.TypeInfo != nil && len(n.TypeInfo.OutRoutes) == 0:
			opener, closer = "[/", "/]"
		}

		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", safeID, opener, n.Type, n.ID, closer))
	}

	var flowing []int
	for i, e := range edges {
		label := strings.ReplaceAll(e.ToRoute, "\"", "'")
		if e.Rate > 0 {
			label = fmt.Sprintf("%s @ %s/s", label, render.FormatRate(e.Rate))
			flowing = append(flowing, i)
		}
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", sanitizeMermaidID(e.FromID), label, sanitizeMermaidID(e.ToID)))
	}

	if len(flowing) > 0 {
		idx := make([]string, len(flowing))
		for i, v := range flowing {
			idx[i] = fmt.Sprint(v)
		}
		sb.WriteString(fmt.Sprintf("    linkStyle %s stroke-width:3px;\n", strings.Join(idx, ",")))
	}

	if overlay != nil && len(overlay.Selected) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme.
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		known := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			known[n.ID] = true
		}
		seen := make(map[string]bool)
		for _, id := range overlay.Selected {
			safeID := sanitizeMermaidID(id)
			if known[id] && !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s selected;\n", safeID))
			}
		}
	}

	return sb.String()
}

// Mermaid node identifiers cannot start with a digit-only token in every
// renderer, so identifiers are prefixed.
func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return "b" + s
}
