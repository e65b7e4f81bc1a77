package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/render"
)

// GenerateSummary produces a markdown report of the graph: blocks per type
// and the connection table with live rates.
func GenerateSummary(version string, nodes []*domain.Node, edges []*domain.Edge) string {
	var sb strings.Builder
	sb.WriteString("# Streamtools graph\n\n")
	if version != "" {
		sb.WriteString(fmt.Sprintf("Backend version `%s`, ", version))
	}
	sb.WriteString(fmt.Sprintf("%d blocks, %d connections.\n\n", len(nodes), len(edges)))

	if len(nodes) > 0 {
		byType := make(map[string][]string)
		for _, n := range nodes {
			byType[n.Type] = append(byType[n.Type], n.ID)
		}
		types := make([]string, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Strings(types)

		sb.WriteString("## Blocks\n\n| Type | Count | Ids |\n|---|---|---|\n")
		for _, t := range types {
			ids := byType[t]
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", t, len(ids), strings.Join(ids, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(edges) > 0 {
		types := make(map[string]string, len(nodes))
		for _, n := range nodes {
			types[n.ID] = n.Type
		}

		sb.WriteString("## Connections\n\n| Id | From | To | Route | Rate |\n|---|---|---|---|---|\n")
		for _, e := range edges {
			sb.WriteString(fmt.Sprintf("| %s | %s (%s) | %s (%s) | %s | %s |\n",
				e.ID, e.FromID, types[e.FromID], e.ToID, types[e.ToID], e.ToRoute, render.FormatRate(e.Rate)))
		}
	}

	return sb.String()
}
