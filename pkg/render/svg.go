package render

import (
	"fmt"
	"html"
	"strings"
)

// SVG renders a scene as a standalone SVG document.
// Class names follow the editor stylesheet: node, idrect, nodetype, chan in|out|query,
// link, edgePing, rateLabel and selected.
func SVG(s Scene, width, height int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d">`, width, height))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(`  <rect class="background" x="0" y="0" width="%d" height="%d"/>`, width, height))
	sb.WriteString("\n")

	sb.WriteString(`  <g class="linkContainer">` + "\n")
	for _, e := range s.Edges {
		sb.WriteString(fmt.Sprintf(`    <path class="link" id="link_%s" d="%s" style="fill: none"/>`, esc(e.ID), e.Path.D()))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(`    <circle class="edgePing" r="4" cx="%s" cy="%s"/>`, num(e.Ping.X), num(e.Ping.Y)))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(`    <g class="edgeLabel"><text dy="-2" text-anchor="middle"><textPath class="%s" startOffset="50%%" xlink:href="#link_%s">%s</textPath></text></g>`,
			classes("rateLabel unselectable", e.Selected), esc(e.ID), esc(e.Label)))
		sb.WriteString("\n")
	}
	if len(s.Preview) > 0 {
		sb.WriteString(fmt.Sprintf(`    <path id="newLink" d="%s" style="fill: none"/>`, s.Preview.D()))
		sb.WriteString("\n")
	}
	sb.WriteString("  </g>\n")

	sb.WriteString(`  <g class="nodeContainer">` + "\n")
	for _, n := range s.Nodes {
		sb.WriteString(fmt.Sprintf(`    <g class="node" data-id="%s" transform="translate(%s, %s)">`, esc(n.ID), num(n.Box.X), num(n.Box.Y)))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(`      <rect class="%s" x="0" y="0" width="%s" height="%s"/>`, classes("idrect", n.Selected), num(n.Box.Width), num(n.Box.Height)))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf(`      <text class="nodetype unselectable" dx="0" dy="%s">%s</text>`, num(n.Box.Height/2+5), esc(n.Type)))
		sb.WriteString("\n")
		for _, p := range n.Ports {
			sb.WriteString(fmt.Sprintf(`      <rect class="chan %s" x="%s" y="%s" width="%s" height="%s"><title>%s</title></rect>`,
				p.Direction, num(p.Rect.X-n.Box.X), num(p.Rect.Y-n.Box.Y), num(p.Rect.Width), num(p.Rect.Height), esc(p.Name)))
			sb.WriteString("\n")
		}
		sb.WriteString("    </g>\n")
	}
	sb.WriteString("  </g>\n")
	sb.WriteString("</svg>\n")
	return sb.String()
}

func classes(base string, selected bool) string {
	if selected {
		return base + " selected"
	}
	return base
}

func esc(s string) string {
	return html.EscapeString(s)
}
