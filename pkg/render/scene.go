package render

import (
	"math"
	"strconv"

	"github.com/aretw0/tapestry/pkg/domain"
)

// PortElement is a clickable port anchor in absolute canvas coordinates.
type PortElement struct {
	NodeID    string               `json:"node_id"`
	Name      string               `json:"name"`
	Direction domain.PortDirection `json:"direction"`
	Rect      Rect                 `json:"rect"`
}

// NodeElement is the projection of a block.
type NodeElement struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Box      Rect          `json:"box"`
	Selected bool          `json:"selected"`
	Ports    []PortElement `json:"ports"`
}

// EdgeElement is the projection of a connection, including its transient flow state.
type EdgeElement struct {
	ID       string  `json:"id"`
	FromID   string  `json:"from_id"`
	ToID     string  `json:"to_id"`
	ToRoute  string  `json:"to_route"`
	Path     Path    `json:"path"`
	Length   float64 `json:"length"`
	Rate     float64 `json:"rate"`
	Label    string  `json:"label"`
	Progress float64 `json:"progress"`
	Ping     Point   `json:"ping"`
	Selected bool    `json:"selected"`
}

// Scene is an ordered, serialisable snapshot of everything drawn.
type Scene struct {
	Revision uint64        `json:"revision"`
	Nodes    []NodeElement `json:"nodes"`
	Edges    []EdgeElement `json:"edges"`
	Preview  Path          `json:"preview,omitempty"`
}

// Diff lists the keyed elements touched by one render pass.
type Diff struct {
	Revision     uint64   `json:"revision"`
	EnteredNodes []string `json:"entered_nodes,omitempty"`
	UpdatedNodes []string `json:"updated_nodes,omitempty"`
	ExitedNodes  []string `json:"exited_nodes,omitempty"`
	EnteredEdges []string `json:"entered_edges,omitempty"`
	UpdatedEdges []string `json:"updated_edges,omitempty"`
	ExitedEdges  []string `json:"exited_edges,omitempty"`
}

// Empty reports whether the pass changed nothing.
func (d Diff) Empty() bool {
	return len(d.EnteredNodes) == 0 && len(d.UpdatedNodes) == 0 && len(d.ExitedNodes) == 0 &&
		len(d.EnteredEdges) == 0 && len(d.UpdatedEdges) == 0 && len(d.ExitedEdges) == 0
}

// FormatRate renders a rate label with two decimals at most.
func FormatRate(rate float64) string {
	return strconv.FormatFloat(math.Round(rate*100)/100, 'f', -1, 64)
}

// AdvanceProgress moves a flow indicator one frame along its edge.
// Faster edges move faster; the rate contribution is clamped to [0, 100].
func AdvanceProgress(progress, rate float64) float64 {
	progress += 0.001 + math.Max(0, math.Min(rate, 100))/4000.0
	if progress > 1 || progress < 0 {
		return 0
	}
	return progress
}

func projectNode(n *domain.Node) *NodeElement {
	el := &NodeElement{ID: n.ID, Type: n.Type}
	el.place(n)
	return el
}

// clone copies the element without sharing its port slice.
func (el *NodeElement) clone() NodeElement {
	c := *el
	c.Ports = append([]PortElement(nil), el.Ports...)
	return c
}

func (el *NodeElement) place(n *domain.Node) {
	el.Box = Rect{X: n.Position.X, Y: n.Position.Y, Width: n.Size.Width, Height: BoxHeight(n)}
	el.Ports = el.Ports[:0]
	for _, dir := range []domain.PortDirection{domain.PortIn, domain.PortOut, domain.PortQuery} {
		for i, name := range n.TypeInfo.Routes(dir) {
			r := PortRect(n, dir, i)
			r.X += n.Position.X
			r.Y += n.Position.Y
			el.Ports = append(el.Ports, PortElement{NodeID: n.ID, Name: name, Direction: dir, Rect: r})
		}
	}
}

// PortAt returns the port anchor under p, if any.
func (el *NodeElement) PortAt(p Point) (PortElement, bool) {
	for _, port := range el.Ports {
		if port.Rect.Contains(p) {
			return port, true
		}
	}
	return PortElement{}, false
}
