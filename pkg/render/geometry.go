package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Port anchor geometry, in canvas units.
const (
	Route      = 10.0
	HalfRoute  = Route * 0.5
	RouteSpace = Route * 1.5
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box in canvas coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside the box (edges included).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Path is a routed polyline.
type Path []Point

// Length returns the total length of the path.
func (p Path) Length() float64 {
	var total float64
	for i := 1; i < len(p); i++ {
		total += dist(p[i-1], p[i])
	}
	return total
}

// PointAtLength walks the path and returns the point l units from its start.
// Lengths outside [0, Length] are clamped to the path ends.
func (p Path) PointAtLength(l float64) Point {
	if len(p) == 0 {
		return Point{}
	}
	if l <= 0 {
		return p[0]
	}
	for i := 1; i < len(p); i++ {
		seg := dist(p[i-1], p[i])
		if l <= seg {
			if seg == 0 {
				return p[i]
			}
			t := l / seg
			return Point{
				X: p[i-1].X + (p[i].X-p[i-1].X)*t,
				Y: p[i-1].Y + (p[i].Y-p[i-1].Y)*t,
			}
		}
		l -= seg
	}
	return p[len(p)-1]
}

// D returns the SVG path data of the polyline.
func (p Path) D() string {
	var sb strings.Builder
	for i, pt := range p {
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString("L")
		}
		sb.WriteString(fmt.Sprintf("%s,%s", num(pt.X), num(pt.Y)))
	}
	return sb.String()
}

func dist(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func num(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

// BoxHeight is the drawn height of a block: twice the measured label height.
func BoxHeight(n *domain.Node) float64 {
	return n.Size.Height * 2
}

// PortRect returns the anchor box of the index-th port of a direction, relative to the block origin.
// Input ports sit along the top edge, outputs along the bottom edge and query ports
// down the right edge.
func PortRect(n *domain.Node, dir domain.PortDirection, index int) Rect {
	switch dir {
	case domain.PortOut:
		return Rect{X: float64(index) * RouteSpace, Y: BoxHeight(n) - Route, Width: Route, Height: Route}
	case domain.PortQuery:
		return Rect{X: n.Size.Width - Route, Y: float64(index) * RouteSpace, Width: Route, Height: Route}
	}
	return Rect{X: float64(index) * RouteSpace, Y: 0, Width: Route, Height: Route}
}

// inRouteX returns the absolute x of the centre of an input port.
// An unknown route falls back to the first column.
func inRouteX(n *domain.Node, route string) float64 {
	idx := n.TypeInfo.RouteIndex(domain.PortIn, route)
	if idx < 0 {
		idx = 0
	}
	return n.Position.X + float64(idx)*RouteSpace + HalfRoute
}

// EdgePath routes a connection: it leaves the source block's output edge downward,
// bends, approaches the destination port's column from above and ends on the port.
func EdgePath(from, to *domain.Node, toRoute string) Path {
	fromX := from.Position.X + HalfRoute
	fromBottom := from.Position.Y + BoxHeight(from)
	toX := inRouteX(to, toRoute)
	return Path{
		{X: fromX, Y: fromBottom - HalfRoute},
		{X: fromX, Y: fromBottom + RouteSpace},
		{X: toX, Y: to.Position.Y - RouteSpace},
		{X: toX, Y: to.Position.Y + HalfRoute},
	}
}

// PreviewPath routes the connection being drawn from an origin port to the pointer.
// From an output it mirrors EdgePath with the pointer as destination; from an
// input it leaves upward and approaches the pointer from below.
func PreviewPath(origin *domain.Node, route string, dir domain.PortDirection, pointer Point) Path {
	if dir == domain.PortOut {
		x := origin.Position.X + HalfRoute
		bottom := origin.Position.Y + BoxHeight(origin)
		return Path{
			{X: x, Y: bottom - HalfRoute},
			{X: x, Y: bottom + RouteSpace},
			{X: pointer.X, Y: pointer.Y - RouteSpace},
			pointer,
		}
	}
	x := inRouteX(origin, route)
	return Path{
		{X: x, Y: origin.Position.Y + HalfRoute},
		{X: x, Y: origin.Position.Y - RouteSpace},
		{X: pointer.X, Y: pointer.Y + RouteSpace},
		pointer,
	}
}
