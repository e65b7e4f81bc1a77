package render

import (
	"testing"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func testNode(id string, x, y float64, td *domain.TypeDescriptor) *domain.Node {
	return &domain.Node{
		ID:       id,
		Position: domain.Position{X: x, Y: y},
		Size:     domain.Size{Width: 60, Height: 20},
		TypeInfo: td,
	}
}

func TestEdgePath(t *testing.T) {
	src := testNode("1", 100, 100, &domain.TypeDescriptor{OutRoutes: []string{"out"}})
	dst := testNode("2", 300, 400, &domain.TypeDescriptor{InRoutes: []string{"a", "b"}})

	got := EdgePath(src, dst, "b")

	assert.Equal(t, Path{
		{X: 105, Y: 135},
		{X: 105, Y: 155},
		{X: 320, Y: 385},
		{X: 320, Y: 405},
	}, got)
}

func TestEdgePath_UnknownRouteUsesFirstColumn(t *testing.T) {
	src := testNode("1", 0, 0, nil)
	dst := testNode("2", 50, 50, &domain.TypeDescriptor{InRoutes: []string{"in"}})

	got := EdgePath(src, dst, "missing")
	assert.Equal(t, 55.0, got[3].X)
}

func TestPreviewPath(t *testing.T) {
	n := testNode("1", 0, 0, &domain.TypeDescriptor{InRoutes: []string{"in"}, OutRoutes: []string{"out"}})
	ptr := Point{X: 200, Y: 200}

	out := PreviewPath(n, "out", domain.PortOut, ptr)
	assert.Equal(t, Point{X: 200, Y: 185}, out[2])
	assert.Equal(t, ptr, out[3])

	in := PreviewPath(n, "in", domain.PortIn, ptr)
	assert.Equal(t, Point{X: 5, Y: 5}, in[0])
	assert.Equal(t, Point{X: 200, Y: 215}, in[2])
}

func TestPath_PointAtLength(t *testing.T) {
	p := Path{{0, 0}, {0, 10}, {10, 10}}

	assert.Equal(t, 20.0, p.Length())
	assert.Equal(t, Point{0, 0}, p.PointAtLength(-1))
	assert.Equal(t, Point{0, 5}, p.PointAtLength(5))
	assert.Equal(t, Point{5, 10}, p.PointAtLength(15))
	assert.Equal(t, Point{10, 10}, p.PointAtLength(99))
	assert.Equal(t, Point{}, Path{}.PointAtLength(3))
}

func TestPath_D(t *testing.T) {
	p := Path{{0, 0}, {1.5, 10}, {2.25, 3.333}}
	assert.Equal(t, "M0,0L1.5,10L2.25,3.33", p.D())
}

func TestPortRect(t *testing.T) {
	n := testNode("1", 0, 0, nil)

	assert.Equal(t, Rect{X: 15, Y: 0, Width: 10, Height: 10}, PortRect(n, domain.PortIn, 1))
	assert.Equal(t, Rect{X: 0, Y: 30, Width: 10, Height: 10}, PortRect(n, domain.PortOut, 0))
	assert.Equal(t, Rect{X: 50, Y: 30, Width: 10, Height: 10}, PortRect(n, domain.PortQuery, 2))
}

func TestTextMeasurer(t *testing.T) {
	m := TextMeasurer{CharWidth: 10, LineHeight: 12}
	assert.Equal(t, domain.Size{Width: 90, Height: 17}, m.Measure("ticker"))
}
