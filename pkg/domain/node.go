package domain

// PortDirection identifies which side of a block a port lives on.
type PortDirection string

const (
	// PortIn is a destination port: connections terminate here.
	PortIn PortDirection = "in"
	// PortOut is a source port: connections start here.
	PortOut PortDirection = "out"
	// PortQuery is a request/response port. It cannot take part in a connection.
	PortQuery PortDirection = "query"
)

// Opposite returns the direction a connection gesture must end on.
// Query ports have no opposite.
func (d PortDirection) Opposite() PortDirection {
	switch d {
	case PortIn:
		return PortOut
	case PortOut:
		return PortIn
	}
	return ""
}

// Position is a point on the editor canvas.
type Position struct {
	X float64 `json:"X" mapstructure:"X"`
	Y float64 `json:"Y" mapstructure:"Y"`
}

// Size is the measured box of a block label.
// The rendered block is Width wide and 2*Height tall.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TypeDescriptor is the port layout of a block type, as reported by the catalog.
type TypeDescriptor struct {
	Type        string   `json:"Type,omitempty" mapstructure:"Type"`
	InRoutes    []string `json:"InRoutes" mapstructure:"InRoutes"`
	OutRoutes   []string `json:"OutRoutes" mapstructure:"OutRoutes"`
	QueryRoutes []string `json:"QueryRoutes" mapstructure:"QueryRoutes"`
}

// Routes returns the ordered port names for a direction.
func (t *TypeDescriptor) Routes(dir PortDirection) []string {
	if t == nil {
		return nil
	}
	switch dir {
	case PortIn:
		return t.InRoutes
	case PortOut:
		return t.OutRoutes
	case PortQuery:
		return t.QueryRoutes
	}
	return nil
}

// RouteIndex returns the position of a port among the ports of the same direction,
// or -1 if the block type has no such port.
func (t *TypeDescriptor) RouteIndex(dir PortDirection, route string) int {
	for i, r := range t.Routes(dir) {
		if r == route {
			return i
		}
	}
	return -1
}

// Library is the block-type catalog: type name to port layout.
type Library map[string]*TypeDescriptor

// Lookup resolves a block type. The returned descriptor is shared and must not be mutated.
func (l Library) Lookup(blockType string) (*TypeDescriptor, bool) {
	td, ok := l[blockType]
	return td, ok && td != nil
}

// Node is a visual instance of a block.
//
// TypeInfo is resolved from the Library once, when the node is created,
// and never changes afterwards.
type Node struct {
	ID       string          `json:"Id"`
	Type     string          `json:"Type"`
	Position Position        `json:"Position"`
	Size     Size            `json:"Size"`
	TypeInfo *TypeDescriptor `json:"-"`
}

// Clone returns a copy that shares the immutable TypeInfo.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}
