package interaction

import (
	"sort"

	"github.com/aretw0/tapestry/pkg/domain"
)

// Mode is the state of the connection gesture machine.
type Mode int

const (
	// Idle means no connection is being drawn.
	Idle Mode = iota
	// Connecting means a port was activated and the next port click completes or cancels it.
	Connecting
)

func (m Mode) String() string {
	if m == Connecting {
		return "connecting"
	}
	return "idle"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name. Unknown names decode as Idle.
func (m *Mode) UnmarshalText(b []byte) error {
	*m = Idle
	if string(b) == "connecting" {
		*m = Connecting
	}
	return nil
}

// Target classifies a selected element.
type Target string

const (
	TargetNode Target = "node"
	TargetEdge Target = "edge"
)

// PendingConnection is the connection being drawn. It has no identifier and
// is discarded on completion or cancellation.
type PendingConnection struct {
	NodeID    string               `json:"node_id"`
	Route     string               `json:"route"`
	Direction domain.PortDirection `json:"direction"`
}

// DragState tracks a node body being dragged.
type DragState struct {
	NodeID string          `json:"node_id"`
	Offset domain.Position `json:"offset"`
	Moved  bool            `json:"moved"`
}

// State is the whole interaction state. The zero value is Idle with nothing selected.
type State struct {
	Mode      Mode               `json:"mode"`
	Pending   *PendingConnection `json:"pending,omitempty"`
	Pointer   domain.Position    `json:"pointer"`
	Selection map[string]Target  `json:"selection,omitempty"`
	Shift     bool               `json:"shift"`
	Drag      *DragState         `json:"drag,omitempty"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	if s.Drag != nil {
		d := *s.Drag
		c.Drag = &d
	}
	if s.Selection != nil {
		c.Selection = make(map[string]Target, len(s.Selection))
		for id, t := range s.Selection {
			c.Selection[id] = t
		}
	}
	return c
}

// Selected returns the selected identifiers in stable order.
func (s State) Selected() []string {
	ids := make([]string, 0, len(s.Selection))
	for id := range s.Selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *State) idle() {
	s.Mode = Idle
	s.Pending = nil
}
