package domain

// Edge is a directed connection from one block's output to another block's input route.
type Edge struct {
	ID      string  `json:"Id"`
	FromID  string  `json:"FromId"`
	ToID    string  `json:"ToId"`
	ToRoute string  `json:"ToRoute"`
	Rate    float64 `json:"Rate"`
}

// Touches reports whether nodeID is one of the edge endpoints.
func (e *Edge) Touches(nodeID string) bool {
	return e.FromID == nodeID || e.ToID == nodeID
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	c := *e
	return &c
}
