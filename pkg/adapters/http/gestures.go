package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/interaction"
	"github.com/go-chi/chi/v5"
)

// GestureRequest carries the pointer event a thin front-end forwards.
type GestureRequest struct {
	ID        string               `json:"id"`
	Route     string               `json:"route"`
	Direction domain.PortDirection `json:"direction"`
	X         float64              `json:"x"`
	Y         float64              `json:"y"`
	Held      bool                 `json:"held"`
}

// GestureResponse reports the resulting gesture state and what was sent.
type GestureResponse struct {
	State interaction.State `json:"state"`
	Sent  []mutationBody    `json:"sent"`
}

var errUnknownGesture = errors.New("unknown gesture")

// Gesture handles the POST /gestures/{gesture} request.
func (s *Server) Gesture(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "gesture")

	var req GestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pos := domain.Position{X: req.X, Y: req.Y}

	var resp GestureResponse
	err := s.Editor.Do(r.Context(), func(c *tapestry.Canvas) error {
		ctl := c.Controller
		var sent []domain.Mutation
		var err error

		switch name {
		case "click-port":
			var m domain.Mutation
			var ok bool
			m, ok, err = ctl.ClickPort(r.Context(), req.ID, req.Direction, req.Route)
			if ok {
				sent = append(sent, m)
			}
		case "click-node":
			err = ctl.ClickNode(req.ID)
		case "click-edge":
			err = ctl.ClickEdge(req.ID)
		case "click-background":
			ctl.ClickBackground()
		case "pointer-move":
			ctl.PointerMove(pos)
		case "drag-start":
			err = ctl.DragStart(req.ID, pos)
		case "drag-to":
			err = ctl.DragTo(pos)
		case "drag-end":
			if m, ok := ctl.DragEnd(r.Context()); ok {
				sent = append(sent, m)
			}
		case "key-delete":
			sent = ctl.KeyDelete(r.Context())
		case "shift":
			ctl.SetShift(req.Held)
		default:
			return fmt.Errorf("%w: %s", errUnknownGesture, name)
		}

		resp.State = ctl.State()
		resp.Sent = make([]mutationBody, 0, len(sent))
		for _, m := range sent {
			resp.Sent = append(resp.Sent, mutationResponse(m))
		}
		return err
	})
	if errors.Is(err, errUnknownGesture) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, "Gesture", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
