package types

import (
	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	wire "github.com/DoyleJ11/map-pickban-backend/pkg/types"
)

type ClientMessage struct {
	Type        string `json:"type"`
	Code        string `json:"code,omitempty"`
	Format      string `json:"format,omitempty"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Token       string `json:"token,omitempty"`
	MapName     string `json:"mapName,omitempty"`
	Side        string `json:"side,omitempty"`
	ActingSide  string `json:"actingSide,omitempty"`
}

type ServerMessage struct {
	Type       string         `json:"type"` // see pkg/types for the frame names
	Code       string         `json:"code,omitempty"`
	AdminToken string         `json:"adminToken,omitempty"`
	Side       string         `json:"side,omitempty"`
	Token      string         `json:"token,omitempty"`
	Room       *wire.RoomView `json:"room,omitempty"`
	Error      *ErrorPayload  `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RequestType string `json:"requestType,omitempty"`
}

// NewRoomView converts engine state into the public snapshot.
func NewRoomView(version int, s engine.State) wire.RoomView {
	v := wire.RoomView{
		Code:          s.Code,
		Format:        string(s.Format),
		Version:       version,
		Status:        string(s.Status()),
		SideA:         wire.SeatView{Name: s.SideA.Name, Occupied: s.SideA.Occupied()},
		SideB:         wire.SeatView{Name: s.SideB.Name, Occupied: s.SideB.Occupied()},
		ObserverCount: len(s.Observers),
		Started:       s.Started,
		Cursor:        s.Cursor,
		Sequence:      StepViews(s.Sequence),
		ChosenLog:     make([]wire.ChosenView, 0, len(s.Chosen)),
		RemainingMaps: engine.RemainingMaps(s),
	}
	if step, done := s.CurrentStep(); s.Started && !done {
		v.CurrentStep = &wire.StepView{Action: string(step.Action), Side: string(step.Side)}
	}
	for _, c := range s.Chosen {
		v.ChosenLog = append(v.ChosenLog, wire.ChosenView{
			Target: c.Target,
			Kind:   string(c.Kind),
			Actor:  string(c.Actor),
		})
	}
	return v
}

func StepViews(steps []engine.TurnStep) []wire.StepView {
	out := make([]wire.StepView, 0, len(steps))
	for _, st := range steps {
		out = append(out, wire.StepView{Action: string(st.Action), Side: string(st.Side)})
	}
	return out
}
