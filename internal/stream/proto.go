package stream

import (
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
)

const Version = 1

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
	TypeCommand   = "COMMAND"
	TypeError     = "ERROR"
)

type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version"`
	// Rate is the poll frequency in Hz; 0 takes the server default.
	Rate float64 `json:"rate,omitempty"`
	// Bodies restricts frames to these ids when non-empty.
	Bodies []dynamo.BodyID `json:"bodies,omitempty"`
}

type BodyMsg struct {
	ID       dynamo.BodyID `json:"id"`
	Position [2]float64    `json:"pos"`
	Rotation float64       `json:"rot"`
	Velocity [2]float64    `json:"vel"`
}

type FrameMsg struct {
	Type   string    `json:"type"`
	Frame  uint64    `json:"frame"`
	Time   float64   `json:"time"`
	Bodies []BodyMsg `json:"bodies"`
}

// CommandMsg lets a client act as one more producer.
type CommandMsg struct {
	Type  string              `json:"type"`
	Kind  string              `json:"kind"`
	Body  dynamo.BodyID       `json:"body"`
	Value [2]float64          `json:"value"`
	Shape *config.ShapeConfig `json:"shape,omitempty"`
	Ref   string              `json:"ref,omitempty"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

func frameMsg(s *dynamo.Snapshot, only map[dynamo.BodyID]bool) FrameMsg {
	msg := FrameMsg{Type: TypeFrame, Frame: s.Frame, Time: s.Time, Bodies: make([]BodyMsg, 0, s.Len())}
	for _, id := range s.IDs() {
		if len(only) > 0 && !only[id] {
			continue
		}
		b, _ := s.Body(id)
		msg.Bodies = append(msg.Bodies, BodyMsg{
			ID:       id,
			Position: b.Position,
			Rotation: b.Rotation,
			Velocity: b.Velocity,
		})
	}
	return msg
}
