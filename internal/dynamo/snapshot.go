package dynamo

import (
	"maps"
	"slices"
)

// Snapshot is an immutable point-in-time copy of all simulated body state.
type Snapshot struct {
	Positions  map[BodyID]Vec     `json:"positions"`
	Rotations  map[BodyID]float64 `json:"rotations"`
	Velocities map[BodyID]Vec     `json:"velocities"`
	Frame      uint64             `json:"frame"`
	Time       float64            `json:"time"`
}

func NewSnapshot(frame uint64, t float64, capacity int) *Snapshot {
	return &Snapshot{
		Positions:  make(map[BodyID]Vec, capacity),
		Rotations:  make(map[BodyID]float64, capacity),
		Velocities: make(map[BodyID]Vec, capacity),
		Frame:      frame,
		Time:       t,
	}
}

// Put is only valid while the snapshot is being built.
func (s *Snapshot) Put(id BodyID, b BodyState) {
	s.Positions[id] = b.Position
	s.Rotations[id] = b.Rotation
	s.Velocities[id] = b.Velocity
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Positions)
}

func (s *Snapshot) Body(id BodyID) (BodyState, bool) {
	if s == nil {
		return BodyState{}, false
	}
	p, ok := s.Positions[id]
	if !ok {
		return BodyState{}, false
	}
	return BodyState{Position: p, Rotation: s.Rotations[id], Velocity: s.Velocities[id]}, true
}

// IDs returns the live body ids in ascending order.
func (s *Snapshot) IDs() []BodyID {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.Positions))
}

func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return NewSnapshot(0, 0, 0)
	}
	return &Snapshot{
		Positions:  maps.Clone(s.Positions),
		Rotations:  maps.Clone(s.Rotations),
		Velocities: maps.Clone(s.Velocities),
		Frame:      s.Frame,
		Time:       s.Time,
	}
}
