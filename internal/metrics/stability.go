package metrics

import (
	"math"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

// MaxSpeed is the highest body speed seen since the last Reset.
type MaxSpeed struct {
	name string
	max  float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(s *dynamo.Snapshot) {
	for _, v := range s.Velocities {
		m.max = math.Max(m.max, v.Len())
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }

func (m *MaxSpeed) Reset() { m.max = 0 }

// MinHeight is the lowest body y seen since the last Reset. It reports 0
// before any body was observed.
type MinHeight struct {
	name    string
	min     float64
	samples int
}

func NewMinHeight() *MinHeight {
	return &MinHeight{name: "min_height", min: math.Inf(1)}
}

func (m *MinHeight) Name() string { return m.name }

func (m *MinHeight) Observe(s *dynamo.Snapshot) {
	for _, p := range s.Positions {
		m.min = math.Min(m.min, p.Y())
		m.samples++
	}
}

func (m *MinHeight) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.min
}

func (m *MinHeight) Reset() {
	m.min = math.Inf(1)
	m.samples = 0
}

type BodyCount struct {
	name  string
	count int
}

func NewBodyCount() *BodyCount {
	return &BodyCount{name: "bodies"}
}

func (b *BodyCount) Name() string { return b.name }

func (b *BodyCount) Observe(s *dynamo.Snapshot) { b.count = s.Len() }

func (b *BodyCount) Value() float64 { return float64(b.count) }

func (b *BodyCount) Reset() { b.count = 0 }
