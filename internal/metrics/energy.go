package metrics

import (
	"math"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

// KineticEnergy is the total translational kinetic energy of the latest
// snapshot, assuming unit mass per body.
type KineticEnergy struct {
	name  string
	value float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(s *dynamo.Snapshot) {
	e.value = kinetic(s)
}

func (e *KineticEnergy) Value() float64 { return e.value }

func (e *KineticEnergy) Reset() { e.value = 0 }

func kinetic(s *dynamo.Snapshot) float64 {
	var ke float64
	for _, v := range s.Velocities {
		ke += 0.5 * v.Dot(v)
	}
	return ke
}

// EnergyDrift tracks the largest relative change of kinetic plus potential
// energy against the first observed frame. Bodies added or removed after
// the first frame show up as drift.
type EnergyDrift struct {
	name          string
	gravity       float64
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

// NewEnergyDrift takes the magnitude of gravity along -y.
func NewEnergyDrift(gravity float64) *EnergyDrift {
	return &EnergyDrift{name: "energy_drift", gravity: gravity}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s *dynamo.Snapshot) {
	energy := kinetic(s)
	for _, p := range s.Positions {
		energy += e.gravity * p.Y()
	}

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
