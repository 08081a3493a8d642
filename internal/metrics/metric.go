// Package metrics reduces published snapshots to scalar summaries.
package metrics

import (
	"sync"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

type Metric interface {
	Name() string
	Observe(s *dynamo.Snapshot)
	Value() float64
	Reset()
}

// Observer feeds every published snapshot to a set of metrics. It satisfies
// sim.Observer and may be read from other goroutines.
type Observer struct {
	mu      sync.Mutex
	metrics []Metric
}

func NewObserver(ms ...Metric) *Observer {
	return &Observer{metrics: ms}
}

func (o *Observer) OnPublish(s *dynamo.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.metrics {
		m.Observe(s)
	}
}

func (o *Observer) Values() map[string]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]float64, len(o.metrics))
	for _, m := range o.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (o *Observer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.metrics {
		m.Reset()
	}
}

// Default is the set reported by the CLI.
func Default(gravity float64) []Metric {
	return []Metric{
		NewKineticEnergy(),
		NewEnergyDrift(gravity),
		NewMaxSpeed(),
		NewMinHeight(),
		NewBodyCount(),
		NewMeanSpeed(),
	}
}
