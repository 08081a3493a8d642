package automation

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/sim"
)

// Driver plays a scenario against an engine: on each tick it sends the
// events due at the current frame and then one Step. It is the producer
// that owns stepping; other goroutines may send commands alongside it.
type Driver struct {
	eng    Sender
	dt     float64
	events []config.EventConfig
	next   int
	frame  uint64
	log    *log.Logger
}

func NewDriver(eng Sender, sc *Scenario, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	events := slices.Clone(sc.Scene.Events)
	slices.SortStableFunc(events, func(a, b config.EventConfig) int {
		return cmp.Compare(a.AtFrame, b.AtFrame)
	})
	return &Driver{eng: eng, dt: sc.Dt, events: events, log: logger}
}

// Frame is the number of steps issued so far.
func (d *Driver) Frame() uint64 { return d.frame }

func (d *Driver) Tick() error {
	for d.next < len(d.events) && d.events[d.next].AtFrame <= d.frame {
		ev := d.events[d.next]
		d.next++
		if err := d.fire(ev); err != nil {
			return fmt.Errorf("frame %d: %w", d.frame, err)
		}
	}
	d.eng.Step(d.dt)
	d.frame++
	return nil
}

func (d *Driver) fire(ev config.EventConfig) error {
	id := dynamo.BodyID(ev.Body)
	v := ev.Value.Vec()
	d.log.Printf("event %s body=%d at frame %d", ev.Kind, ev.Body, d.frame)

	switch ev.Kind {
	case "impulse":
		d.eng.Send(sim.ApplyImpulse{ID: id, Impulse: v})
	case "force":
		d.eng.Send(sim.ApplyForce{ID: id, Force: v})
	case "velocity":
		d.eng.Send(sim.SetVelocity{ID: id, Velocity: v})
	case "position":
		d.eng.Send(sim.SetPosition{ID: id, Position: v})
	case "remove":
		d.eng.Send(sim.RemoveRigidBody{ID: id})
	case "gravity":
		d.eng.Send(sim.SetGravity{Gravity: v})
	case "spawn":
		if ev.Spawn == nil {
			return fmt.Errorf("spawn without a body")
		}
		return Spawn(d.eng, *ev.Spawn)
	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownEvent, ev.Kind)
	}
	return nil
}

// Run ticks frames times as fast as commands can be queued.
func (d *Driver) Run(ctx context.Context, frames int) error {
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunRealtime ticks at rate Hz until frames ticks have been issued (0 means
// no limit) or ctx is done.
func (d *Driver) RunRealtime(ctx context.Context, rate float64, frames int) error {
	if rate <= 0 {
		return fmt.Errorf("%w: rate %g", dynamo.ErrInvalidConfig, rate)
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	for i := 0; frames == 0 || i < frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := d.Tick(); err != nil {
			return err
		}
	}
	return nil
}
