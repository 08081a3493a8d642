package sim

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/kernel"
)

// Engine is the caller-facing side of the simulation. Its methods are safe
// for concurrent use. Senders never block and never report errors; failures
// only show up as missing state in later snapshots.
type Engine struct {
	ctl   *control
	buf   *DoubleBuffer
	stats *counters
	frame atomic.Uint64
}

type Stats struct {
	Commands uint64
	Steps    uint64
	// Ignored counts commands the worker treated as no-ops.
	Ignored uint64
	// Dropped counts sends rejected because the worker was gone or the queue full.
	Dropped uint64
	// Discarded counts commands consumed while shutting down.
	Discarded uint64
	Pending   int
	Bodies    int
	LastStep  time.Duration
}

// New starts the worker goroutine and returns its façade. Call Shutdown (or
// Close) when done; an Engine that becomes unreachable is shut down by the
// runtime as a last resort.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	k := o.kernel
	if k == nil {
		var err error
		if k, err = kernel.New(cfg.Kernel, cfg.VelocityIterations, cfg.PositionIterations, cfg.Damping); err != nil {
			return nil, err
		}
	}

	ctl := newControl(cfg.MaxPending)
	ctl.running.Store(true)
	e := &Engine{
		ctl:   ctl,
		buf:   NewDoubleBuffer(),
		stats: &counters{},
	}

	w := newWorker(cfg, k, ctl, e.buf, e.stats, o)
	go w.run()

	runtime.AddCleanup(e, func(c *control) { c.shutdown() }, ctl)
	return e, nil
}

func (e *Engine) Send(cmd Command) {
	if cmd == nil {
		return
	}
	if !e.ctl.queue.push(cmd) {
		e.stats.dropped.Add(1)
	}
}

// Step requests one integration step of dt seconds and bumps the advisory
// frame counter.
func (e *Engine) Step(dt float64) {
	e.frame.Add(1)
	e.Send(Step{Dt: dt})
}

func (e *Engine) SetGravity(g dynamo.Vec) { e.Send(SetGravity{Gravity: g}) }

func (e *Engine) CreateRigidBody(id dynamo.BodyID, t dynamo.BodyType, pos dynamo.Vec) {
	e.Send(CreateRigidBody{ID: id, Type: t, Position: pos})
}

// CreateCollider attaches shape to parent, or places it as static world
// geometry at the origin when parent is nil.
func (e *Engine) CreateCollider(id dynamo.ColliderID, parent *dynamo.BodyID, shape dynamo.Shape) {
	e.Send(CreateCollider{ID: id, Parent: parent, Shape: shape})
}

func (e *Engine) RemoveRigidBody(id dynamo.BodyID) { e.Send(RemoveRigidBody{ID: id}) }

func (e *Engine) ApplyForce(id dynamo.BodyID, f dynamo.Vec) {
	e.Send(ApplyForce{ID: id, Force: f})
}

func (e *Engine) ApplyImpulse(id dynamo.BodyID, j dynamo.Vec) {
	e.Send(ApplyImpulse{ID: id, Impulse: j})
}

func (e *Engine) SetPosition(id dynamo.BodyID, p dynamo.Vec) {
	e.Send(SetPosition{ID: id, Position: p})
}

func (e *Engine) SetVelocity(id dynamo.BodyID, v dynamo.Vec) {
	e.Send(SetVelocity{ID: id, Velocity: v})
}

// ReadState returns a private copy of the latest published snapshot.
func (e *Engine) ReadState() *dynamo.Snapshot { return e.buf.Read() }

func (e *Engine) GetPosition(id dynamo.BodyID) (p dynamo.Vec, ok bool) {
	e.buf.View(func(s *dynamo.Snapshot) { p, ok = s.Positions[id] })
	return p, ok
}

func (e *Engine) GetRotation(id dynamo.BodyID) (r float64, ok bool) {
	e.buf.View(func(s *dynamo.Snapshot) { r, ok = s.Rotations[id] })
	return r, ok
}

func (e *Engine) GetVelocity(id dynamo.BodyID) (v dynamo.Vec, ok bool) {
	e.buf.View(func(s *dynamo.Snapshot) { v, ok = s.Velocities[id] })
	return v, ok
}

// Frame is the number of Step calls made through this Engine. It is advisory;
// PublishedFrame is the frame readers actually see.
func (e *Engine) Frame() uint64 { return e.frame.Load() }

func (e *Engine) PublishedFrame() uint64 { return e.buf.Frame() }

func (e *Engine) IsRunning() bool { return e.ctl.running.Load() }

func (e *Engine) Stats() Stats {
	return Stats{
		Commands:  e.stats.commands.Load(),
		Steps:     e.stats.steps.Load(),
		Ignored:   e.stats.ignored.Load(),
		Dropped:   e.stats.dropped.Load(),
		Discarded: e.stats.discarded.Load(),
		Pending:   e.ctl.queue.len(),
		Bodies:    int(e.stats.bodies.Load()),
		LastStep:  time.Duration(e.stats.lastStep.Load()),
	}
}

// Shutdown stops the worker after it has consumed its queue and waits for it
// to exit. It is safe to call more than once.
func (e *Engine) Shutdown() { e.ctl.shutdown() }

func (e *Engine) Close() error {
	e.Shutdown()
	return nil
}

// Done is closed once the worker has exited, whatever the cause.
func (e *Engine) Done() <-chan struct{} { return e.ctl.done }
