package sim

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/kernel"
)

type workerState uint8

const (
	stateRunning workerState = iota
	stateDraining
	stateStopped
)

func (s workerState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// control is shared by the Engine and its worker. It holds no reference to
// the Engine so that an abandoned Engine can still be collected.
type control struct {
	queue   *queue
	running atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func newControl(limit int) *control {
	return &control{queue: newQueue(limit), done: make(chan struct{})}
}

func (c *control) shutdown() {
	c.once.Do(func() {
		c.running.Store(false)
		c.queue.pushControl(Shutdown{})
	})
	<-c.done
}

type counters struct {
	commands  atomic.Uint64
	steps     atomic.Uint64
	ignored   atomic.Uint64
	dropped   atomic.Uint64
	discarded atomic.Uint64
	bodies    atomic.Int64
	lastStep  atomic.Int64
}

type worker struct {
	cfg       Config
	kern      kernel.Kernel
	ctl       *control
	buf       *DoubleBuffer
	stats     *counters
	log       *log.Logger
	verbose   bool
	observers []Observer

	state     workerState
	gravity   dynamo.Vec
	frame     uint64
	simTime   float64
	bodies    biMap[dynamo.BodyID, kernel.Handle]
	colliders biMap[dynamo.ColliderID, kernel.Handle]
	children  map[dynamo.BodyID][]dynamo.ColliderID
}

func newWorker(cfg Config, k kernel.Kernel, ctl *control, buf *DoubleBuffer, stats *counters, o options) *worker {
	return &worker{
		cfg:       cfg,
		kern:      k,
		ctl:       ctl,
		buf:       buf,
		stats:     stats,
		log:       o.logger,
		verbose:   o.verbose,
		observers: o.observers,
		gravity:   cfg.Gravity,
		bodies:    newBiMap[dynamo.BodyID, kernel.Handle](),
		colliders: newBiMap[dynamo.ColliderID, kernel.Handle](),
		children:  make(map[dynamo.BodyID][]dynamo.ColliderID),
	}
}

func (w *worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer w.stop()
	defer func() {
		if r := recover(); r != nil {
			w.log.Printf("worker panic at frame %d: %v", w.frame, r)
		}
	}()

	w.log.Printf("worker started")
	timer := time.NewTimer(w.cfg.RecvTimeout)
	timer.Stop()

	var batch []Command
	for w.state == stateRunning {
		// Read the flag before draining: anything queued before it was
		// cleared is then guaranteed to be in this batch.
		stopping := !w.ctl.running.Load()
		batch = w.ctl.queue.drain(batch[:0], timer, w.cfg.RecvTimeout)
		if len(batch) == 0 && stopping {
			w.state = stateDraining
			break
		}
		for i, cmd := range batch {
			if w.state != stateRunning {
				w.stats.discarded.Add(uint64(len(batch) - i))
				break
			}
			w.dispatch(cmd)
		}
		clear(batch)
	}
	w.drainBacklog()
}

// drainBacklog rejects further sends and consumes whatever is still queued.
// Nothing is applied or published.
func (w *worker) drainBacklog() {
	w.ctl.queue.close()
	rest := w.ctl.queue.take(nil)
	if len(rest) > 0 {
		w.stats.discarded.Add(uint64(len(rest)))
		if w.verbose {
			w.log.Printf("discarded %d commands queued after shutdown", len(rest))
		}
	}
}

func (w *worker) stop() {
	prev := w.state
	w.state = stateStopped
	w.ctl.queue.close()
	w.ctl.running.Store(false)
	w.log.Printf("worker stopped at frame %d (%s)", w.frame, prev)
	close(w.ctl.done)
}

func (w *worker) dispatch(cmd Command) {
	w.stats.commands.Add(1)

	var err error
	switch c := cmd.(type) {
	case Step:
		w.step(c.Dt)
	case SetGravity:
		if err = finite(c.Gravity); err == nil {
			w.gravity = c.Gravity
		}
	case CreateRigidBody:
		err = w.createBody(c)
	case CreateCollider:
		err = w.createCollider(c)
	case RemoveRigidBody:
		err = w.removeBody(c.ID)
	case ApplyForce:
		err = w.withBody(c.ID, c.Force, w.kern.ApplyForce)
	case ApplyImpulse:
		err = w.withBody(c.ID, c.Impulse, w.kern.ApplyImpulse)
	case SetVelocity:
		err = w.withBody(c.ID, c.Velocity, w.kern.SetLinearVelocity)
	case SetPosition:
		err = w.withBody(c.ID, c.Position, w.kern.SetTranslation)
	case Shutdown:
		w.state = stateDraining
	default:
		err = fmt.Errorf("unsupported command %T", cmd)
	}

	if err != nil {
		w.stats.ignored.Add(1)
		if w.verbose {
			w.log.Printf("ignored: %v", &dynamo.CommandError{Frame: w.frame, Command: cmd.String(), Wrapped: err})
		}
	}
}

func finite(v dynamo.Vec) error {
	if !dynamo.IsFinite(v) {
		return dynamo.ErrNonFinite
	}
	return nil
}

func (w *worker) clampDt(dt float64) float64 {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < w.cfg.MinDt {
		return w.cfg.MinDt
	}
	return dt
}

func (w *worker) step(dt float64) {
	start := time.Now()
	dt = w.clampDt(dt)
	w.kern.Step(w.gravity, dt)
	w.frame++
	w.simTime += dt

	snap := dynamo.NewSnapshot(w.frame, w.simTime, w.bodies.len())
	w.kern.Bodies(func(h kernel.Handle, s dynamo.BodyState) {
		if id, ok := w.bodies.byValue(h); ok {
			snap.Put(id, s)
		}
	})
	w.buf.Publish(snap)

	w.stats.steps.Add(1)
	w.stats.lastStep.Store(int64(time.Since(start)))
	for _, o := range w.observers {
		o.OnPublish(snap)
	}
}

func (w *worker) createBody(c CreateRigidBody) error {
	if _, ok := w.bodies.byKey(c.ID); ok {
		return dynamo.ErrDuplicateBody
	}
	if err := finite(c.Position); err != nil {
		return err
	}
	h := w.kern.InsertBody(kernel.BodyDef{Type: c.Type, Position: c.Position})
	w.bodies.put(c.ID, h)
	w.stats.bodies.Store(int64(w.bodies.len()))
	return nil
}

func (w *worker) createCollider(c CreateCollider) error {
	if _, ok := w.colliders.byKey(c.ID); ok {
		return dynamo.ErrDuplicateCollider
	}
	if err := finite(c.Position); err != nil {
		return err
	}

	var (
		parent   kernel.Handle
		parented bool
	)
	if c.Parent != nil {
		h, ok := w.bodies.byKey(*c.Parent)
		if !ok {
			return dynamo.ErrUnknownBody
		}
		parent, parented = h, true
	}

	h, err := w.kern.InsertCollider(kernel.ColliderDef{Shape: c.Shape, Position: c.Position}, parent, parented)
	if err != nil {
		return err
	}
	w.colliders.put(c.ID, h)
	if parented {
		w.children[*c.Parent] = append(w.children[*c.Parent], c.ID)
	}
	return nil
}

func (w *worker) removeBody(id dynamo.BodyID) error {
	h, ok := w.bodies.remove(id)
	if !ok {
		return dynamo.ErrUnknownBody
	}
	w.kern.RemoveBody(h)
	for _, cid := range w.children[id] {
		w.colliders.remove(cid)
	}
	delete(w.children, id)
	w.stats.bodies.Store(int64(w.bodies.len()))
	return nil
}

func (w *worker) withBody(id dynamo.BodyID, v dynamo.Vec, fn func(kernel.Handle, dynamo.Vec)) error {
	h, ok := w.bodies.byKey(id)
	if !ok {
		return dynamo.ErrUnknownBody
	}
	if err := finite(v); err != nil {
		return err
	}
	fn(h, v)
	return nil
}
