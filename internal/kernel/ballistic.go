package kernel

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

// Integration methods understood by NewBallistic.
const (
	Euler  = "euler"
	Verlet = "verlet"
	RK4    = "rk4"
)

// derive fills dx with the time derivative of the packed state x. The first
// half of x holds positions, the second half velocities.
type derive func(x, dx []float64)

type integrator interface {
	step(f derive, x []float64, dt float64) []float64
}

type point struct {
	typ     dynamo.BodyType
	pos     dynamo.Vec
	vel     dynamo.Vec
	force   dynamo.Vec
	mass    float64
	massSet bool
}

// Ballistic is a collision-free Kernel that integrates every body as a point
// mass under gravity, applied forces and linear damping. Colliders only add
// mass. It is meant for large headless runs and for comparing integrators.
type Ballistic struct {
	method    string
	integ     integrator
	damping   float64
	next      Handle
	bodies    map[Handle]*point
	colliders map[Handle]Handle
	anchors   int

	order   []Handle
	state   []float64
	accel   []float64
	scratch []float64
}

// NewBallistic returns a point-mass kernel stepping with the named method.
// Damping is a per-second linear drag coefficient and must not be negative.
func NewBallistic(method string, damping float64) (*Ballistic, error) {
	var integ integrator
	switch method {
	case Euler:
		integ = semiImplicitEuler{}
	case Verlet, "":
		method = Verlet
		integ = &velocityVerlet{}
	case RK4:
		integ = &rk4{}
	default:
		return nil, fmt.Errorf("%w: unknown integrator %q", dynamo.ErrInvalidConfig, method)
	}
	if damping < 0 || math.IsNaN(damping) || math.IsInf(damping, 0) {
		return nil, fmt.Errorf("%w: damping must be a non-negative number, got %g", dynamo.ErrInvalidConfig, damping)
	}
	return &Ballistic{
		method:    method,
		integ:     integ,
		damping:   damping,
		bodies:    make(map[Handle]*point),
		colliders: make(map[Handle]Handle),
	}, nil
}

// Method reports the integrator in use.
func (k *Ballistic) Method() string { return k.method }

func (k *Ballistic) alloc() Handle {
	k.next++
	return k.next
}

func (k *Ballistic) Step(gravity dynamo.Vec, dt float64) {
	k.order = k.order[:0]
	for h, b := range k.bodies {
		switch b.typ {
		case dynamo.Dynamic:
			k.order = append(k.order, h)
		case dynamo.Kinematic:
			b.pos = b.pos.Add(b.vel.Mul(dt))
		}
	}
	slices.Sort(k.order)

	n := len(k.order)
	if n > 0 {
		half := 2 * n
		k.state = resize(k.state, 2*half)
		k.accel = resize(k.accel, half)
		for i, h := range k.order {
			b := k.bodies[h]
			k.state[2*i], k.state[2*i+1] = b.pos.X(), b.pos.Y()
			k.state[half+2*i], k.state[half+2*i+1] = b.vel.X(), b.vel.Y()
			a := gravity.Add(b.force.Mul(1 / b.mass))
			k.accel[2*i], k.accel[2*i+1] = a.X(), a.Y()
		}

		next := k.integ.step(k.derive, k.state, dt)
		for i, h := range k.order {
			b := k.bodies[h]
			b.pos = dynamo.V(next[2*i], next[2*i+1])
			b.vel = dynamo.V(next[half+2*i], next[half+2*i+1])
		}
	}

	for _, b := range k.bodies {
		b.force = dynamo.Vec{}
	}
}

func (k *Ballistic) derive(x, dx []float64) {
	half := len(x) / 2
	copy(dx[:half], x[half:])
	for i := 0; i < half; i++ {
		dx[half+i] = k.accel[i] - k.damping*x[half+i]
	}
}

func (k *Ballistic) InsertBody(def BodyDef) Handle {
	h := k.alloc()
	k.bodies[h] = &point{typ: def.Type, pos: def.Position, mass: 1}
	return h
}

func (k *Ballistic) RemoveBody(h Handle) {
	if _, ok := k.bodies[h]; !ok {
		return
	}
	for ch, parent := range k.colliders {
		if parent == h {
			delete(k.colliders, ch)
		}
	}
	delete(k.bodies, h)
}

func shapeArea(s dynamo.Shape) float64 {
	switch s := s.(type) {
	case dynamo.Cuboid:
		return 4 * s.HalfExtents.X() * s.HalfExtents.Y()
	case dynamo.Ball:
		return math.Pi * s.Radius * s.Radius
	}
	return 0
}

// InsertCollider adds the shape's mass to the parent. Unparented colliders
// are accepted and never move.
func (k *Ballistic) InsertCollider(def ColliderDef, parent Handle, parented bool) (Handle, error) {
	if def.Shape == nil {
		return 0, fmt.Errorf("%w: nil shape", dynamo.ErrInvalidShape)
	}
	if err := def.Shape.Validate(); err != nil {
		return 0, err
	}
	if !parented {
		k.anchors++
		return k.alloc(), nil
	}
	b, ok := k.bodies[parent]
	if !ok {
		return 0, dynamo.ErrUnknownBody
	}

	density := def.Density
	if density <= 0 {
		density = DefaultDensity
	}
	if m := density * shapeArea(def.Shape); m > 0 {
		if !b.massSet {
			b.mass = 0
			b.massSet = true
		}
		b.mass += m
	}

	h := k.alloc()
	k.colliders[h] = parent
	return h, nil
}

func (k *Ballistic) dynamic(h Handle) *point {
	if b, ok := k.bodies[h]; ok && b.typ == dynamo.Dynamic {
		return b
	}
	return nil
}

func (k *Ballistic) ApplyForce(h Handle, force dynamo.Vec) {
	if b := k.dynamic(h); b != nil {
		b.force = b.force.Add(force)
	}
}

func (k *Ballistic) ApplyImpulse(h Handle, impulse dynamo.Vec) {
	if b := k.dynamic(h); b != nil {
		b.vel = b.vel.Add(impulse.Mul(1 / b.mass))
	}
}

func (k *Ballistic) SetLinearVelocity(h Handle, v dynamo.Vec) {
	if b, ok := k.bodies[h]; ok && b.typ != dynamo.Static {
		b.vel = v
	}
}

func (k *Ballistic) SetTranslation(h Handle, p dynamo.Vec) {
	if b, ok := k.bodies[h]; ok {
		b.pos = p
	}
}

func (k *Ballistic) Bodies(fn func(h Handle, s dynamo.BodyState)) {
	for h, b := range k.bodies {
		fn(h, dynamo.BodyState{Position: b.pos, Velocity: b.vel})
	}
}

func (k *Ballistic) Len() int { return len(k.bodies) }

// Colliders reports how many colliders are live, anchors included.
func (k *Ballistic) Colliders() int { return len(k.colliders) + k.anchors }

func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

type semiImplicitEuler struct{}

func (semiImplicitEuler) step(f derive, x []float64, dt float64) []float64 {
	n := len(x)
	half := n / 2
	dx := make([]float64, n)
	f(x, dx)

	result := make([]float64, n)
	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + dx[half+i]*dt
		result[i] = x[i] + result[half+i]*dt
	}
	return result
}

type velocityVerlet struct {
	dx, dxNew, scratch []float64
}

func (v *velocityVerlet) step(f derive, x []float64, dt float64) []float64 {
	n := len(x)
	half := n / 2
	v.dx = resize(v.dx, n)
	v.dxNew = resize(v.dxNew, n)
	v.scratch = resize(v.scratch, n)

	f(x, v.dx)
	result := make([]float64, n)
	dt2 := dt * dt
	for i := 0; i < half; i++ {
		result[i] = x[i] + x[half+i]*dt + 0.5*v.dx[half+i]*dt2
	}

	// Predict the velocity so velocity-dependent drag is evaluated at t+dt.
	for i := 0; i < half; i++ {
		v.scratch[i] = result[i]
		v.scratch[half+i] = x[half+i] + v.dx[half+i]*dt
	}
	f(v.scratch, v.dxNew)

	halfDt := 0.5 * dt
	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + (v.dx[half+i]+v.dxNew[half+i])*halfDt
	}
	return result
}

type rk4 struct {
	k1, k2, k3, k4, scratch []float64
}

func (r *rk4) step(f derive, x []float64, dt float64) []float64 {
	n := len(x)
	r.k1 = resize(r.k1, n)
	r.k2 = resize(r.k2, n)
	r.k3 = resize(r.k3, n)
	r.k4 = resize(r.k4, n)
	r.scratch = resize(r.scratch, n)

	f(x, r.k1)
	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	f(r.scratch, r.k2)
	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	f(r.scratch, r.k3)
	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	f(r.scratch, r.k4)

	result := make([]float64, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return result
}
