// Package kernel wraps the physics stepping library behind the small surface
// the simulation worker needs. A Kernel is not safe for concurrent use; the
// worker goroutine owns it exclusively.
package kernel

import "github.com/san-kum/rigidsim/internal/dynamo"

// Handle is an opaque reference to a body or collider inside a Kernel.
type Handle uint32

type BodyDef struct {
	Type     dynamo.BodyType
	Position dynamo.Vec
}

type ColliderDef struct {
	Shape dynamo.Shape
	// Position places an unparented collider in the world.
	Position dynamo.Vec
	Density  float64
}

type Kernel interface {
	Step(gravity dynamo.Vec, dt float64)
	InsertBody(def BodyDef) Handle
	RemoveBody(h Handle)
	InsertCollider(def ColliderDef, parent Handle, parented bool) (Handle, error)
	ApplyForce(h Handle, force dynamo.Vec)
	ApplyImpulse(h Handle, impulse dynamo.Vec)
	SetLinearVelocity(h Handle, v dynamo.Vec)
	SetTranslation(h Handle, p dynamo.Vec)
	Bodies(fn func(h Handle, s dynamo.BodyState))
	Len() int
}

// Box2DName selects the box2d kernel in New.
const Box2DName = "box2d"

// New builds a kernel by name: "box2d" (also the empty name) or one of the
// ballistic integrators. Iteration counts only apply to box2d and damping
// only to the ballistic kernel.
func New(name string, velocityIterations, positionIterations int, damping float64) (Kernel, error) {
	if name == "" || name == Box2DName {
		return NewBox2D(velocityIterations, positionIterations), nil
	}
	return NewBallistic(name, damping)
}
