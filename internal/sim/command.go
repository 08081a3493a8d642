package sim

import (
	"fmt"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

// Command is one requested mutation or step. The set of variants is closed;
// the worker switches on the concrete type.
type Command interface {
	command()
	fmt.Stringer
}

type Step struct {
	Dt float64
}

type SetGravity struct {
	Gravity dynamo.Vec
}

type CreateRigidBody struct {
	ID       dynamo.BodyID
	Type     dynamo.BodyType
	Position dynamo.Vec
}

type CreateCollider struct {
	ID     dynamo.ColliderID
	Parent *dynamo.BodyID
	Shape  dynamo.Shape
	// Position is the world position of an unparented collider.
	Position dynamo.Vec
}

type RemoveRigidBody struct {
	ID dynamo.BodyID
}

type ApplyForce struct {
	ID    dynamo.BodyID
	Force dynamo.Vec
}

type ApplyImpulse struct {
	ID      dynamo.BodyID
	Impulse dynamo.Vec
}

type SetVelocity struct {
	ID       dynamo.BodyID
	Velocity dynamo.Vec
}

type SetPosition struct {
	ID       dynamo.BodyID
	Position dynamo.Vec
}

type Shutdown struct{}

func (Step) command()            {}
func (SetGravity) command()      {}
func (CreateRigidBody) command() {}
func (CreateCollider) command()  {}
func (RemoveRigidBody) command() {}
func (ApplyForce) command()      {}
func (ApplyImpulse) command()    {}
func (SetVelocity) command()     {}
func (SetPosition) command()     {}
func (Shutdown) command()        {}

func (c Step) String() string { return fmt.Sprintf("step(%g)", c.Dt) }
func (c SetGravity) String() string {
	return fmt.Sprintf("set_gravity(%g,%g)", c.Gravity.X(), c.Gravity.Y())
}
func (c CreateRigidBody) String() string {
	return fmt.Sprintf("create_rigid_body(%d,%s)", c.ID, c.Type)
}
func (c CreateCollider) String() string {
	if c.Parent == nil {
		return fmt.Sprintf("create_collider(%d,-,%v)", c.ID, c.Shape)
	}
	return fmt.Sprintf("create_collider(%d,%d,%v)", c.ID, *c.Parent, c.Shape)
}
func (c RemoveRigidBody) String() string { return fmt.Sprintf("remove_rigid_body(%d)", c.ID) }
func (c ApplyForce) String() string      { return fmt.Sprintf("apply_force(%d)", c.ID) }
func (c ApplyImpulse) String() string    { return fmt.Sprintf("apply_impulse(%d)", c.ID) }
func (c SetVelocity) String() string     { return fmt.Sprintf("set_velocity(%d)", c.ID) }
func (c SetPosition) String() string     { return fmt.Sprintf("set_position(%d)", c.ID) }
func (Shutdown) String() string          { return "shutdown" }
