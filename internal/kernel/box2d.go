package kernel

import (
	"fmt"

	"github.com/ByteArena/box2d"
	"github.com/san-kum/rigidsim/internal/dynamo"
)

const (
	DefaultVelocityIterations = 8
	DefaultPositionIterations = 3
	DefaultDensity            = 1.0
)

type collider struct {
	fixture *box2d.B2Fixture
	body    *box2d.B2Body
	parent  Handle
	anchor  bool
}

// Box2D is a Kernel backed by a box2d world.
type Box2D struct {
	world     *box2d.B2World
	velIters  int
	posIters  int
	next      Handle
	bodies    map[Handle]*box2d.B2Body
	colliders map[Handle]collider
}

func NewBox2D(velocityIterations, positionIterations int) *Box2D {
	if velocityIterations <= 0 {
		velocityIterations = DefaultVelocityIterations
	}
	if positionIterations <= 0 {
		positionIterations = DefaultPositionIterations
	}
	// The world must not move after bodies are created: they keep a pointer to it.
	w := box2d.MakeB2World(box2d.MakeB2Vec2(0, 0))
	return &Box2D{
		world:     &w,
		velIters:  velocityIterations,
		posIters:  positionIterations,
		bodies:    make(map[Handle]*box2d.B2Body),
		colliders: make(map[Handle]collider),
	}
}

func toB2(v dynamo.Vec) box2d.B2Vec2 { return box2d.MakeB2Vec2(v.X(), v.Y()) }

func fromB2(v box2d.B2Vec2) dynamo.Vec { return dynamo.V(v.X, v.Y) }

func b2Type(t dynamo.BodyType) uint8 {
	switch t {
	case dynamo.Static:
		return box2d.B2BodyType.B2_staticBody
	case dynamo.Kinematic:
		return box2d.B2BodyType.B2_kinematicBody
	default:
		return box2d.B2BodyType.B2_dynamicBody
	}
}

func (k *Box2D) alloc() Handle {
	k.next++
	return k.next
}

func (k *Box2D) Step(gravity dynamo.Vec, dt float64) {
	k.world.SetGravity(toB2(gravity))
	k.world.Step(dt, k.velIters, k.posIters)
}

func (k *Box2D) InsertBody(def BodyDef) Handle {
	h := k.alloc()
	bd := box2d.MakeB2BodyDef()
	bd.Type = b2Type(def.Type)
	bd.Position = toB2(def.Position)
	bd.UserData = h
	k.bodies[h] = k.world.CreateBody(&bd)
	return h
}

func (k *Box2D) RemoveBody(h Handle) {
	b, ok := k.bodies[h]
	if !ok {
		return
	}
	for ch, c := range k.colliders {
		if !c.anchor && c.parent == h {
			delete(k.colliders, ch)
		}
	}
	k.world.DestroyBody(b)
	delete(k.bodies, h)
}

func makeShape(s dynamo.Shape) (box2d.B2ShapeInterface, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil shape", dynamo.ErrInvalidShape)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s := s.(type) {
	case dynamo.Cuboid:
		poly := box2d.MakeB2PolygonShape()
		poly.SetAsBox(s.HalfExtents.X(), s.HalfExtents.Y())
		return &poly, nil
	case dynamo.Ball:
		circle := box2d.MakeB2CircleShape()
		circle.M_radius = s.Radius
		return &circle, nil
	}
	return nil, fmt.Errorf("%w: %T", dynamo.ErrInvalidShape, s)
}

// InsertCollider attaches a fixture to the parent body, or to a fresh static
// anchor body at def.Position when parented is false.
func (k *Box2D) InsertCollider(def ColliderDef, parent Handle, parented bool) (Handle, error) {
	shape, err := makeShape(def.Shape)
	if err != nil {
		return 0, err
	}

	var body *box2d.B2Body
	if parented {
		b, ok := k.bodies[parent]
		if !ok {
			return 0, dynamo.ErrUnknownBody
		}
		body = b
	} else {
		bd := box2d.MakeB2BodyDef()
		bd.Type = box2d.B2BodyType.B2_staticBody
		bd.Position = toB2(def.Position)
		body = k.world.CreateBody(&bd)
	}

	density := def.Density
	if density <= 0 {
		density = DefaultDensity
	}
	fd := box2d.MakeB2FixtureDef()
	fd.Shape = shape
	fd.Density = density
	fixture := body.CreateFixtureFromDef(&fd)

	h := k.alloc()
	k.colliders[h] = collider{fixture: fixture, body: body, parent: parent, anchor: !parented}
	return h, nil
}

func (k *Box2D) ApplyForce(h Handle, force dynamo.Vec) {
	if b, ok := k.bodies[h]; ok {
		b.ApplyForceToCenter(toB2(force), true)
	}
}

func (k *Box2D) ApplyImpulse(h Handle, impulse dynamo.Vec) {
	if b, ok := k.bodies[h]; ok {
		b.ApplyLinearImpulse(toB2(impulse), b.GetWorldCenter(), true)
	}
}

func (k *Box2D) SetLinearVelocity(h Handle, v dynamo.Vec) {
	if b, ok := k.bodies[h]; ok {
		b.SetLinearVelocity(toB2(v))
	}
}

func (k *Box2D) SetTranslation(h Handle, p dynamo.Vec) {
	if b, ok := k.bodies[h]; ok {
		b.SetTransform(toB2(p), b.GetAngle())
		b.SetAwake(true)
	}
}

// Bodies visits every body created through InsertBody. Anchor bodies of
// unparented colliders are skipped.
func (k *Box2D) Bodies(fn func(h Handle, s dynamo.BodyState)) {
	for b := k.world.GetBodyList(); b != nil; b = b.GetNext() {
		h, ok := b.GetUserData().(Handle)
		if !ok {
			continue
		}
		fn(h, dynamo.BodyState{
			Position: fromB2(b.GetPosition()),
			Rotation: b.GetAngle(),
			Velocity: fromB2(b.GetLinearVelocity()),
		})
	}
}

func (k *Box2D) Len() int { return len(k.bodies) }

// Colliders reports how many colliders are live, anchors included.
func (k *Box2D) Colliders() int { return len(k.colliders) }
