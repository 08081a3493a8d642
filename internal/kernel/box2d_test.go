package kernel

import (
	"errors"
	"testing"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

func bodyState(t *testing.T, k Kernel, h Handle) dynamo.BodyState {
	t.Helper()
	var (
		found bool
		out   dynamo.BodyState
	)
	k.Bodies(func(bh Handle, s dynamo.BodyState) {
		if bh == h {
			found, out = true, s
		}
	})
	if !found {
		t.Fatalf("body %d not reported by Bodies", h)
	}
	return out
}

func TestBox2DFreeFall(t *testing.T) {
	k := NewBox2D(0, 0)
	h := k.InsertBody(BodyDef{Type: dynamo.Dynamic, Position: dynamo.V(0, 10)})

	for i := 0; i < 60; i++ {
		k.Step(dynamo.V(0, -9.81), 1.0/60)
	}

	s := bodyState(t, k, h)
	if s.Position.Y() >= 10 {
		t.Errorf("body did not fall: y=%.4f", s.Position.Y())
	}
	if s.Velocity.Y() >= 0 {
		t.Errorf("expected downward velocity, got %.4f", s.Velocity.Y())
	}
}

func TestBox2DStaticBodyDoesNotMove(t *testing.T) {
	k := NewBox2D(0, 0)
	h := k.InsertBody(BodyDef{Type: dynamo.Static, Position: dynamo.V(1, 1)})
	k.ApplyForce(h, dynamo.V(100, 100))

	for i := 0; i < 10; i++ {
		k.Step(dynamo.V(0, -9.81), 1.0/60)
	}

	if s := bodyState(t, k, h); s.Position != dynamo.V(1, 1) {
		t.Errorf("static body moved to %v", s.Position)
	}
}

func TestBox2DSetters(t *testing.T) {
	k := NewBox2D(0, 0)
	h := k.InsertBody(BodyDef{Position: dynamo.V(0, 0)})

	k.SetTranslation(h, dynamo.V(5, 6))
	k.SetLinearVelocity(h, dynamo.V(1, 0))
	s := bodyState(t, k, h)
	if s.Position != dynamo.V(5, 6) {
		t.Errorf("SetTranslation: got %v", s.Position)
	}
	if s.Velocity != dynamo.V(1, 0) {
		t.Errorf("SetLinearVelocity: got %v", s.Velocity)
	}

	k.Step(dynamo.V(0, 0), 1)
	if s := bodyState(t, k, h); s.Position.X() <= 5 {
		t.Errorf("body with velocity did not move: %v", s.Position)
	}
}

func TestBox2DImpulseChangesVelocity(t *testing.T) {
	k := NewBox2D(0, 0)
	h := k.InsertBody(BodyDef{})
	k.ApplyImpulse(h, dynamo.V(0, 2))

	if s := bodyState(t, k, h); s.Velocity.Y() <= 0 {
		t.Errorf("impulse did not change velocity: %v", s.Velocity)
	}
}

func TestBox2DColliders(t *testing.T) {
	k := NewBox2D(0, 0)
	h := k.InsertBody(BodyDef{Position: dynamo.V(0, 3)})

	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Ball{Radius: 0.5}}, h, true); err != nil {
		t.Fatalf("parented collider: %v", err)
	}
	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Cuboid{HalfExtents: dynamo.V(10, 0.5)}}, 0, false); err != nil {
		t.Fatalf("ground collider: %v", err)
	}
	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Ball{Radius: 1}}, 999, true); !errors.Is(err, dynamo.ErrUnknownBody) {
		t.Errorf("expected ErrUnknownBody, got %v", err)
	}
	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Ball{Radius: -1}}, h, true); !errors.Is(err, dynamo.ErrInvalidShape) {
		t.Errorf("expected ErrInvalidShape, got %v", err)
	}

	count := 0
	k.Bodies(func(Handle, dynamo.BodyState) { count++ })
	if count != 1 {
		t.Errorf("anchor body leaked into Bodies: %d bodies", count)
	}

	for i := 0; i < 240; i++ {
		k.Step(dynamo.V(0, -9.81), 1.0/60)
	}
	// Ball of radius 0.5 resting on a ground box whose top is at y=0.5.
	if s := bodyState(t, k, h); s.Position.Y() < 0.8 {
		t.Errorf("ball fell through ground: y=%.3f", s.Position.Y())
	}

	k.RemoveBody(h)
	if k.Len() != 0 {
		t.Errorf("expected 0 bodies after remove, got %d", k.Len())
	}
	if k.Colliders() != 1 {
		t.Errorf("expected only the ground collider left, got %d", k.Colliders())
	}
	k.RemoveBody(h)
}
