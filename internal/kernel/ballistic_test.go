package kernel

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

func newBallistic(t *testing.T, method string, damping float64) *Ballistic {
	t.Helper()
	k, err := NewBallistic(method, damping)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestBallisticFreeFall(t *testing.T) {
	const (
		g  = 9.81
		dt = 1.0 / 60
		n  = 60
	)
	tests := []struct {
		method string
		wantY  float64
	}{
		{Verlet, 10 - 0.5*g*(n*dt)*(n*dt)},
		{RK4, 10 - 0.5*g*(n*dt)*(n*dt)},
		// semi-implicit Euler lands on the sum g*dt^2*(1+2+...+n)
		{Euler, 10 - g*dt*dt*n*(n+1)/2},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			k := newBallistic(t, tt.method, 0)
			h := k.InsertBody(BodyDef{Type: dynamo.Dynamic, Position: dynamo.V(0, 10)})
			for i := 0; i < n; i++ {
				k.Step(dynamo.V(0, -g), dt)
			}
			s := bodyState(t, k, h)
			if math.Abs(s.Position.Y()-tt.wantY) > 1e-9 {
				t.Errorf("y = %.9f, want %.9f", s.Position.Y(), tt.wantY)
			}
			if math.Abs(s.Velocity.Y()+g*n*dt) > 1e-9 {
				t.Errorf("vy = %.9f, want %.9f", s.Velocity.Y(), -g*n*dt)
			}
		})
	}
}

func TestBallisticDampingOrder(t *testing.T) {
	const (
		c  = 2.0
		dt = 0.05
		n  = 20
	)
	want := math.Exp(-c * n * dt)
	errFor := func(method string) float64 {
		k := newBallistic(t, method, c)
		h := k.InsertBody(BodyDef{Type: dynamo.Dynamic})
		k.SetLinearVelocity(h, dynamo.V(1, 0))
		for i := 0; i < n; i++ {
			k.Step(dynamo.Vec{}, dt)
		}
		return math.Abs(bodyState(t, k, h).Velocity.X() - want)
	}

	euler, verlet, rk := errFor(Euler), errFor(Verlet), errFor(RK4)
	if !(rk < verlet && verlet < euler) {
		t.Errorf("expected rk4 < verlet < euler error, got %g %g %g", rk, verlet, euler)
	}
	if rk > 1e-5 {
		t.Errorf("rk4 error too large: %g", rk)
	}
}

func TestBallisticMassFromColliders(t *testing.T) {
	k := newBallistic(t, Verlet, 0)
	h := k.InsertBody(BodyDef{Type: dynamo.Dynamic})
	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Ball{Radius: 1}}, h, true); err != nil {
		t.Fatal(err)
	}

	k.ApplyImpulse(h, dynamo.V(math.Pi, 0))
	if v := bodyState(t, k, h).Velocity; math.Abs(v.X()-1) > 1e-12 {
		t.Errorf("velocity after impulse = %v, want (1, 0)", v)
	}

	// a force lasts one step only
	k.ApplyForce(h, dynamo.V(0, math.Pi))
	k.Step(dynamo.Vec{}, 1)
	k.Step(dynamo.Vec{}, 1)
	if v := bodyState(t, k, h).Velocity; math.Abs(v.Y()-1) > 1e-12 {
		t.Errorf("velocity after force = %v, want vy 1", v)
	}
}

func TestBallisticBodyTypes(t *testing.T) {
	k := newBallistic(t, Euler, 0)
	static := k.InsertBody(BodyDef{Type: dynamo.Static, Position: dynamo.V(1, 1)})
	kin := k.InsertBody(BodyDef{Type: dynamo.Kinematic})

	k.SetLinearVelocity(static, dynamo.V(5, 5))
	k.ApplyImpulse(static, dynamo.V(5, 5))
	k.SetLinearVelocity(kin, dynamo.V(2, 0))
	k.ApplyForce(kin, dynamo.V(0, 100))
	k.Step(dynamo.V(0, -9.81), 0.5)

	if s := bodyState(t, k, static); s.Position != dynamo.V(1, 1) || s.Velocity != (dynamo.Vec{}) {
		t.Errorf("static body changed: %+v", s)
	}
	if s := bodyState(t, k, kin); s.Position != dynamo.V(1, 0) {
		t.Errorf("kinematic body at %v, want (1, 0)", s.Position)
	}

	k.SetTranslation(static, dynamo.V(3, 3))
	if s := bodyState(t, k, static); s.Position != dynamo.V(3, 3) {
		t.Errorf("static body not moved: %v", s.Position)
	}
}

func TestBallisticColliders(t *testing.T) {
	k := newBallistic(t, RK4, 0)
	h := k.InsertBody(BodyDef{})

	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Ball{Radius: -1}}, h, true); !errors.Is(err, dynamo.ErrInvalidShape) {
		t.Errorf("expected ErrInvalidShape, got %v", err)
	}
	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Ball{Radius: 1}}, 99, true); !errors.Is(err, dynamo.ErrUnknownBody) {
		t.Errorf("expected ErrUnknownBody, got %v", err)
	}
	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Cuboid{HalfExtents: dynamo.V(5, 0.5)}}, 0, false); err != nil {
		t.Fatal(err)
	}
	if _, err := k.InsertCollider(ColliderDef{Shape: dynamo.Ball{Radius: 1}}, h, true); err != nil {
		t.Fatal(err)
	}
	if k.Colliders() != 2 {
		t.Fatalf("expected 2 colliders, got %d", k.Colliders())
	}

	k.RemoveBody(h)
	k.RemoveBody(h)
	if k.Len() != 0 || k.Colliders() != 1 {
		t.Errorf("after remove: %d bodies, %d colliders", k.Len(), k.Colliders())
	}
}

func TestNewKernel(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{Box2DName, false},
		{Euler, false},
		{Verlet, false},
		{RK4, false},
		{"leapfrog", true},
	}
	for _, tt := range tests {
		k, err := New(tt.name, 0, 0, 0)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, dynamo.ErrInvalidConfig) {
			t.Errorf("New(%q) error %v is not ErrInvalidConfig", tt.name, err)
		}
		if tt.name == "" && k != nil {
			if _, ok := k.(*Box2D); !ok {
				t.Errorf("default kernel is %T", k)
			}
		}
	}

	if _, err := NewBallistic(Euler, -1); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("negative damping accepted: %v", err)
	}
}
