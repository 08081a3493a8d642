package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestBodyType_RoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want BodyType
	}{
		{"dynamic", Dynamic},
		{"", Dynamic},
		{"Static", Static},
		{" kinematic ", Kinematic},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var bt BodyType
			if err := bt.UnmarshalText([]byte(tt.in)); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if bt != tt.want {
				t.Errorf("got %v, want %v", bt, tt.want)
			}
		})
	}

	if _, err := ParseBodyType("ghost"); err == nil {
		t.Error("expected error for unknown body type")
	}
}

func TestShape_Validate(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		valid bool
	}{
		{"unit box", Cuboid{HalfExtents: V(0.5, 0.5)}, true},
		{"flat box", Cuboid{HalfExtents: V(1, 0)}, false},
		{"nan box", Cuboid{HalfExtents: V(math.NaN(), 1)}, false},
		{"ball", Ball{Radius: 0.25}, true},
		{"zero ball", Ball{Radius: 0}, false},
		{"inf ball", Ball{Radius: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidShape) {
				t.Errorf("expected ErrInvalidShape, got %v", err)
			}
		})
	}
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	s := NewSnapshot(3, 0.05, 2)
	s.Put(2, BodyState{Position: V(1, 2), Rotation: 0.5, Velocity: V(0, -1)})
	s.Put(1, BodyState{Position: V(3, 4)})

	c := s.Clone()
	c.Positions[2] = V(9, 9)
	delete(c.Rotations, 1)

	if s.Positions[2] != V(1, 2) {
		t.Error("clone shares position map with original")
	}
	if _, ok := s.Rotations[1]; !ok {
		t.Error("clone shares rotation map with original")
	}
	if c.Frame != 3 || c.Time != 0.05 {
		t.Errorf("clone lost header: frame=%d time=%f", c.Frame, c.Time)
	}

	ids := s.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("IDs() = %v, want [1 2]", ids)
	}
}

func TestSnapshot_Body(t *testing.T) {
	var nilSnap *Snapshot
	if _, ok := nilSnap.Body(1); ok {
		t.Error("nil snapshot reported a body")
	}

	s := NewSnapshot(1, 0, 1)
	s.Put(7, BodyState{Position: V(0, 10), Rotation: 1, Velocity: V(2, 0)})
	b, ok := s.Body(7)
	if !ok {
		t.Fatal("body 7 missing")
	}
	if b.Position.Y() != 10 || b.Rotation != 1 || b.Velocity.X() != 2 {
		t.Errorf("unexpected body state %+v", b)
	}
	if _, ok := s.Body(8); ok {
		t.Error("unknown body reported present")
	}
}

func TestCommandError(t *testing.T) {
	err := &CommandError{Frame: 12, Command: "apply_force(9)", Wrapped: ErrUnknownBody}
	want := "frame 12: apply_force(9): dynamo: unknown body id"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrUnknownBody) {
		t.Error("CommandError does not unwrap to ErrUnknownBody")
	}
}
