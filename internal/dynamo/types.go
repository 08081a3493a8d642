package dynamo

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

type BodyID uint64

type ColliderID uint64

type Vec = mgl64.Vec2

func V(x, y float64) Vec { return Vec{x, y} }

func IsFinite(v Vec) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

type BodyType uint8

const (
	Dynamic BodyType = iota
	Static
	Kinematic
)

func (t BodyType) String() string {
	switch t {
	case Dynamic:
		return "dynamic"
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	default:
		return fmt.Sprintf("bodytype(%d)", uint8(t))
	}
}

func ParseBodyType(s string) (BodyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dynamic":
		return Dynamic, nil
	case "static":
		return Static, nil
	case "kinematic":
		return Kinematic, nil
	}
	return Dynamic, fmt.Errorf("unknown body type %q", s)
}

func (t BodyType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *BodyType) UnmarshalText(b []byte) error {
	v, err := ParseBodyType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Shape is a collision shape: either a Cuboid or a Ball.
type Shape interface {
	shape()
	Validate() error
}

type Cuboid struct {
	HalfExtents Vec
}

type Ball struct {
	Radius float64
}

func (Cuboid) shape() {}
func (Ball) shape()   {}

func (c Cuboid) Validate() error {
	if !(c.HalfExtents[0] > 0) || !(c.HalfExtents[1] > 0) || !IsFinite(c.HalfExtents) {
		return fmt.Errorf("%w: cuboid half extents %v", ErrInvalidShape, c.HalfExtents)
	}
	return nil
}

func (b Ball) Validate() error {
	if !(b.Radius > 0) || math.IsInf(b.Radius, 0) {
		return fmt.Errorf("%w: ball radius %g", ErrInvalidShape, b.Radius)
	}
	return nil
}

func (c Cuboid) String() string {
	return fmt.Sprintf("cuboid(%.3g,%.3g)", c.HalfExtents[0], c.HalfExtents[1])
}

func (b Ball) String() string { return fmt.Sprintf("ball(%.3g)", b.Radius) }

// BodyState is the per-body slice of a Snapshot.
type BodyState struct {
	Position Vec
	Rotation float64
	Velocity Vec
}
