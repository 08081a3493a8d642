package automation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/sim"
)

// BodyColliderBase offsets the collider id generated for a body's own shape
// so it cannot clash with scene collider ids.
const BodyColliderBase dynamo.ColliderID = 1 << 32

// MaxShapedBodyID is the largest body id that still has room for a derived
// collider id.
const MaxShapedBodyID = math.MaxUint64 - uint64(BodyColliderBase)

var ErrBodyIDRange = errors.New("body id leaves no room for its collider id")

// Sender is the part of sim.Engine that scripts need.
type Sender interface {
	Send(cmd sim.Command)
	Step(dt float64)
}

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Frames      int                `yaml:"frames"`
	Dt          float64            `yaml:"dt"`
	Scene       config.SceneConfig `yaml:"scene"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if scenario.Dt <= 0 {
		scenario.Dt = 1 / config.DefaultTickRate
	}
	if err := scenario.Scene.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	return &scenario, nil
}

// FromConfig builds a scenario from a loaded config or preset.
func FromConfig(name string, cfg *config.Config) *Scenario {
	return &Scenario{
		Name:   name,
		Frames: cfg.Engine.Frames,
		Dt:     cfg.Engine.Dt(),
		Scene:  cfg.Scene,
	}
}

// Apply sends the commands that build scene: gravity, static colliders and
// the initial bodies. Nothing is stepped.
func Apply(s Sender, scene config.SceneConfig) error {
	if err := scene.Validate(); err != nil {
		return err
	}

	s.Send(sim.SetGravity{Gravity: scene.Gravity.Vec()})
	for _, c := range scene.Colliders {
		shape, err := c.Shape.Shape()
		if err != nil {
			return fmt.Errorf("collider %d: %w", c.ID, err)
		}
		s.Send(sim.CreateCollider{ID: dynamo.ColliderID(c.ID), Shape: shape, Position: c.Position.Vec()})
	}
	for _, b := range scene.Bodies {
		if err := Spawn(s, b); err != nil {
			return err
		}
	}
	return nil
}

// Spawn creates one body, its collider and its initial velocity.
func Spawn(s Sender, b config.BodyConfig) error {
	var shape dynamo.Shape
	if b.Shape != nil {
		var err error
		if shape, err = b.Shape.Shape(); err != nil {
			return fmt.Errorf("body %d: %w", b.ID, err)
		}
		if b.ID > MaxShapedBodyID {
			return fmt.Errorf("body %d: %w (max %d)", b.ID, ErrBodyIDRange, MaxShapedBodyID)
		}
	}

	id := dynamo.BodyID(b.ID)
	s.Send(sim.CreateRigidBody{ID: id, Type: b.Type, Position: b.Position.Vec()})
	if shape != nil {
		s.Send(sim.CreateCollider{ID: BodyColliderBase + dynamo.ColliderID(b.ID), Parent: &id, Shape: shape})
	}
	if b.Velocity != (config.Vec2{}) {
		s.Send(sim.SetVelocity{ID: id, Velocity: b.Velocity.Vec()})
	}
	return nil
}

// Perturb returns a copy of scene with every body's position jittered by up
// to amount in each axis, for Monte Carlo style runs. seed 0 picks one from
// the clock.
func Perturb(scene config.SceneConfig, amount float64, seed int64) config.SceneConfig {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	jitter := func(p config.Vec2) config.Vec2 {
		return config.Vec2{
			p[0] + (rng.Float64()-0.5)*2*amount,
			p[1] + (rng.Float64()-0.5)*2*amount,
		}
	}

	out := scene
	out.Bodies = slices.Clone(scene.Bodies)
	for i := range out.Bodies {
		if out.Bodies[i].Type == dynamo.Dynamic {
			out.Bodies[i].Position = jitter(out.Bodies[i].Position)
		}
	}
	out.Events = slices.Clone(scene.Events)
	for i, ev := range out.Events {
		if ev.Spawn != nil {
			b := *ev.Spawn
			b.Position = jitter(b.Position)
			out.Events[i].Spawn = &b
		}
	}
	return out
}
