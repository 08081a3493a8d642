package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

const (
	DefaultTickRate    = 60.0
	DefaultFrames      = 600
	DefaultMinDt       = 1e-6
	DefaultRecvTimeout = time.Millisecond
	DefaultVelIters    = 8
	DefaultPosIters    = 3
	DefaultRecordEvery = 1
	DefaultAddr        = ":8080"
	DefaultStreamRate  = 30.0
)

type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Scene  SceneConfig  `yaml:"scene"`
	Record RecordConfig `yaml:"record"`
	Serve  ServeConfig  `yaml:"serve"`
}

type EngineConfig struct {
	// TickRate is how many steps per second the driver loops issue.
	TickRate           float64       `yaml:"tick_rate"`
	Frames             int           `yaml:"frames"`
	MinDt              float64       `yaml:"min_dt"`
	RecvTimeout        time.Duration `yaml:"recv_timeout"`
	VelocityIterations int           `yaml:"velocity_iterations"`
	PositionIterations int           `yaml:"position_iterations"`
	MaxPending         int           `yaml:"max_pending"`
	// Kernel picks the stepper: box2d, or a collision-free point-mass
	// integrator (euler, verlet, rk4) with optional linear Damping.
	Kernel  string  `yaml:"kernel,omitempty"`
	Damping float64 `yaml:"damping,omitempty"`
	Verbose bool    `yaml:"verbose"`
}

// Kernels lists the accepted engine.kernel values. Empty means box2d.
var Kernels = []string{"box2d", "euler", "verlet", "rk4"}

// Vec2 is an [x, y] pair.
type Vec2 [2]float64

func (v Vec2) Vec() dynamo.Vec { return dynamo.V(v[0], v[1]) }

type ShapeConfig struct {
	Kind        string  `yaml:"kind" json:"kind"`
	Radius      float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	HalfExtents Vec2    `yaml:"half_extents,omitempty" json:"half_extents,omitempty"`
}

type BodyConfig struct {
	ID       uint64          `yaml:"id"`
	Type     dynamo.BodyType `yaml:"type"`
	Position Vec2            `yaml:"position"`
	Velocity Vec2            `yaml:"velocity,omitempty"`
	Shape    *ShapeConfig    `yaml:"shape,omitempty"`
}

// ColliderConfig is static world geometry.
type ColliderConfig struct {
	ID       uint64      `yaml:"id"`
	Position Vec2        `yaml:"position"`
	Shape    ShapeConfig `yaml:"shape"`
}

type EventConfig struct {
	AtFrame uint64      `yaml:"at_frame"`
	Kind    string      `yaml:"kind"`
	Body    uint64      `yaml:"body,omitempty"`
	Value   Vec2        `yaml:"value,omitempty"`
	Spawn   *BodyConfig `yaml:"spawn,omitempty"`
}

type SceneConfig struct {
	Gravity   Vec2             `yaml:"gravity"`
	Bodies    []BodyConfig     `yaml:"bodies"`
	Colliders []ColliderConfig `yaml:"colliders"`
	Events    []EventConfig    `yaml:"events"`
}

type RecordConfig struct {
	Enabled bool `yaml:"enabled"`
	// Every keeps one frame in Every.
	Every int    `yaml:"every"`
	Notes string `yaml:"notes,omitempty"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
	// Rate is how often websocket subscribers are polled, in Hz.
	Rate float64 `yaml:"rate"`
}

var (
	ErrUnknownShape = errors.New("config: unknown shape kind")
	ErrUnknownEvent = errors.New("config: unknown event kind")
)

var EventKinds = []string{"impulse", "force", "velocity", "position", "remove", "spawn", "gravity"}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			TickRate:           DefaultTickRate,
			Frames:             DefaultFrames,
			MinDt:              DefaultMinDt,
			RecvTimeout:        DefaultRecvTimeout,
			VelocityIterations: DefaultVelIters,
			PositionIterations: DefaultPosIters,
		},
		Scene: SceneConfig{
			Gravity: Vec2{0, -9.81},
		},
		Record: RecordConfig{Every: DefaultRecordEvery},
		Serve:  ServeConfig{Addr: DefaultAddr, Rate: DefaultStreamRate},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Dt is the step size implied by the tick rate.
func (e EngineConfig) Dt() float64 {
	if e.TickRate <= 0 {
		return 1 / DefaultTickRate
	}
	return 1 / e.TickRate
}

func (s ShapeConfig) Shape() (dynamo.Shape, error) {
	var sh dynamo.Shape
	switch s.Kind {
	case "ball", "circle":
		sh = dynamo.Ball{Radius: s.Radius}
	case "cuboid", "box":
		sh = dynamo.Cuboid{HalfExtents: s.HalfExtents.Vec()}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, s.Kind)
	}
	if err := sh.Validate(); err != nil {
		return nil, err
	}
	return sh, nil
}

func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("%w: tick_rate must be positive", dynamo.ErrInvalidConfig)
	}
	if c.Engine.Frames < 0 {
		return fmt.Errorf("%w: frames must not be negative", dynamo.ErrInvalidConfig)
	}
	if c.Engine.Kernel != "" && !slices.Contains(Kernels, c.Engine.Kernel) {
		return fmt.Errorf("%w: unknown kernel %q (want one of %v)", dynamo.ErrInvalidConfig, c.Engine.Kernel, Kernels)
	}
	if c.Engine.Damping < 0 {
		return fmt.Errorf("%w: damping must not be negative", dynamo.ErrInvalidConfig)
	}
	if c.Record.Every < 1 {
		return fmt.Errorf("%w: record.every must be at least 1", dynamo.ErrInvalidConfig)
	}
	if c.Serve.Rate <= 0 {
		return fmt.Errorf("%w: serve.rate must be positive", dynamo.ErrInvalidConfig)
	}
	return c.Scene.Validate()
}

func (s *SceneConfig) Validate() error {
	seen := make(map[uint64]bool, len(s.Bodies))
	for _, b := range s.Bodies {
		if seen[b.ID] {
			return fmt.Errorf("%w: body %d", dynamo.ErrDuplicateBody, b.ID)
		}
		seen[b.ID] = true
		if b.Shape != nil {
			if _, err := b.Shape.Shape(); err != nil {
				return fmt.Errorf("body %d: %w", b.ID, err)
			}
		}
	}

	cseen := make(map[uint64]bool, len(s.Colliders))
	for _, c := range s.Colliders {
		if cseen[c.ID] {
			return fmt.Errorf("%w: collider %d", dynamo.ErrDuplicateCollider, c.ID)
		}
		cseen[c.ID] = true
		if _, err := c.Shape.Shape(); err != nil {
			return fmt.Errorf("collider %d: %w", c.ID, err)
		}
	}

	for i, ev := range s.Events {
		if !slices.Contains(EventKinds, ev.Kind) {
			return fmt.Errorf("event %d: %w: %q", i, ErrUnknownEvent, ev.Kind)
		}
		if ev.Kind == "spawn" && ev.Spawn == nil {
			return fmt.Errorf("event %d: spawn without a body", i)
		}
	}
	return nil
}
