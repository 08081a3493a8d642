package sim

import (
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/kernel"
)

const (
	DefaultMinDt       = 1e-6
	DefaultRecvTimeout = time.Millisecond
)

type Config struct {
	// MinDt is the floor applied to degenerate step sizes.
	MinDt       float64
	RecvTimeout time.Duration
	Gravity     dynamo.Vec
	// MaxPending bounds the command queue; 0 means unbounded.
	MaxPending         int
	VelocityIterations int
	PositionIterations int
	// Kernel names the stepper New builds when no WithKernel option is
	// given; see kernel.New.
	Kernel  string
	Damping float64
}

func DefaultConfig() Config {
	return Config{
		MinDt:              DefaultMinDt,
		RecvTimeout:        DefaultRecvTimeout,
		Gravity:            dynamo.V(0, -9.81),
		VelocityIterations: kernel.DefaultVelocityIterations,
		PositionIterations: kernel.DefaultPositionIterations,
	}
}

// ConfigFrom maps the file-level engine settings onto a runtime Config.
// Zero fields keep their defaults. Scene gravity is applied by whoever loads
// the scene.
func ConfigFrom(e config.EngineConfig) Config {
	c := DefaultConfig()
	if e.MinDt > 0 {
		c.MinDt = e.MinDt
	}
	if e.RecvTimeout > 0 {
		c.RecvTimeout = e.RecvTimeout
	}
	if e.VelocityIterations > 0 {
		c.VelocityIterations = e.VelocityIterations
	}
	if e.PositionIterations > 0 {
		c.PositionIterations = e.PositionIterations
	}
	c.MaxPending = e.MaxPending
	c.Kernel = e.Kernel
	c.Damping = e.Damping
	return c
}

func (c Config) Validate() error {
	if !(c.MinDt > 0) || math.IsInf(c.MinDt, 0) {
		return fmt.Errorf("%w: min dt must be positive, got %g", dynamo.ErrInvalidConfig, c.MinDt)
	}
	if c.RecvTimeout <= 0 {
		return fmt.Errorf("%w: receive timeout must be positive, got %s", dynamo.ErrInvalidConfig, c.RecvTimeout)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("%w: max pending must not be negative, got %d", dynamo.ErrInvalidConfig, c.MaxPending)
	}
	if !dynamo.IsFinite(c.Gravity) {
		return fmt.Errorf("%w: gravity %v", dynamo.ErrInvalidConfig, c.Gravity)
	}
	return nil
}

// Observer is notified on the worker goroutine after every publish. It must
// not block and must treat the snapshot as read-only.
type Observer interface {
	OnPublish(s *dynamo.Snapshot)
}

type ObserverFunc func(s *dynamo.Snapshot)

func (f ObserverFunc) OnPublish(s *dynamo.Snapshot) { f(s) }

type options struct {
	logger    *log.Logger
	verbose   bool
	kernel    kernel.Kernel
	observers []Observer
}

type Option func(*options)

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithVerbose logs every ignored or dropped command.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// WithKernel replaces the default box2d kernel. The engine takes ownership.
func WithKernel(k kernel.Kernel) Option {
	return func(o *options) { o.kernel = k }
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func defaultOptions() options {
	return options{logger: log.New(io.Discard, "", 0)}
}
