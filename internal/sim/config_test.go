package sim

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"zero min dt", func(c *Config) { c.MinDt = 0 }, false},
		{"nan min dt", func(c *Config) { c.MinDt = math.NaN() }, false},
		{"zero timeout", func(c *Config) { c.RecvTimeout = 0 }, false},
		{"negative pending", func(c *Config) { c.MaxPending = -1 }, false},
		{"inf gravity", func(c *Config) { c.Gravity = dynamo.V(0, math.Inf(-1)) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.EngineConfig{
		RecvTimeout:        5 * time.Millisecond,
		VelocityIterations: 20,
		MaxPending:         64,
		Kernel:             "verlet",
		Damping:            0.1,
	})

	if cfg.RecvTimeout != 5*time.Millisecond {
		t.Errorf("recv timeout = %s", cfg.RecvTimeout)
	}
	if cfg.VelocityIterations != 20 || cfg.MaxPending != 64 {
		t.Errorf("iterations/pending not copied: %+v", cfg)
	}
	if cfg.Kernel != "verlet" || cfg.Damping != 0.1 {
		t.Errorf("kernel not copied: %q %g", cfg.Kernel, cfg.Damping)
	}
	if cfg.MinDt != DefaultMinDt {
		t.Errorf("zero min dt should keep the default, got %g", cfg.MinDt)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}
