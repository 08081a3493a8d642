package config

import (
	"maps"
	"slices"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

var ground = ColliderConfig{
	ID:       1,
	Position: Vec2{0, 0},
	Shape:    ShapeConfig{Kind: "cuboid", HalfExtents: Vec2{20, 0.5}},
}

func box(hx, hy float64) *ShapeConfig {
	return &ShapeConfig{Kind: "cuboid", HalfExtents: Vec2{hx, hy}}
}

func ball(r float64) *ShapeConfig {
	return &ShapeConfig{Kind: "ball", Radius: r}
}

var Presets = map[string]SceneConfig{
	"drop": {
		Gravity:   Vec2{0, -9.81},
		Colliders: []ColliderConfig{ground},
		Bodies: []BodyConfig{
			{ID: 1, Type: dynamo.Dynamic, Position: Vec2{0, 10}, Shape: ball(0.5)},
		},
	},
	"stack": {
		Gravity:   Vec2{0, -9.81},
		Colliders: []ColliderConfig{ground},
		Bodies: []BodyConfig{
			{ID: 1, Position: Vec2{0, 1.0}, Shape: box(0.5, 0.5)},
			{ID: 2, Position: Vec2{0, 2.0}, Shape: box(0.5, 0.5)},
			{ID: 3, Position: Vec2{0, 3.0}, Shape: box(0.5, 0.5)},
			{ID: 4, Position: Vec2{0, 4.0}, Shape: box(0.5, 0.5)},
			{ID: 5, Position: Vec2{0, 5.0}, Shape: box(0.5, 0.5)},
		},
		Events: []EventConfig{
			{AtFrame: 120, Kind: "impulse", Body: 5, Value: Vec2{3, 0}},
		},
	},
	"rain": rain(12),
	"pinball": {
		Gravity: Vec2{0, -4},
		Colliders: []ColliderConfig{
			ground,
			{ID: 2, Position: Vec2{-8, 10}, Shape: ShapeConfig{Kind: "cuboid", HalfExtents: Vec2{0.5, 10}}},
			{ID: 3, Position: Vec2{8, 10}, Shape: ShapeConfig{Kind: "cuboid", HalfExtents: Vec2{0.5, 10}}},
			{ID: 4, Position: Vec2{-3, 8}, Shape: ShapeConfig{Kind: "ball", Radius: 0.8}},
			{ID: 5, Position: Vec2{3, 8}, Shape: ShapeConfig{Kind: "ball", Radius: 0.8}},
			{ID: 6, Position: Vec2{0, 5}, Shape: ShapeConfig{Kind: "ball", Radius: 0.8}},
		},
		Bodies: []BodyConfig{
			{ID: 1, Position: Vec2{-0.2, 16}, Velocity: Vec2{1.5, 0}, Shape: ball(0.3)},
		},
		Events: []EventConfig{
			{AtFrame: 300, Kind: "impulse", Body: 1, Value: Vec2{0, 3}},
			{AtFrame: 600, Kind: "gravity", Value: Vec2{0, -9.81}},
		},
	},
}

// rain drops n balls from alternating positions, one every 15 frames.
func rain(n int) SceneConfig {
	s := SceneConfig{
		Gravity:   Vec2{0, -9.81},
		Colliders: []ColliderConfig{ground},
	}
	for i := 0; i < n; i++ {
		x := float64(i%5-2) * 1.5
		s.Events = append(s.Events, EventConfig{
			AtFrame: uint64(i * 15),
			Kind:    "spawn",
			Spawn:   &BodyConfig{ID: uint64(i + 1), Position: Vec2{x, 12}, Shape: ball(0.4)},
		})
	}
	return s
}

// GetPreset returns a default config running the named scene, or nil.
func GetPreset(name string) *Config {
	scene, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Scene = SceneConfig{
		Gravity:   scene.Gravity,
		Bodies:    slices.Clone(scene.Bodies),
		Colliders: slices.Clone(scene.Colliders),
		Events:    slices.Clone(scene.Events),
	}
	return cfg
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
