package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/sim"
)

type recorder struct {
	cmds []sim.Command
}

func (r *recorder) Send(cmd sim.Command) { r.cmds = append(r.cmds, cmd) }
func (r *recorder) Step(dt float64)      { r.cmds = append(r.cmds, sim.Step{Dt: dt}) }

func (r *recorder) names() []string {
	out := make([]string, len(r.cmds))
	for i, c := range r.cmds {
		out[i] = c.String()
	}
	return out
}

func TestApply(t *testing.T) {
	var r recorder
	scene := config.GetPreset("drop").Scene
	scene.Bodies[0].Velocity = config.Vec2{1, 0}

	if err := Apply(&r, scene); err != nil {
		t.Fatal(err)
	}

	if len(r.cmds) != 5 {
		t.Fatalf("expected 5 commands, got %v", r.names())
	}
	if _, ok := r.cmds[0].(sim.SetGravity); !ok {
		t.Errorf("gravity should come first, got %v", r.cmds[0])
	}
	ground := r.cmds[1].(sim.CreateCollider)
	if ground.Parent != nil || ground.ID != 1 {
		t.Errorf("unexpected world collider %+v", ground)
	}
	own := r.cmds[3].(sim.CreateCollider)
	if own.Parent == nil || *own.Parent != 1 || own.ID != BodyColliderBase+1 {
		t.Errorf("unexpected body collider %+v", own)
	}
	if v := r.cmds[4].(sim.SetVelocity); v.Velocity != dynamo.V(1, 0) {
		t.Errorf("unexpected velocity %v", v)
	}
}

func TestSpawnBodyIDRange(t *testing.T) {
	ball := &config.ShapeConfig{Kind: "ball", Radius: 0.5}

	var r recorder
	err := Spawn(&r, config.BodyConfig{ID: math.MaxUint64, Type: dynamo.Dynamic, Shape: ball})
	if !errors.Is(err, ErrBodyIDRange) {
		t.Fatalf("expected ErrBodyIDRange, got %v", err)
	}
	if len(r.cmds) != 0 {
		t.Errorf("rejected body still sent %v", r.names())
	}

	if err := Spawn(&r, config.BodyConfig{ID: MaxShapedBodyID, Type: dynamo.Dynamic, Shape: ball}); err != nil {
		t.Fatal(err)
	}
	own := r.cmds[1].(sim.CreateCollider)
	if own.ID != math.MaxUint64 {
		t.Errorf("collider id = %d, want %d", own.ID, uint64(math.MaxUint64))
	}

	// without a shape no collider id is derived
	r = recorder{}
	if err := Spawn(&r, config.BodyConfig{ID: math.MaxUint64, Type: dynamo.Dynamic}); err != nil {
		t.Fatal(err)
	}
	if len(r.cmds) != 1 {
		t.Errorf("expected only the body, got %v", r.names())
	}
}

func TestApplyRejectsInvalidScene(t *testing.T) {
	var r recorder
	scene := config.SceneConfig{Bodies: []config.BodyConfig{{ID: 1}, {ID: 1}}}
	if err := Apply(&r, scene); !errors.Is(err, dynamo.ErrDuplicateBody) {
		t.Errorf("expected duplicate body error, got %v", err)
	}
	if len(r.cmds) != 0 {
		t.Errorf("commands sent for an invalid scene: %v", r.names())
	}
}

func TestDriverEventsFireBeforeTheirStep(t *testing.T) {
	var r recorder
	sc := &Scenario{
		Dt: 0.1,
		Scene: config.SceneConfig{Events: []config.EventConfig{
			{AtFrame: 2, Kind: "remove", Body: 1},
			{AtFrame: 0, Kind: "impulse", Body: 1, Value: config.Vec2{1, 0}},
			{AtFrame: 2, Kind: "gravity", Value: config.Vec2{0, 0}},
		}},
	}
	d := NewDriver(&r, sc, nil)
	if err := d.Run(context.Background(), 3); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"apply_impulse(1)", "step(0.1)",
		"step(0.1)",
		"remove_rigid_body(1)", "set_gravity(0,0)", "step(0.1)",
	}
	got := r.names()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if d.Frame() != 3 {
		t.Errorf("expected frame 3, got %d", d.Frame())
	}
}

func TestDriverStopsOnCancel(t *testing.T) {
	var r recorder
	d := NewDriver(&r, &Scenario{Dt: 0.01}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.RunRealtime(ctx, 1000, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}
	if d.Frame() == 0 {
		t.Error("realtime run issued no steps")
	}
}

func TestPerturb(t *testing.T) {
	scene := config.GetPreset("rain").Scene
	a := Perturb(scene, 0.5, 42)
	b := Perturb(scene, 0.5, 42)

	for i := range a.Events {
		pa, pb := a.Events[i].Spawn.Position, b.Events[i].Spawn.Position
		if pa != pb {
			t.Errorf("same seed diverged at event %d: %v vs %v", i, pa, pb)
		}
		orig := scene.Events[i].Spawn.Position
		if d := pa[0] - orig[0]; d > 0.5 || d < -0.5 {
			t.Errorf("jitter %v exceeds amount", d)
		}
	}
	if config.Presets["rain"].Events[0].Spawn.Position != scene.Events[0].Spawn.Position {
		t.Error("perturb modified the source scene")
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kick.yaml")
	data := `
name: kick
frames: 90
scene:
  gravity: [0, -9.81]
  bodies:
    - id: 1
      position: [0, 2]
  events:
    - at_frame: 30
      kind: velocity
      body: 1
      value: [0, 5]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "kick" || sc.Frames != 90 || sc.Dt != 1/config.DefaultTickRate {
		t.Errorf("unexpected scenario %+v", sc)
	}
	if len(sc.Scene.Events) != 1 || sc.Scene.Events[0].Kind != "velocity" {
		t.Errorf("events not parsed: %+v", sc.Scene.Events)
	}
}

func TestScenarioAgainstEngine(t *testing.T) {
	eng, err := sim.New(sim.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Shutdown()

	sc := FromConfig("drop", config.GetPreset("drop"))
	if err := Apply(eng, sc.Scene); err != nil {
		t.Fatal(err)
	}
	if err := NewDriver(eng, sc, nil).Run(context.Background(), 60); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for eng.PublishedFrame() < 60 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	p, ok := eng.GetPosition(1)
	if !ok {
		t.Fatal("body 1 missing")
	}
	if p.Y() >= 10 {
		t.Errorf("body did not fall: y=%v", p.Y())
	}
}
