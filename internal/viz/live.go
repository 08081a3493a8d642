package viz

import (
	"fmt"
	"image"
	"image/gif"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/rigidsim/internal/automation"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/sim"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	trailLength     = 40
	kickImpulse     = 4.0
)

type TickMsg time.Time

// Engine is the part of sim.Engine the live view drives.
type Engine interface {
	automation.Sender
	ReadState() *dynamo.Snapshot
	Stats() sim.Stats
	Shutdown()
}

type Options struct {
	// Rate is the tick frequency in Hz; one engine step per tick.
	Rate float64
	// GIFPath is where the r key saves its recording.
	GIFPath string
	Logger  *log.Logger
}

// Model steps an engine from a scenario and renders the latest published
// snapshot. Stepping goes through the driver so scripted events still fire.
type Model struct {
	eng      Engine
	driver   *automation.Driver
	observer *metrics.Observer
	name     string
	limit    int
	rate     float64
	gravity  dynamo.Vec

	shapes    map[dynamo.BodyID]dynamo.Shape
	colliders []config.ColliderConfig
	view      Viewport
	canvas    *Canvas

	snap          *dynamo.Snapshot
	trails        map[dynamo.BodyID][]dynamo.Vec
	energyHistory []float64
	speedHistory  []float64

	running, done bool
	recording     bool
	gifPath       string
	frames        []*image.Paletted
	showHelp      bool
	err           error
}

// NewModel builds sc into eng and returns a view that will drive it.
func NewModel(eng Engine, sc *automation.Scenario, opts Options) (Model, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Rate <= 0 {
		opts.Rate = config.DefaultTickRate
	}
	if opts.GIFPath == "" {
		opts.GIFPath = "simulation.gif"
	}
	if err := automation.Apply(eng, sc.Scene); err != nil {
		return Model{}, err
	}

	gravity := sc.Scene.Gravity.Vec()
	m := Model{
		eng:           eng,
		driver:        automation.NewDriver(eng, sc, opts.Logger),
		observer:      metrics.NewObserver(metrics.Default(-gravity.Y())...),
		name:          sc.Name,
		limit:         sc.Frames,
		rate:          opts.Rate,
		gravity:       gravity,
		shapes:        make(map[dynamo.BodyID]dynamo.Shape),
		colliders:     sc.Scene.Colliders,
		canvas:        NewCanvas(width, height),
		snap:          eng.ReadState(),
		trails:        make(map[dynamo.BodyID][]dynamo.Vec),
		energyHistory: make([]float64, 0, historyCapacity),
		speedHistory:  make([]float64, 0, historyCapacity),
		running:       true,
		gifPath:       opts.GIFPath,
	}

	view := Viewport{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}
	addBody := func(b config.BodyConfig) {
		view = view.Include(b.Position[0], b.Position[1])
		if b.Shape != nil {
			if s, err := b.Shape.Shape(); err == nil {
				m.shapes[dynamo.BodyID(b.ID)] = s
			}
		}
	}
	for _, b := range sc.Scene.Bodies {
		addBody(b)
	}
	for _, ev := range sc.Scene.Events {
		if ev.Spawn != nil {
			addBody(*ev.Spawn)
		}
	}
	for _, c := range sc.Scene.Colliders {
		rx, ry := c.Shape.HalfExtents[0], c.Shape.HalfExtents[1]
		if c.Shape.Radius > 0 {
			rx, ry = c.Shape.Radius, c.Shape.Radius
		}
		view = view.Include(c.Position[0]-rx, c.Position[1]-ry).Include(c.Position[0]+rx, c.Position[1]+ry)
	}
	w, h := m.canvas.Dots()
	m.view = view.Fit(w, h, 1)
	m.draw()
	return m, nil
}

// Run shows the live view until the user quits. The engine is shut down on
// the way out.
func Run(eng Engine, sc *automation.Scenario, opts Options) error {
	defer eng.Shutdown()
	m, err := NewModel(eng, sc, opts)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Duration(float64(time.Second)/m.rate), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, m.quit()
		case " ":
			m.running = !m.running
		case "i":
			m.kick()
		case "g":
			m.gravity = m.gravity.Mul(-1)
			m.eng.Send(sim.SetGravity{Gravity: m.gravity})
		case "r":
			if m.recording {
				m.err = m.saveGIF()
				m.recording, m.frames = false, nil
			} else {
				m.recording, m.frames = true, make([]*image.Paletted, 0)
			}
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && !m.done {
			m.step()
		}
		m.refresh()
		if m.recording {
			m.frames = append(m.frames, m.canvas.Image(8, 16))
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) quit() tea.Cmd {
	if m.recording {
		m.err = m.saveGIF()
		m.recording = false
	}
	m.eng.Shutdown()
	return tea.Quit
}

func (m *Model) step() {
	if err := m.driver.Tick(); err != nil {
		m.err, m.running = err, false
		return
	}
	if m.limit > 0 && m.driver.Frame() >= uint64(m.limit) {
		m.done = true
	}
}

// kick pushes every body up, alternating sideways so stacks topple.
func (m *Model) kick() {
	for i, id := range m.snap.IDs() {
		side := 1.0
		if i%2 == 1 {
			side = -1
		}
		m.eng.Send(sim.ApplyImpulse{ID: id, Impulse: dynamo.V(side, kickImpulse)})
	}
}

// refresh picks up the latest published snapshot and redraws.
func (m *Model) refresh() {
	snap := m.eng.ReadState()
	if snap.Frame != m.snap.Frame {
		m.observer.OnPublish(snap)
		vals := m.observer.Values()
		m.energyHistory = pushCapped(m.energyHistory, vals["kinetic_energy"])
		m.speedHistory = pushCapped(m.speedHistory, vals["mean_speed"])

		for _, id := range snap.IDs() {
			b, _ := snap.Body(id)
			tr := append(m.trails[id], b.Position)
			if len(tr) > trailLength {
				tr = tr[1:]
			}
			m.trails[id] = tr
		}
		for id := range m.trails {
			if _, ok := snap.Body(id); !ok {
				delete(m.trails, id)
			}
		}
	}
	m.snap = snap
	m.draw()
}

func pushCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

func (m *Model) draw() {
	m.canvas.Clear()
	for _, c := range m.colliders {
		if s, err := c.Shape.Shape(); err == nil {
			m.drawShape(c.Position.Vec(), 0, s)
		}
	}
	w, h := m.canvas.Dots()
	for _, tr := range m.trails {
		for _, p := range tr {
			x, y := m.view.Project(p.X(), p.Y(), w, h)
			m.canvas.Set(x, y)
		}
	}
	for _, id := range m.snap.IDs() {
		b, _ := m.snap.Body(id)
		m.drawShape(b.Position, b.Rotation, m.shapes[id])
	}
}

func (m *Model) drawShape(pos dynamo.Vec, rot float64, shape dynamo.Shape) {
	w, h := m.canvas.Dots()
	cx, cy := m.view.Project(pos.X(), pos.Y(), w, h)
	switch s := shape.(type) {
	case dynamo.Ball:
		m.canvas.DrawCircle(cx, cy, m.view.Scale(s.Radius, w))
		// Spoke so rolling is visible.
		ex, ey := m.view.Project(pos.X()+s.Radius*math.Cos(rot), pos.Y()+s.Radius*math.Sin(rot), w, h)
		m.canvas.DrawLine(cx, cy, ex, ey)
	case dynamo.Cuboid:
		hx, hy := s.HalfExtents.X(), s.HalfExtents.Y()
		sin, cos := math.Sincos(rot)
		pts := make([][2]int, 0, 4)
		for _, c := range [4][2]float64{{-hx, -hy}, {hx, -hy}, {hx, hy}, {-hx, hy}} {
			x := pos.X() + c[0]*cos - c[1]*sin
			y := pos.Y() + c[0]*sin + c[1]*cos
			px, py := m.view.Project(x, y, w, h)
			pts = append(pts, [2]int{px, py})
		}
		m.canvas.DrawPolygon(pts)
	default:
		m.canvas.Set(cx, cy)
	}
}

func (m *Model) saveGIF() error {
	if len(m.frames) == 0 {
		return nil
	}
	anim := gif.GIF{LoopCount: 0}
	delay := max(int(100/m.rate), 1)
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}
	f, err := os.Create(m.gifPath)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, &anim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return statusRecording.Render("ERROR")
	case m.done:
		return statusPaused.Render("DONE")
	case !m.running:
		return statusPaused.Render("PAUSED")
	case m.recording:
		return statusRecording.Render("● REC")
	}
	return statusRunning.Render(AnimatedSpinner(m.snap.Frame) + " RUNNING")
}

func (m Model) View() string {
	vals := m.observer.Values()
	st := m.eng.Stats()

	var s strings.Builder
	s.WriteString(GradientText(strings.ToUpper(m.name), CurrentTheme.Primary, CurrentTheme.Secondary) + "\n\n")
	s.WriteString(m.status() + "\n\n")
	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Frame", fmt.Sprintf("%d", m.snap.Frame))
	row("Time", fmt.Sprintf("%.2fs", m.snap.Time))
	row("Bodies", fmt.Sprintf("%d", m.snap.Len()))
	row("Energy", fmt.Sprintf("%.2f", vals["kinetic_energy"]))
	row("Max speed", fmt.Sprintf("%.2f", vals["max_speed"]))
	row("Min height", fmt.Sprintf("%.2f", vals["min_height"]))
	row("Gravity", fmt.Sprintf("(%.2f, %.2f)", m.gravity.X(), m.gravity.Y()))
	row("Step", st.LastStep.Round(time.Microsecond).String())
	row("Commands", fmt.Sprintf("%d (%d ignored)", st.Commands, st.Ignored))
	if st.Dropped > 0 {
		row("Dropped", fmt.Sprintf("%d", st.Dropped))
	}
	s.WriteString(labelStyle.Render("Speed") + SparklineChart(m.speedHistory, 24) + "\n")
	if m.limit > 0 {
		s.WriteString(labelStyle.Render("Progress") + ProgressBar(float64(m.driver.Frame())/float64(m.limit), 24) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + statusRecording.Render(m.err.Error()) + "\n")
	}

	s.WriteString("\n" + Separator(30) + "\n")
	s.WriteString(keyStyle.Render("SP") + subtleStyle.Render(":Pause ") +
		keyStyle.Render("I") + subtleStyle.Render(":Kick ") +
		keyStyle.Render("G") + subtleStyle.Render(":Gravity ") +
		keyStyle.Render("Q") + subtleStyle.Render(":Quit\n") +
		keyStyle.Render("T") + subtleStyle.Render(":Theme ") +
		keyStyle.Render("R") + subtleStyle.Render(":Record ") +
		keyStyle.Render("?") + subtleStyle.Render(":Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(m.canvas.String()), statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume stepping    ║
║  I        - Kick every body upwards  ║
║  G        - Flip gravity             ║
║  R        - Toggle GIF recording     ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit and stop the engine ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}
