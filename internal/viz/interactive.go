package viz

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/rigidsim/internal/automation"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/sim"
)

var presetInfo = map[string]string{
	"drop":    "one ball onto the ground",
	"stack":   "box tower, knocked over",
	"rain":    "balls spawned from the sky",
	"pinball": "bumpers, walls, gravity swap",
}

const (
	stateMenu = iota
	stateConfig
	stateSim
)

// App lets the user pick a preset, tune a few run parameters and then hands
// over to the live view.
type App struct {
	state, cursor int
	presets       []string
	selected      string
	params        map[string]float64
	paramNames    []string
	paramCursor   int
	editing       bool
	editBuf       string
	log           *log.Logger
	live          Model
	eng           *sim.Engine
	err           error
}

func NewApp(logger *log.Logger) *App {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &App{
		state:      stateMenu,
		presets:    config.ListPresets(),
		paramNames: []string{"tick_rate", "frames", "jitter", "seed"},
		log:        logger,
	}
}

func (a *App) resetParams() {
	a.params = map[string]float64{
		"tick_rate": config.DefaultTickRate,
		"frames":    0,
		"jitter":    0,
		"seed":      1,
	}
}

func (a *App) Init() tea.Cmd { return nil }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch a.state {
		case stateMenu:
			return a, a.menuKey(msg)
		case stateConfig:
			return a, a.configKey(msg)
		}
	}
	if a.state == stateSim {
		next, cmd := a.live.Update(msg)
		a.live = next.(Model)
		return a, cmd
	}
	return a, nil
}

func (a *App) menuKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.presets)-1 {
			a.cursor++
		}
	case "enter", " ":
		a.selected = a.presets[a.cursor]
		a.state, a.paramCursor, a.err = stateConfig, 0, nil
		a.resetParams()
	}
	return nil
}

func (a *App) configKey(msg tea.KeyMsg) tea.Cmd {
	name := a.paramNames[a.paramCursor]
	if a.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(a.editBuf, 64); err == nil {
				a.params[name] = v
			}
			a.editing, a.editBuf = false, ""
		case "esc":
			a.editing, a.editBuf = false, ""
		case "backspace":
			if len(a.editBuf) > 0 {
				a.editBuf = a.editBuf[:len(a.editBuf)-1]
			}
		default:
			if k := msg.String(); len(k) == 1 && strings.ContainsAny(k, "0123456789.-") {
				a.editBuf += k
			}
		}
		return nil
	}
	switch msg.String() {
	case "q", "esc":
		a.state = stateMenu
	case "up", "k":
		if a.paramCursor > 0 {
			a.paramCursor--
		}
	case "down", "j":
		if a.paramCursor < len(a.paramNames)-1 {
			a.paramCursor++
		}
	case "enter", " ":
		a.editing, a.editBuf = true, strconv.FormatFloat(a.params[name], 'f', -1, 64)
	case "left", "h":
		a.params[name] = max(a.params[name]-paramStep(name), 0)
	case "right", "l":
		a.params[name] += paramStep(name)
	case "s":
		return a.start()
	}
	return nil
}

func paramStep(name string) float64 {
	switch name {
	case "tick_rate":
		return 10
	case "frames":
		return 100
	case "jitter":
		return 0.1
	}
	return 1
}

// Scenario returns the run the current parameters describe.
func (a *App) Scenario() (*automation.Scenario, *config.Config, error) {
	cfg := config.GetPreset(a.selected)
	if cfg == nil {
		return nil, nil, fmt.Errorf("preset %q not found", a.selected)
	}
	if r := a.params["tick_rate"]; r > 0 {
		cfg.Engine.TickRate = r
	}
	cfg.Engine.Frames = int(a.params["frames"])
	if j := a.params["jitter"]; j > 0 {
		cfg.Scene = automation.Perturb(cfg.Scene, j, int64(a.params["seed"]))
	}
	return automation.FromConfig(a.selected, cfg), cfg, nil
}

func (a *App) start() tea.Cmd {
	sc, cfg, err := a.Scenario()
	if err == nil {
		a.eng, err = sim.New(sim.ConfigFrom(cfg.Engine), sim.WithLogger(a.log))
	}
	if err == nil {
		a.live, err = NewModel(a.eng, sc, Options{Rate: cfg.Engine.TickRate, Logger: a.log})
		if err != nil {
			a.eng.Shutdown()
		}
	}
	if err != nil {
		a.err = err
		return nil
	}
	a.state = stateSim
	return a.live.Init()
}

// Shutdown stops the engine of a running live view, if any.
func (a *App) Shutdown() {
	if a.eng != nil {
		a.eng.Shutdown()
	}
}

func (a *App) View() string {
	switch a.state {
	case stateMenu:
		return a.viewMenu()
	case stateConfig:
		return a.viewConfig()
	}
	return a.live.View()
}

func (a *App) keys(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(keyStyle.Render(pairs[i]) + subtleStyle.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (a *App) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText("RIGIDSIM", CurrentTheme.Primary, CurrentTheme.Secondary) + "\n")
	b.WriteString("    " + subtleStyle.Render("rigid body playground") + "\n")
	b.WriteString("    " + subtleStyle.Render("─────────────────────────") + "\n\n")
	for i, name := range a.presets {
		desc := presetInfo[name]
		if i == a.cursor {
			fmt.Fprintf(&b, "    %s %s  %s\n", selectedStyle.Render("▸"), valueStyle.Bold(true).Render(fmt.Sprintf("%-10s", name)), selectedStyle.Render(desc))
		} else {
			fmt.Fprintf(&b, "      %s  %s\n", subtleStyle.Render(fmt.Sprintf("%-10s", name)), subtleStyle.Render(desc))
		}
	}
	b.WriteString("\n    " + a.keys("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (a *App) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + headerStyle.Render(strings.ToUpper(a.selected)) + "\n")
	b.WriteString("    " + subtleStyle.Render(presetInfo[a.selected]) + "\n\n")
	for i, name := range a.paramNames {
		val := fmt.Sprintf("%8.3f", a.params[name])
		if a.editing && i == a.paramCursor {
			val = fmt.Sprintf("%8s", a.editBuf+"_")
		}
		if i == a.paramCursor {
			fmt.Fprintf(&b, "    %s %s %s\n", selectedStyle.Render("▸"), valueStyle.Bold(true).Render(fmt.Sprintf("%-10s", name)), selectedStyle.Render(val))
		} else {
			fmt.Fprintf(&b, "      %s %s\n", subtleStyle.Render(fmt.Sprintf("%-10s", name)), subtleStyle.Render(val))
		}
	}
	if a.err != nil {
		b.WriteString("\n    " + statusRecording.Render(a.err.Error()) + "\n")
	}
	b.WriteString("\n    " + a.keys("j/k", "select", "h/l", "adjust", "s", "start", "esc", "back") + "\n")
	return b.String()
}

// RunInteractive shows the preset menu and then the chosen live view.
func RunInteractive(logger *log.Logger) error {
	app := NewApp(logger)
	defer app.Shutdown()
	_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
	return err
}
