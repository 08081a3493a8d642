package viz

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a colour scheme for the live view and the preset menu.
type Theme struct {
	Name string
	// Primary and Secondary span the title gradient; Secondary also draws
	// the canvas.
	Primary, Secondary lipgloss.Color
	// Accent colours the energy graph.
	Accent      lipgloss.Color
	Text, Muted lipgloss.Color
	// Success, Warning and Error double as the sparkline bands.
	Success, Warning, Error lipgloss.Color
}

func palette(name string, hex ...string) Theme {
	c := make([]lipgloss.Color, len(hex))
	for i, h := range hex {
		c[i] = lipgloss.Color(h)
	}
	return Theme{
		Name: name, Primary: c[0], Secondary: c[1], Accent: c[2],
		Text: c[3], Muted: c[4], Success: c[5], Warning: c[6], Error: c[7],
	}
}

// Themes lists the built-in schemes in the order the t key cycles them.
var Themes = []Theme{
	//                   primary    secondary  accent     text       muted      ok         warn       error
	palette("neon", "#ff00ff", "#00ffff", "#ffff00", "#ffffff", "#666666", "#00ff00", "#ff8800", "#ff0000"),
	palette("phosphor", "#00ff00", "#00cc00", "#88ff88", "#00ff00", "#005500", "#88ff88", "#ffff00", "#ff0000"),
	palette("chalk", "#ffffff", "#cccccc", "#0088ff", "#ffffff", "#888888", "#00ff00", "#ffaa00", "#ff0000"),
	palette("deep", "#0077be", "#00a8cc", "#ffd700", "#e0f0ff", "#4488aa", "#00ff88", "#ffcc00", "#ff4444"),
	palette("ember", "#ff6b6b", "#feca57", "#ff9ff3", "#fff5f5", "#8b6b8c", "#5fd068", "#ffc048", "#ff4757"),
}

// CurrentTheme is the scheme the styles were last built from.
var CurrentTheme = Themes[0]

// GetTheme looks a theme up by name.
func GetTheme(name string) (Theme, bool) {
	for _, t := range Themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// SetTheme changes the current theme and restyles the views.
func SetTheme(name string) error {
	t, ok := GetTheme(name)
	if !ok {
		return fmt.Errorf("unknown theme %q (available: %v)", name, ThemeNames())
	}
	CurrentTheme = t
	applyTheme(t)
	return nil
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	next := Themes[0]
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			next = Themes[(i+1)%len(Themes)]
			break
		}
	}
	CurrentTheme = next
	applyTheme(next)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
