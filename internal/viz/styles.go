package viz

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles shared by the live view and the preset menu. They are rebuilt from
// CurrentTheme by applyTheme.
var (
	headerStyle   lipgloss.Style
	subtleStyle   lipgloss.Style
	labelStyle    = lipgloss.NewStyle().Width(12)
	valueStyle    lipgloss.Style
	selectedStyle lipgloss.Style
	keyStyle      lipgloss.Style
	graphStyle    lipgloss.Style
	canvasStyle   lipgloss.Style
	statsStyle    lipgloss.Style

	statusRunning   lipgloss.Style
	statusPaused    lipgloss.Style
	statusRecording lipgloss.Style

	sparkHigh, sparkMid, sparkLow lipgloss.Style
)

func init() { applyTheme(CurrentTheme) }

func applyTheme(t Theme) {
	headerStyle = lipgloss.NewStyle().Foreground(t.Secondary).Bold(true).MarginBottom(1)
	subtleStyle = lipgloss.NewStyle().Foreground(t.Muted)
	labelStyle = labelStyle.Foreground(t.Muted)
	valueStyle = lipgloss.NewStyle().Foreground(t.Text)
	selectedStyle = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	keyStyle = lipgloss.NewStyle().Foreground(t.Secondary).Bold(true)
	graphStyle = lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0)
	canvasStyle = lipgloss.NewStyle().Foreground(t.Secondary).Padding(1, 2)
	statsStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(t.Muted).
		Padding(1, 2).
		Width(45)

	statusRunning = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	statusPaused = lipgloss.NewStyle().Bold(true).Foreground(t.Warning)
	statusRecording = lipgloss.NewStyle().Bold(true).Foreground(t.Error).Blink(true)

	sparkHigh = lipgloss.NewStyle().Foreground(t.Success)
	sparkMid = lipgloss.NewStyle().Foreground(t.Warning)
	sparkLow = lipgloss.NewStyle().Foreground(t.Error)
}

// GradientText creates a gradient effect on text using color interpolation
func GradientText(text string, startColor, endColor lipgloss.Color) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	sr, sg, sb := parseHex(string(startColor))
	er, eg, eb := parseHex(string(endColor))

	var result strings.Builder
	n := max(len(runes)-1, 1)
	for i, c := range runes {
		t := float64(i) / float64(n)
		r := int(float64(sr) + t*float64(er-sr))
		g := int(float64(sg) + t*float64(eg-sg))
		b := int(float64(sb) + t*float64(eb-sb))

		style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(r, g, b)))
		result.WriteString(style.Render(string(c)))
	}
	return result.String()
}

func AnimatedSpinner(frame uint64) string {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return spinners[frame%uint64(len(spinners))]
}

// ProgressBar renders percent (0..1) as a bar width cells wide.
func ProgressBar(percent float64, width int) string {
	filled := min(max(int(percent*float64(width)), 0), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case percent > 0.8:
		return sparkHigh.Render(bar)
	case percent > 0.4:
		return sparkMid.Render(bar)
	}
	return sparkLow.Render(bar)
}

// SparklineChart renders a mini sparkline from the last width values.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var result strings.Builder
	for _, v := range values {
		norm := (v - lo) / rng
		c := string(chars[min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)])
		switch {
		case norm > 0.7:
			result.WriteString(sparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(sparkMid.Render(c))
		default:
			result.WriteString(sparkLow.Render(c))
		}
	}
	return result.String()
}

func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(mid-3, 0))
	right := strings.Repeat("─", max(width-mid-3, 0))
	return subtleStyle.Render(left + " ◆ " + right)
}

func parseHex(hex string) (r, g, b int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 255, 255, 255
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 255, 255, 255
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func hexColor(r, g, b int) string {
	clamp := func(v int) int { return min(max(v, 0), 255) }
	return "#" + strconv.FormatInt(int64(1<<24|clamp(r)<<16|clamp(g)<<8|clamp(b)), 16)[1:]
}
