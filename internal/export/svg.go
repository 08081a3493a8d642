// Package export renders recorded trajectories as SVG.
package export

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/storage"
	"github.com/san-kum/rigidsim/internal/viz"
)

// Palette cycles per body.
var Palette = []string{"#00ffff", "#ff00ff", "#ffd700", "#00ff88", "#ff6b6b", "#88aaff"}

// Path is one body's recorded trajectory.
type Path struct {
	Body   dynamo.BodyID
	Points []storage.TrajectoryPoint
}

type bounds struct{ minX, minY, maxX, maxY float64 }

func pathBounds(paths []Path) (bounds, bool) {
	b := bounds{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	found := false
	for _, p := range paths {
		for _, pt := range p.Points {
			b.minX, b.maxX = min(b.minX, pt.Position.X()), max(b.maxX, pt.Position.X())
			b.minY, b.maxY = min(b.minY, pt.Position.Y()), max(b.maxY, pt.Position.Y())
			found = true
		}
	}
	if !found {
		return b, false
	}

	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.1
	b.maxX += rangeX * 0.1
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
	return b, true
}

// TrajectoryToSVG draws each path as a polyline, world y up, with a dot at
// the final position. Paths with fewer than two points are skipped.
func TrajectoryToSVG(paths []Path, width, height int) string {
	paths = slices.DeleteFunc(slices.Clone(paths), func(p Path) bool { return len(p.Points) < 2 })
	b, ok := pathBounds(paths)
	if !ok {
		return ""
	}
	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	project := func(v dynamo.Vec) (float64, float64) {
		return (v.X() - b.minX) / rangeX * float64(width),
			float64(height) - (v.Y()-b.minY)/rangeY*float64(height)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for i, p := range paths {
		color := Palette[i%len(Palette)]
		fmt.Fprintf(&sb, `<path id="body-%d" fill="none" stroke="%s" stroke-width="1.5" d="M`, p.Body, color)
		for j, pt := range p.Points {
			x, y := project(pt.Position)
			if j == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
		x, y := project(p.Points[len(p.Points)-1].Position)
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>
`, x, y, color)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// TrajectoryToCanvas plots the paths onto a braille canvas w x h cells.
func TrajectoryToCanvas(paths []Path, w, h int) *viz.Canvas {
	c := viz.NewCanvas(w, h)
	b, ok := pathBounds(paths)
	if !ok {
		return c
	}
	dw, dh := c.Dots()
	view := viz.Viewport{MinX: b.minX, MinY: b.minY, MaxX: b.maxX, MaxY: b.maxY}.Fit(dw, dh, 0)
	for _, p := range paths {
		for j, pt := range p.Points {
			x, y := view.Project(pt.Position.X(), pt.Position.Y(), dw, dh)
			if j == 0 {
				c.Set(x, y)
				continue
			}
			px, py := view.Project(p.Points[j-1].Position.X(), p.Points[j-1].Position.Y(), dw, dh)
			c.DrawLine(px, py, x, y)
		}
	}
	return c
}

// CanvasToSVG converts a Braille canvas to SVG format
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	dw, dh := canvas.Dots()
	width, height := float64(dw)*scale, float64(dh)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff00">
`, width, height, width, height)

	dotRadius := scale * 0.4
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, float64(x)*scale+scale/2, float64(y)*scale+scale/2, dotRadius)
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
