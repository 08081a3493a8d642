package analysis

import (
	"strings"

	"github.com/san-kum/rigidsim/internal/storage"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D pairs one coordinate of a body with its velocity.
type PhasePortrait2D struct {
	Axis   int
	Points []Point
}

// PhasePortrait builds position against velocity along axis (0 = x,
// 1 = y) from a recorded trajectory.
func PhasePortrait(traj []storage.TrajectoryPoint, axis int) *PhasePortrait2D {
	if axis < 0 || axis > 1 {
		return nil
	}
	portrait := &PhasePortrait2D{Axis: axis, Points: make([]Point, 0, len(traj))}
	for _, p := range traj {
		portrait.Points = append(portrait.Points, Point{X: p.Position[axis], Y: p.Velocity[axis]})
	}
	return portrait
}

// PhasePortraitToASCII converts phase portrait to ASCII art
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y
	for _, p := range portrait.Points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// Axes, where they cross the visible area.
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

// Crossing is one downward pass of a body through a height.
type Crossing struct {
	Frame uint64
	Time  float64
	X     float64
	Speed float64
}

// DownwardCrossings records each time traj falls through height, with the
// time interpolated between the two frames around the crossing. On a
// bouncing body these are the impacts with a floor at that height.
func DownwardCrossings(traj []storage.TrajectoryPoint, height float64) []Crossing {
	var out []Crossing
	for i := 1; i < len(traj); i++ {
		prev, cur := traj[i-1], traj[i]
		y0, y1 := prev.Position.Y(), cur.Position.Y()
		if !(y0 > height && y1 <= height) {
			continue
		}
		f := (y0 - height) / (y0 - y1)
		out = append(out, Crossing{
			Frame: cur.Frame,
			Time:  prev.Time + f*(cur.Time-prev.Time),
			X:     prev.Position.X() + f*(cur.Position.X()-prev.Position.X()),
			Speed: cur.Velocity.Len(),
		})
	}
	return out
}
