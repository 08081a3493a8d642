package viz

import (
	"image"
	"image/color"
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a grid of braille cells. Drawing happens in sub-pixel
// coordinates: the canvas is (Width*2) x (Height*4) dots with the origin at
// the top left.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Dots returns the canvas size in sub-pixels.
func (c *Canvas) Dots() (w, h int) { return c.Width * 2, c.Height * 4 }

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the dot at (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 {
		return false
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return false
	}
	return c.Grid[row][col]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawCircle outlines a circle of radius r dots (midpoint algorithm).
// A radius below one dot lights the centre only.
func (c *Canvas) DrawCircle(cx, cy, r int) {
	if r < 1 {
		c.Set(cx, cy)
		return
	}
	x, y, d := r, 0, 1-r
	for x >= y {
		for _, p := range [8][2]int{
			{x, y}, {y, x}, {-y, x}, {-x, y},
			{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			c.Set(cx+p[0], cy+p[1])
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

// DrawPolygon connects pts in order and closes the loop.
func (c *Canvas) DrawPolygon(pts [][2]int) {
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		c.DrawLine(a[0], a[1], b[0], b[1])
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Image rasterises the canvas, each cell taking cellW x cellH pixels.
func (c *Canvas) Image(cellW, cellH int) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, c.Width*cellW, c.Height*cellH), color.Palette{color.Black, color.White})
	dotW, dotH := max(cellW/2, 1), max(cellH/4, 1)
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			cell := c.Grid[row][col]
			if cell == blank {
				continue
			}
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if cell&rune(pixelMap[dy][dx]) == 0 {
						continue
					}
					x0, y0 := col*cellW+dx*dotW, row*cellH+dy*dotH
					for py := 0; py < dotH; py++ {
						for px := 0; px < dotW; px++ {
							img.SetColorIndex(x0+px, y0+py, 1)
						}
					}
				}
			}
		}
	}
	return img
}

// Viewport maps world coordinates (y up) onto a canvas (y down).
type Viewport struct {
	MinX, MinY, MaxX, MaxY float64
}

// Fit grows v by margin on every side and widens the shorter axis so one
// world unit covers the same distance horizontally and vertically on a
// w x h dot canvas.
func (v Viewport) Fit(w, h int, margin float64) Viewport {
	v.MinX, v.MinY = v.MinX-margin, v.MinY-margin
	v.MaxX, v.MaxY = v.MaxX+margin, v.MaxY+margin
	if w <= 0 || h <= 0 {
		return v
	}
	ww, wh := v.MaxX-v.MinX, v.MaxY-v.MinY
	if ww <= 0 {
		ww = 1
	}
	if wh <= 0 {
		wh = 1
	}
	aspect := float64(w) / float64(h)
	if ww/wh < aspect {
		pad := (wh*aspect - ww) / 2
		v.MinX, v.MaxX = v.MinX-pad, v.MaxX+pad
	} else {
		pad := (ww/aspect - wh) / 2
		v.MinY, v.MaxY = v.MinY-pad, v.MaxY+pad
	}
	return v
}

// Include extends v to cover the point (x, y).
func (v Viewport) Include(x, y float64) Viewport {
	v.MinX, v.MaxX = math.Min(v.MinX, x), math.Max(v.MaxX, x)
	v.MinY, v.MaxY = math.Min(v.MinY, y), math.Max(v.MaxY, y)
	return v
}

// Project returns the dot for world point (x, y) on a w x h dot canvas.
func (v Viewport) Project(x, y float64, w, h int) (int, int) {
	sx := (x - v.MinX) / (v.MaxX - v.MinX) * float64(w-1)
	sy := (v.MaxY - y) / (v.MaxY - v.MinY) * float64(h-1)
	return int(math.Round(sx)), int(math.Round(sy))
}

// Scale converts a world length into dots along the x axis.
func (v Viewport) Scale(d float64, w int) int {
	return int(math.Round(d / (v.MaxX - v.MinX) * float64(w-1)))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
