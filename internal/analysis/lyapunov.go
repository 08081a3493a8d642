package analysis

import (
	"math"

	"github.com/san-kum/rigidsim/internal/storage"
)

// Divergence estimates how fast two recordings of the same body drift apart,
// typically a run and a perturbed copy of it. It returns the mean of
// ln(d(t)/d0)/t over the matched frames, where d is the distance between the
// two positions and d0 the first non-zero distance. A positive value means
// small differences grow; for a chaotic scene it approximates the largest
// Lyapunov exponent.
func Divergence(a, b []storage.TrajectoryPoint) (float64, error) {
	byFrame := make(map[uint64]storage.TrajectoryPoint, len(b))
	for _, p := range b {
		byFrame[p.Frame] = p
	}

	var d0, t0, sum float64
	count := 0
	for _, p := range a {
		q, ok := byFrame[p.Frame]
		if !ok {
			continue
		}
		sep := p.Position.Sub(q.Position).Len()
		if sep == 0 {
			continue
		}
		if d0 == 0 {
			d0, t0 = sep, p.Time
			continue
		}
		if dt := p.Time - t0; dt > 0 {
			sum += math.Log(sep/d0) / dt
			count++
		}
	}
	if count == 0 {
		return 0, ErrTooShort
	}
	return sum / float64(count), nil
}

// Separation returns the distance between the two recordings at every frame
// both contain, in a's order.
func Separation(a, b []storage.TrajectoryPoint) []float64 {
	byFrame := make(map[uint64]storage.TrajectoryPoint, len(b))
	for _, p := range b {
		byFrame[p.Frame] = p
	}
	out := make([]float64, 0, len(a))
	for _, p := range a {
		if q, ok := byFrame[p.Frame]; ok {
			out = append(out, p.Position.Sub(q.Position).Len())
		}
	}
	return out
}
