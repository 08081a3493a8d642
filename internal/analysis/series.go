package analysis

import "github.com/san-kum/rigidsim/internal/storage"

// Heights splits a trajectory into times and y positions.
func Heights(traj []storage.TrajectoryPoint) (times, ys []float64) {
	times = make([]float64, len(traj))
	ys = make([]float64, len(traj))
	for i, p := range traj {
		times[i], ys[i] = p.Time, p.Position.Y()
	}
	return times, ys
}

func Speeds(traj []storage.TrajectoryPoint) []float64 {
	out := make([]float64, len(traj))
	for i, p := range traj {
		out[i] = p.Velocity.Len()
	}
	return out
}
