// Package analysis works on recorded body trajectories.
//
//   - [SeriesSpectrum]: power spectrum of an unevenly timed series, e.g. a
//     body's height, after resampling to a power-of-two length
//   - [PhasePortrait]: position against velocity along one axis
//   - [DownwardCrossings]: impacts of a body with a given height
//   - [Divergence]: growth rate of the gap between two runs of one body
//
// A bouncing ball shows up as a spectrum peak at its bounce frequency:
//
//	traj, _ := store.LoadTrajectory(runID, 1)
//	spectrum, err := analysis.SeriesSpectrum(analysis.Heights(traj))
//	if err == nil {
//	    fmt.Println(spectrum.Dominant())
//	}
package analysis
