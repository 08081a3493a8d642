package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/analysis"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/export"
	"github.com/san-kum/rigidsim/internal/storage"
)

var (
	plotBody    uint64
	analyzeBody uint64
	floor       float64
	svgBody     uint64
	svgOut      string
	braille     bool
)

func sortedKeys(m map[string]float64) []string {
	return slices.Sorted(maps.Keys(m))
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tFRAMES\tRECORDED\tDT\tBODIES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4fs\t%d\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Recorded,
			run.Dt,
			run.Bodies,
		)
	}
	return w.Flush()
}

func loadTrajectory(st *storage.Store, runID string, id uint64) ([]storage.TrajectoryPoint, error) {
	traj, err := st.LoadTrajectory(runID, dynamo.BodyID(id))
	if err != nil {
		return nil, err
	}
	if len(traj) == 0 {
		return nil, fmt.Errorf("body %d not found in run %s", id, runID)
	}
	return traj, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	traj, err := loadTrajectory(st, runID, plotBody)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("body: %d (%d samples)\n\n", plotBody, len(traj))

	_, ys := analysis.Heights(traj)
	fmt.Println(asciigraph.Plot(ys, asciigraph.Height(15), asciigraph.Width(70), asciigraph.Caption("height")))
	fmt.Println()
	fmt.Println(asciigraph.Plot(analysis.Speeds(traj), asciigraph.Height(8), asciigraph.Width(70), asciigraph.Caption("speed")))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	traj, err := loadTrajectory(st, runID, analyzeBody)
	if err != nil {
		return err
	}

	fmt.Printf("body %d in %s: %d samples over %.2fs\n\n", analyzeBody, runID, len(traj), traj[len(traj)-1].Time-traj[0].Time)

	spectrum, err := analysis.SeriesSpectrum(analysis.Heights(traj))
	if err != nil {
		fmt.Printf("spectrum: %v\n", err)
	} else {
		fmt.Printf("dominant height frequency: %.3f Hz\n", spectrum.Dominant())
		n := min(len(spectrum.Power), 64)
		fmt.Println(asciigraph.Plot(spectrum.Power[1:n], asciigraph.Height(8), asciigraph.Width(64), asciigraph.Caption("power spectrum")))
	}

	hits := analysis.DownwardCrossings(traj, floor)
	fmt.Printf("\nimpacts below %.2f: %d\n", floor, len(hits))
	for i, h := range hits {
		if i == 10 {
			fmt.Printf("  ... %d more\n", len(hits)-i)
			break
		}
		fmt.Printf("  frame %-6d t=%.3fs x=%.3f speed=%.3f\n", h.Frame, h.Time, h.X, h.Speed)
	}

	fmt.Println("\nphase portrait (y, vy):")
	fmt.Print(analysis.PhasePortraitToASCII(analysis.PhasePortrait(traj, 1), 60, 16))

	if len(args) == 2 {
		other, err := loadTrajectory(st, args[1], analyzeBody)
		if err != nil {
			return err
		}
		div, err := analysis.Divergence(traj, other)
		if err != nil {
			return fmt.Errorf("compare with %s: %w", args[1], err)
		}
		sep := analysis.Separation(traj, other)
		fmt.Printf("\ndivergence from %s: %.4f /s (final gap %.4f)\n", args[1], div, sep[len(sep)-1])
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Export(os.Stdout, args[0])
}

func svgRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var ids []dynamo.BodyID
	if svgBody != 0 {
		ids = []dynamo.BodyID{dynamo.BodyID(svgBody)}
	} else {
		seen := make(map[dynamo.BodyID]bool)
		err := st.ScanFrames(runID, func(s *dynamo.Snapshot) error {
			for _, id := range s.IDs() {
				seen[id] = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		ids = slices.Sorted(maps.Keys(seen))
	}

	paths := make([]export.Path, 0, len(ids))
	for _, id := range ids {
		traj, err := st.LoadTrajectory(runID, id)
		if err != nil {
			return err
		}
		paths = append(paths, export.Path{Body: id, Points: traj})
	}

	var out string
	if braille {
		out = export.CanvasToSVG(export.TrajectoryToCanvas(paths, 80, 24), 4)
	} else {
		out = export.TrajectoryToSVG(paths, 800, 600)
	}
	if out == "" {
		return fmt.Errorf("nothing to draw in run %s", runID)
	}

	if svgOut == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(svgOut, []byte(out), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", svgOut)
	return nil
}
