package storage

import (
	"encoding/json"
	"io"
	"slices"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

type ExportData struct {
	Run    RunMetadata      `json:"run"`
	Steps  int              `json:"steps"`
	Times  []float64        `json:"times"`
	Bodies []dynamo.BodyID  `json:"bodies"`
	Final  *dynamo.Snapshot `json:"final,omitempty"`
}

// Export summarizes a recorded run: its metadata, the recorded frame times,
// every body that appeared and the last recorded snapshot.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}

	data := ExportData{Run: *meta, Times: make([]float64, 0, meta.Recorded)}
	seen := make(map[dynamo.BodyID]bool)
	err = s.ScanFrames(runID, func(snap *dynamo.Snapshot) error {
		data.Times = append(data.Times, snap.Time)
		for id := range snap.Positions {
			if !seen[id] {
				seen[id] = true
				data.Bodies = append(data.Bodies, id)
			}
		}
		data.Final = snap
		return nil
	})
	if err != nil {
		return err
	}
	data.Steps = len(data.Times)
	slices.Sort(data.Bodies)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
