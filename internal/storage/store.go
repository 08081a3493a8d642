package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

const (
	metadataFile   = "metadata.json"
	framesFile     = "frames.jsonl.zst"
	trajectoryFile = "trajectory.csv"
	indexFile      = "index.db"
)

var ErrRunNotFound = errors.New("storage: run not found")

var trajectoryHeader = []string{"frame", "time", "body", "x", "y", "rotation", "vx", "vy"}

type Store struct {
	baseDir string
	index   *Index
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the data directory and opens the run index.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return err
	}
	if s.index != nil {
		return nil
	}
	ix, err := OpenIndex(filepath.Join(s.baseDir, indexFile))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	s.index = ix
	return nil
}

func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Scene     string    `json:"scene"`
	Timestamp time.Time `json:"timestamp"`
	Seed      int64     `json:"seed"`
	Dt        float64   `json:"dt"`
	// Frames is the last frame observed; Recorded counts those written.
	Frames   uint64             `json:"frames"`
	Recorded uint64             `json:"recorded"`
	Dropped  uint64             `json:"dropped"`
	Bodies   int                `json:"bodies"`
	Metrics  map[string]float64 `json:"metrics"`
	Notes    string             `json:"notes,omitempty"`
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// newRunDir allocates a fresh directory for scene, suffixing the id when two
// runs start within the same millisecond.
func (s *Store) newRunDir(scene string, now time.Time) (string, error) {
	base := fmt.Sprintf("%s_%d", scene, now.UnixMilli())
	id := base
	for i := 1; ; i++ {
		err := os.Mkdir(s.runDir(id), 0755)
		if err == nil {
			return id, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *Store) writeMetadata(meta *RunMetadata) error {
	metaFile, err := os.Create(filepath.Join(s.runDir(meta.ID), metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}
	if s.index != nil {
		return s.index.Put(meta)
	}
	return nil
}

// List returns every finished run. It reads the index when Init has been
// called and falls back to scanning run directories otherwise.
func (s *Store) List() ([]RunMetadata, error) {
	if s.index != nil {
		return s.index.List("")
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

type TrajectoryPoint struct {
	Frame    uint64
	Time     float64
	Position dynamo.Vec
	Rotation float64
	Velocity dynamo.Vec
}

// LoadTrajectory returns one body's recorded path in frame order.
func (s *Store) LoadTrajectory(runID string, body dynamo.BodyID) ([]TrajectoryPoint, error) {
	file, err := os.Open(filepath.Join(s.runDir(runID), trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(trajectoryHeader)
	r.ReuseRecord = true

	if _, err := r.Read(); err != nil {
		return []TrajectoryPoint{}, nil
	}

	want := strconv.FormatUint(uint64(body), 10)
	points := make([]TrajectoryPoint, 0)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, csv.ErrFieldCount) {
				continue
			}
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		if record[2] != want {
			continue
		}
		if p, ok := parsePoint(record); ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func parsePoint(record []string) (TrajectoryPoint, bool) {
	frame, err := strconv.ParseUint(record[0], 10, 64)
	if err != nil {
		return TrajectoryPoint{}, false
	}
	var vals [6]float64
	for i, col := range []int{1, 3, 4, 5, 6, 7} {
		if vals[i], err = strconv.ParseFloat(record[col], 64); err != nil {
			return TrajectoryPoint{}, false
		}
	}
	return TrajectoryPoint{
		Frame:    frame,
		Time:     vals[0],
		Position: dynamo.V(vals[1], vals[2]),
		Rotation: vals[3],
		Velocity: dynamo.V(vals[4], vals[5]),
	}, true
}

// ReadFrames decodes every recorded snapshot of a run.
func (s *Store) ReadFrames(runID string) ([]*dynamo.Snapshot, error) {
	frames := make([]*dynamo.Snapshot, 0)
	err := s.ScanFrames(runID, func(snap *dynamo.Snapshot) error {
		frames = append(frames, snap)
		return nil
	})
	return frames, err
}

// ScanFrames streams recorded snapshots to fn, stopping at the first error.
func (s *Store) ScanFrames(runID string, fn func(*dynamo.Snapshot) error) error {
	f, err := os.Open(filepath.Join(s.runDir(runID), framesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var snap dynamo.Snapshot
		if err := json.Unmarshal(sc.Bytes(), &snap); err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		if err := fn(&snap); err != nil {
			return err
		}
	}
	return sc.Err()
}
