package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

const recorderBuffer = 4096

// RunInfo describes a run as it starts.
type RunInfo struct {
	Scene string
	Seed  int64
	Dt    float64
	// Every keeps one published frame in Every.
	Every int
	Notes string
}

// Recorder persists published snapshots of one run. It is a sim.Observer:
// OnPublish never blocks the worker, and frames arriving while the writer
// goroutine is behind are dropped and counted.
type Recorder struct {
	store *Store
	meta  RunMetadata
	every uint64

	ch      chan *dynamo.Snapshot
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	once    sync.Once
	result  *RunMetadata
	finErr  error
	dropped atomic.Uint64
	seen    atomic.Uint64

	// writer goroutine state
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	csvF   *os.File
	csv    *csv.Writer
	count  uint64
	bodies int
	werr   error
}

func (s *Store) NewRecorder(info RunInfo) (*Recorder, error) {
	if info.Scene == "" {
		info.Scene = "scene"
	}
	if info.Every < 1 {
		info.Every = 1
	}
	now := time.Now()
	id, err := s.newRunDir(info.Scene, now)
	if err != nil {
		return nil, err
	}
	dir := s.runDir(id)

	f, err := os.Create(filepath.Join(dir, framesFile))
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	csvF, err := os.Create(filepath.Join(dir, trajectoryFile))
	if err != nil {
		_ = enc.Close()
		_ = f.Close()
		return nil, err
	}
	cw := csv.NewWriter(csvF)
	if err := cw.Write(trajectoryHeader); err != nil {
		_ = csvF.Close()
		_ = enc.Close()
		_ = f.Close()
		return nil, err
	}

	r := &Recorder{
		store: s,
		meta: RunMetadata{
			ID:        id,
			Scene:     info.Scene,
			Timestamp: now,
			Seed:      info.Seed,
			Dt:        info.Dt,
			Notes:     info.Notes,
		},
		every: uint64(info.Every),
		ch:    make(chan *dynamo.Snapshot, recorderBuffer),
		f:     f,
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 128*1024),
		csvF:  csvF,
		csv:   cw,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop()
	}()
	return r, nil
}

func (r *Recorder) ID() string { return r.meta.ID }

// OnPublish hands s to the writer goroutine. s must not be modified
// afterwards.
func (r *Recorder) OnPublish(s *dynamo.Snapshot) {
	r.seen.Store(s.Frame)
	if s.Frame%r.every != 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- s:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) loop() {
	for s := range r.ch {
		if r.werr != nil {
			continue
		}
		r.werr = r.write(s)
	}
}

func (r *Recorder) write(s *dynamo.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}

	t := strconv.FormatFloat(s.Time, 'f', 6, 64)
	frame := strconv.FormatUint(s.Frame, 10)
	for _, id := range s.IDs() {
		st, _ := s.Body(id)
		row := []string{
			frame, t, strconv.FormatUint(uint64(id), 10),
			strconv.FormatFloat(st.Position.X(), 'f', 6, 64),
			strconv.FormatFloat(st.Position.Y(), 'f', 6, 64),
			strconv.FormatFloat(st.Rotation, 'f', 6, 64),
			strconv.FormatFloat(st.Velocity.X(), 'f', 6, 64),
			strconv.FormatFloat(st.Velocity.Y(), 'f', 6, 64),
		}
		if err := r.csv.Write(row); err != nil {
			return err
		}
	}

	r.count++
	r.bodies = s.Len()
	return nil
}

// Finish stops recording, flushes everything to disk and writes the run's
// metadata with the given metric values. Later calls return the first
// result.
func (r *Recorder) Finish(metrics map[string]float64) (*RunMetadata, error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		r.mu.Unlock()
		r.wg.Wait()

		err := r.werr
		if ferr := r.w.Flush(); err == nil {
			err = ferr
		}
		err = errors.Join(err, r.enc.Close(), r.f.Close())
		r.csv.Flush()
		err = errors.Join(err, r.csv.Error(), r.csvF.Close())

		meta := r.meta
		meta.Frames = r.seen.Load()
		meta.Recorded = r.count
		meta.Dropped = r.dropped.Load()
		meta.Bodies = r.bodies
		meta.Metrics = metrics
		if meta.Metrics == nil {
			meta.Metrics = map[string]float64{}
		}
		if err == nil {
			err = r.store.writeMetadata(&meta)
		}
		r.result, r.finErr = &meta, err
	})
	return r.result, r.finErr
}
