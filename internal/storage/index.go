package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Index is the sqlite catalogue of finished runs. metadata.json in each run
// directory stays the source of truth; the index only makes listing cheap.
type Index struct {
	db *sql.DB
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scene TEXT NOT NULL,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			dt REAL NOT NULL,
			frames INTEGER NOT NULL,
			recorded INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			bodies INTEGER NOT NULL,
			metrics_json TEXT NOT NULL,
			notes TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_scene ON runs(scene, started_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) Put(m *RunMetadata) error {
	metrics, err := json.Marshal(m.Metrics)
	if err != nil {
		return err
	}
	_, err = ix.db.Exec(
		`INSERT OR REPLACE INTO runs(id,scene,started_at,seed,dt,frames,recorded,dropped,bodies,metrics_json,notes) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Scene, m.Timestamp.UTC().Format(time.RFC3339Nano), m.Seed, m.Dt,
		m.Frames, m.Recorded, m.Dropped, m.Bodies, string(metrics), m.Notes,
	)
	return err
}

// List returns runs oldest first, optionally restricted to one scene.
func (ix *Index) List(scene string) ([]RunMetadata, error) {
	q := `SELECT id,scene,started_at,seed,dt,frames,recorded,dropped,bodies,metrics_json,notes FROM runs`
	var args []any
	if scene != "" {
		q += ` WHERE scene = ?`
		args = append(args, scene)
	}
	q += ` ORDER BY started_at, id`

	rows, err := ix.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var (
			m       RunMetadata
			started string
			metrics string
			notes   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Scene, &started, &m.Seed, &m.Dt, &m.Frames,
			&m.Recorded, &m.Dropped, &m.Bodies, &metrics, &notes); err != nil {
			return nil, err
		}
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(metrics), &m.Metrics); err != nil {
			return nil, fmt.Errorf("run %s: %w", m.ID, err)
		}
		m.Notes = notes.String
		runs = append(runs, m)
	}
	return runs, rows.Err()
}

func (ix *Index) Delete(id string) error {
	_, err := ix.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	return err
}

func (ix *Index) Close() error { return ix.db.Close() }
