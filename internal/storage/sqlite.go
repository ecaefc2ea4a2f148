package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	seed       INTEGER NOT NULL,
	dt         REAL NOT NULL,
	substeps   INTEGER NOT NULL,
	backend    TEXT NOT NULL,
	frames     INTEGER NOT NULL,
	counters   TEXT NOT NULL,
	metrics    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS frames (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	step       INTEGER NOT NULL,
	time       REAL NOT NULL,
	generation INTEGER NOT NULL,
	counters   TEXT NOT NULL,
	PRIMARY KEY (run_id, step)
);
CREATE TABLE IF NOT EXISTS particles (
	run_id TEXT NOT NULL,
	step   INTEGER NOT NULL,
	domain TEXT NOT NULL,
	owner  INTEGER NOT NULL,
	x REAL NOT NULL,
	y REAL NOT NULL,
	z REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS particles_run_step ON particles(run_id, step);
`

// SQLiteStore keeps recordings in a single database file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(rec *Recording) (string, error) {
	rec.finalize()
	counters, err := json.Marshal(rec.Meta.Counters)
	if err != nil {
		return "", err
	}
	metrics, err := json.Marshal(rec.Meta.Metrics)
	if err != nil {
		return "", err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, scenario, created_at, seed, dt, substeps, backend, frames, counters, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Meta.ID, rec.Meta.Scenario, rec.Meta.Timestamp.Format(time.RFC3339Nano), rec.Meta.Seed,
		rec.Meta.Dt, rec.Meta.Substeps, rec.Meta.Backend, rec.Meta.Frames, string(counters), string(metrics))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	frameStmt, err := tx.Prepare(`INSERT INTO frames (run_id, step, time, generation, counters) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer frameStmt.Close()
	partStmt, err := tx.Prepare(`INSERT INTO particles (run_id, step, domain, owner, x, y, z) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer partStmt.Close()

	for _, f := range rec.Frames {
		fc, err := json.Marshal(f.Counters)
		if err != nil {
			return "", err
		}
		if _, err := frameStmt.Exec(rec.Meta.ID, int64(f.Step), f.Time, int64(f.Generation), string(fc)); err != nil {
			return "", fmt.Errorf("failed to insert frame %d: %w", f.Step, err)
		}
		for _, d := range f.Domains {
			kind := d.Kind.String()
			for i, p := range d.Positions {
				if _, err := partStmt.Exec(rec.Meta.ID, int64(f.Step), kind, int64(d.Owners[i]), p[0], p[1], p[2]); err != nil {
					return "", fmt.Errorf("failed to insert particle: %w", err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit recording: %w", err)
	}
	return rec.Meta.ID, nil
}

func (s *SQLiteStore) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(`SELECT id, scenario, created_at, seed, dt, substeps, backend, frames, counters, metrics FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var m RunMetadata
		var created, counters, metrics string
		if err := rows.Scan(&m.ID, &m.Scenario, &created, &m.Seed, &m.Dt, &m.Substeps, &m.Backend, &m.Frames, &counters, &metrics); err != nil {
			return nil, err
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		if err := json.Unmarshal([]byte(counters), &m.Counters); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metrics), &m.Metrics); err != nil {
			return nil, err
		}
		runs = append(runs, m)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) LoadFrames(runID string) ([]*snapshot.Frame, error) {
	rows, err := s.db.Query(`SELECT step, time, generation, counters FROM frames WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	var frames []*snapshot.Frame
	byStep := map[uint64]*snapshot.Frame{}
	for rows.Next() {
		var f snapshot.Frame
		var step, gen int64
		var counters string
		if err := rows.Scan(&step, &f.Time, &gen, &counters); err != nil {
			rows.Close()
			return nil, err
		}
		f.Step, f.Generation = uint64(step), uint64(gen)
		if err := json.Unmarshal([]byte(counters), &f.Counters); err != nil {
			rows.Close()
			return nil, err
		}
		frames = append(frames, &f)
		byStep[f.Step] = &f
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.Query(`SELECT step, domain, owner, x, y, z FROM particles WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var step, owner int64
		var domain string
		var p dynamo.Vec3
		if err := prows.Scan(&step, &domain, &owner, &p[0], &p[1], &p[2]); err != nil {
			return nil, err
		}
		f, ok := byStep[uint64(step)]
		if !ok {
			continue
		}
		kind, err := dynamo.ParseKind(domain)
		if err != nil {
			return nil, err
		}
		d, ok := f.Domain(kind)
		if !ok {
			f.Domains = append(f.Domains, snapshot.DomainFrame{Kind: kind})
			d = &f.Domains[len(f.Domains)-1]
		}
		d.Positions = append(d.Positions, p)
		d.Owners = append(d.Owners, dynamo.ID(owner))
	}
	return frames, prows.Err()
}
