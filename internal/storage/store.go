package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
)

// Store keeps one directory per recorded run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string             `json:"id"`
	Scenario  string             `json:"scenario"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Substeps  int                `json:"substeps"`
	Backend   string             `json:"backend"`
	Frames    int                `json:"frames"`
	Counters  dynamo.Counters    `json:"counters"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Recording is a span of frames bracketed by start and stop.
type Recording struct {
	Meta   RunMetadata
	Frames []*snapshot.Frame
}

// NewID names a run after its scenario with a random suffix.
func NewID(scenario string) string {
	if scenario == "" {
		scenario = "run"
	}
	return fmt.Sprintf("%s_%s", scenario, uuid.NewString()[:8])
}

func (r *Recording) finalize() {
	if r.Meta.ID == "" {
		r.Meta.ID = NewID(r.Meta.Scenario)
	}
	if r.Meta.Timestamp.IsZero() {
		r.Meta.Timestamp = time.Now()
	}
	r.Meta.Frames = len(r.Frames)
	if n := len(r.Frames); n > 0 {
		r.Meta.Counters = r.Frames[n-1].Counters
	}
}

// Save writes rec into a new run directory and returns its id.
func (s *Store) Save(rec *Recording) (string, error) {
	rec.finalize()
	if err := WriteDir(filepath.Join(s.baseDir, rec.Meta.ID), rec); err != nil {
		return "", err
	}
	return rec.Meta.ID, nil
}

var frameHeader = []string{"step", "time", "domain", "owner", "x", "y", "z"}

// WriteDir writes metadata.json and frames.csv into dir.
func WriteDir(dir string, rec *Recording) error {
	rec.finalize()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	metaFile, err := os.Create(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec.Meta); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(dir, "frames.csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(frameHeader); err != nil {
		return err
	}
	for _, f := range rec.Frames {
		step := strconv.FormatUint(f.Step, 10)
		tm := strconv.FormatFloat(f.Time, 'g', -1, 64)
		for _, d := range f.Domains {
			kind := d.Kind.String()
			for i, p := range d.Positions {
				row := []string{
					step, tm, kind,
					strconv.Itoa(int(d.Owners[i])),
					strconv.FormatFloat(p[0], 'g', -1, 64),
					strconv.FormatFloat(p[1], 'g', -1, 64),
					strconv.FormatFloat(p[2], 'g', -1, 64),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
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
		meta, err := readMeta(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	return readMeta(filepath.Join(s.baseDir, runID))
}

func readMeta(dir string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadFrames rebuilds the recorded particle positions of a run. Only the
// fields written to frames.csv are restored, and frames that held no
// particles are absent.
func (s *Store) LoadFrames(runID string) ([]*snapshot.Frame, error) {
	return ReadFrames(filepath.Join(s.baseDir, runID))
}

func ReadFrames(dir string) ([]*snapshot.Frame, error) {
	file, err := os.Open(filepath.Join(dir, "frames.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var frames []*snapshot.Frame
	var cur *snapshot.Frame
	for i, rec := range records {
		if i == 0 {
			continue
		}
		step, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("frames.csv line %d: %w", i+1, err)
		}
		if cur == nil || cur.Step != step {
			tm, err := strconv.ParseFloat(rec[1], 64)
			if err != nil {
				return nil, fmt.Errorf("frames.csv line %d: %w", i+1, err)
			}
			cur = &snapshot.Frame{Step: step, Time: tm}
			frames = append(frames, cur)
		}
		kind, err := dynamo.ParseKind(rec[2])
		if err != nil {
			return nil, fmt.Errorf("frames.csv line %d: %w", i+1, err)
		}
		owner, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("frames.csv line %d: %w", i+1, err)
		}
		var p dynamo.Vec3
		for a := 0; a < 3; a++ {
			if p[a], err = strconv.ParseFloat(rec[4+a], 64); err != nil {
				return nil, fmt.Errorf("frames.csv line %d: %w", i+1, err)
			}
		}
		d, ok := cur.Domain(kind)
		if !ok {
			cur.Domains = append(cur.Domains, snapshot.DomainFrame{Kind: kind})
			d = &cur.Domains[len(cur.Domains)-1]
		}
		d.Positions = append(d.Positions, p)
		d.Owners = append(d.Owners, dynamo.ID(owner))
	}
	return frames, nil
}
