// Package storage keeps finished runs on disk, one directory per run holding
// metadata.json and states.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/gravsim/internal/geom"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

var (
	ErrMalformedStates = errors.New("storage: malformed states file")
	ErrBodyCount       = errors.New("storage: body count changed during run")
)

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
	StepS     float64            `json:"step_s"`
	Steps     int                `json:"steps"`
	Bodies    int                `json:"bodies"`
	Masses    []float64          `json:"masses_kg"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Duration is the simulated time covered by the run.
func (m RunMetadata) Duration() float64 {
	return float64(m.Steps) * m.StepS
}

func (s *Store) Save(scenario string, result *sim.Result) (string, error) {
	if result == nil || len(result.States) == 0 {
		return "", errors.New("storage: empty result")
	}

	now := time.Now()
	runID := fmt.Sprintf("%s_%d", runPrefix(scenario), now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	first := result.States[0]
	meta := RunMetadata{
		ID:        runID,
		Scenario:  scenario,
		Timestamp: now,
		StepS:     first.StepS,
		Steps:     result.StepsTaken,
		Bodies:    len(first.Entities),
		Masses:    make([]float64, len(first.Entities)),
		Metrics:   finiteMetrics(result.Metrics),
	}
	for i, e := range first.Entities {
		meta.Masses[i] = e.MassKg
	}

	if err := writeMetadata(filepath.Join(runDir, metadataFile), meta); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), result.States); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}

	return runID, nil
}

// runPrefix turns a scenario name into a single directory name component.
func runPrefix(scenario string) string {
	prefix := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, scenario)
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return "run"
	}
	return prefix
}

// finiteMetrics drops values JSON cannot carry.
func finiteMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}

func writeMetadata(path string, meta RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeStates(path string, states []gravity.State) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"time"}
	for i := range states[0].Entities {
		header = append(header,
			fmt.Sprintf("b%d_x", i), fmt.Sprintf("b%d_y", i),
			fmt.Sprintf("b%d_vx", i), fmt.Sprintf("b%d_vy", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	bodies := len(states[0].Entities)
	for i, st := range states {
		if len(st.Entities) != bodies {
			return fmt.Errorf("%w: state %d has %d bodies, want %d", ErrBodyCount, i, len(st.Entities), bodies)
		}
		row := []string{formatFloat(st.TimeS)}
		for _, v := range st.Flatten() {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns every readable run, oldest first.
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

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadStates rebuilds the recorded snapshots of a run. Masses and the step
// come from the run metadata.
func (s *Store) LoadStates(runID string) ([]gravity.State, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []gravity.State{}, nil
	}

	width := 1 + 4*len(meta.Masses)
	states := make([]gravity.State, 0, len(records)-1)
	for line, record := range records[1:] {
		if len(record) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformedStates, line+1, len(record), width)
		}

		vals := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedStates, line+1, err)
			}
			vals[j] = v
		}

		st := gravity.State{
			StepS:    meta.StepS,
			TimeS:    vals[0],
			Entities: make([]gravity.Entity, len(meta.Masses)),
		}
		for i, m := range meta.Masses {
			off := 1 + 4*i
			st.Entities[i] = gravity.Entity{
				MassKg:     m,
				PositionM:  geom.New(vals[off], vals[off+1]),
				VelocityMs: geom.New(vals[off+2], vals[off+3]),
			}
		}
		states = append(states, st)
	}

	return states, nil
}
