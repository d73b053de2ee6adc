package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/gravsim/internal/gravity"
)

type ExportData struct {
	ID       string             `json:"id"`
	Scenario string             `json:"scenario"`
	StepS    float64            `json:"step_s"`
	Steps    int                `json:"steps"`
	Metrics  map[string]float64 `json:"metrics"`
	States   []gravity.State    `json:"states"`
}

// ExportJSON writes a stored run as one JSON document. Each snapshot uses the
// same field names as the HTTP API.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, err := s.LoadStates(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		ID:       meta.ID,
		Scenario: meta.Scenario,
		StepS:    meta.StepS,
		Steps:    meta.Steps,
		Metrics:  meta.Metrics,
		States:   states,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
