// Package workunit turns chunks into executable work units.
//
// Each work unit is a bash wrapper that exports the required runtime
// variable and feeds a JSON configuration card to the downstream
// histogramming executable on stdin. Files are written through an
// ArtifactWriter so generation can run against a directory or in memory.
package workunit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultRenFac is the 7-point renormalization/factorization scale set.
var DefaultRenFac = [][2]float64{
	{1, 1}, {0.5, 0.5}, {1, 0.5}, {0.5, 1}, {2, 1}, {1, 2}, {2, 2},
}

// Payload is the configuration card read by the downstream executable.
// Field order is the key order of the encoded card.
type Payload struct {
	Input       Input         `json:"input"`
	RootS       float64       `json:"rootS"`
	Jets        Jets          `json:"jets"`
	Binning     string        `json:"binning"`
	Output      string        `json:"output"`
	Reweighting []Reweighting `json:"reweighting,omitempty"`
}

type Input struct {
	Files []string `json:"files"`
}

type Jets struct {
	Cuts      Cuts         `json:"cuts"`
	Algorithm JetAlgorithm `json:"algorithm"`
	NJetsMin  int          `json:"njets_min"`
}

type Cuts struct {
	Pt  float64 `json:"pt"`
	Eta float64 `json:"eta"`
}

// JetAlgorithm encodes as a two-element list: [name, R].
type JetAlgorithm struct {
	Name   string
	Radius float64
}

func (a JetAlgorithm) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.Name, a.Radius})
}

func (a *JetAlgorithm) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("jet algorithm: expected [name, R], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &a.Name); err != nil {
		return fmt.Errorf("jet algorithm name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &a.Radius); err != nil {
		return fmt.Errorf("jet algorithm radius: %w", err)
	}
	return nil
}

// Reweighting configures per-event weight variations.
type Reweighting struct {
	PDF    string       `json:"pdf"`
	PDFVar bool         `json:"pdf_var"`
	RenFac [][2]float64 `json:"ren_fac"`
	Scale  string       `json:"scale"`
}

// Encode renders the payload with two-space indentation and no trailing
// newline.
func (p Payload) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
