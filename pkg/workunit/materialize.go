package workunit

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/3leaps/ntbatch/pkg/chunk"
)

const (
	// ScriptMode marks wrappers executable.
	ScriptMode = 0o775

	// ScriptSuffix is appended to a work unit name to form its wrapper file.
	ScriptSuffix = ".sh"

	// cardDelimiter terminates the here-document carrying the payload.
	cardDelimiter = "CARD"
)

// Settings are the run-wide inputs of every payload and wrapper.
type Settings struct {
	// Exe is the downstream executable as seen from the job directory.
	Exe string

	// Binning is the shared binning configuration path.
	Binning string

	// OutDir is the run output directory; each unit writes <OutDir>/<name>.root.
	OutDir string

	JetAlgorithm string
	JetRadius    float64
	PtCut        float64
	EtaCut       float64

	// Reweighting adds the reweighting block when non-nil.
	Reweighting *Reweighting

	// EnvName and EnvValue are exported by every wrapper.
	EnvName  string
	EnvValue string
}

// WorkUnit is one materialized chunk.
type WorkUnit struct {
	// Name is the chunk name and the graph node name.
	Name string

	// Script is the wrapper file name.
	Script string

	Payload Payload
}

// Materializer writes one wrapper per chunk.
type Materializer struct {
	Writer   ArtifactWriter
	Settings Settings
}

func NewMaterializer(w ArtifactWriter, s Settings) *Materializer {
	return &Materializer{Writer: w, Settings: s}
}

// Payload builds the configuration card for c.
func (m *Materializer) Payload(c chunk.Chunk) Payload {
	s := m.Settings
	p := Payload{
		Input: Input{Files: append([]string(nil), c.Files...)},
		RootS: c.Energy,
		Jets: Jets{
			Cuts:      Cuts{Pt: s.PtCut, Eta: s.EtaCut},
			Algorithm: JetAlgorithm{Name: s.JetAlgorithm, Radius: s.JetRadius},
			NJetsMin:  c.NJetsMin,
		},
		Binning: s.Binning,
		Output:  filepath.Join(s.OutDir, c.Name+".root"),
	}
	if s.Reweighting != nil {
		p.Reweighting = []Reweighting{*s.Reweighting}
	}
	return p
}

// Materialize writes <name>.sh for c and marks it executable.
func (m *Materializer) Materialize(c chunk.Chunk) (WorkUnit, error) {
	if c.Name == "" {
		return WorkUnit{}, errors.New("chunk has no name")
	}
	if m.Settings.EnvName == "" {
		return WorkUnit{}, errors.New("work unit environment variable name is empty")
	}

	payload := m.Payload(c)
	card, err := payload.Encode()
	if err != nil {
		return WorkUnit{}, err
	}

	script := c.Name + ScriptSuffix
	body := RenderWrapper(m.Settings.EnvName, m.Settings.EnvValue, m.Settings.Exe, card)
	if err := WriteFile(m.Writer, script, body, ScriptMode); err != nil {
		return WorkUnit{}, fmt.Errorf("materialize %s: %w", c.Name, err)
	}

	return WorkUnit{Name: c.Name, Script: script, Payload: payload}, nil
}

// RenderWrapper returns
//
//	#!/bin/bash
//	export NAME=value
//
//	exe - << 'CARD'
//	<card>
//	CARD
func RenderWrapper(envName, envValue, exe string, card []byte) []byte {
	var sb strings.Builder
	sb.WriteString("#!/bin/bash\n")
	sb.WriteString(ExportLine(envName, envValue))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%s - << '%s'\n", ShellQuote(exe), cardDelimiter)
	sb.Write(card)
	sb.WriteString("\n")
	sb.WriteString(cardDelimiter)
	sb.WriteString("\n")
	return []byte(sb.String())
}

// ExportLine renders "export NAME=value" with the value quoted when needed.
func ExportLine(name, value string) string {
	return "export " + name + "=" + ShellQuote(value)
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// ShellQuote returns s unchanged when it only holds shell-safe characters and
// single-quotes it otherwise.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
