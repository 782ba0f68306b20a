// Package chunk groups catalog records into weight-bounded chunks.
//
// Records are first mapped to a ChunkKey, a canonical string built from
// their physics metadata plus run-wide settings. Records sharing a key are
// then packed greedily into chunks whose cumulative event count stays
// below a threshold until the record that crosses it. Chunk names are
// "<key>_<seq>" with a per-key sequence that runs across the whole run.
package chunk

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/3leaps/ntbatch/pkg/catalog"
)

var diagramPattern = regexp.MustCompile(`(?:^| )(tr|bx|pn)(?: |$)`)

const (
	processTop = "mtop"
	processEFT = "eft"
	diagramAll = "all"
)

// FormatG renders v the way chunk names expect: an integer when v has no
// fractional part, the shortest round-tripping decimal otherwise.
func FormatG(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e21 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Classifier decides which optional key segments are active for a run.
//
// Both decisions are taken once from every info string declared in the
// selection file, then applied to every record.
type Classifier struct {
	// Diagram adds a _tr/_bx/_pn/_all segment.
	Diagram bool

	// Process adds a _mtop/_eft segment.
	Process bool
}

func NewClassifier(infos []string) Classifier {
	var c Classifier
	for _, info := range infos {
		if diagramPattern.MatchString(info) {
			c.Diagram = true
		}
		if strings.Contains(info, processTop) {
			c.Process = true
		}
	}
	return c
}

// DiagramOf returns the diagram token of info, or "all" when none is present.
func DiagramOf(info string) string {
	m := diagramPattern.FindStringSubmatch(info)
	if m == nil {
		return diagramAll
	}
	return m[1]
}

// ProcessOf returns "mtop" when info mentions the top-mass process class
// and "eft" otherwise.
func ProcessOf(info string) string {
	if strings.Contains(info, processTop) {
		return processTop
	}
	return processEFT
}

// KeyBuilder derives ChunkKeys.
type KeyBuilder struct {
	Classifier Classifier

	// JetRadius is the jet radius parameter R. The key carries R*10.
	JetRadius float64
}

// Key returns
//
//	{particle}{njets}j{part}_{energy}TeV[_{mtop|eft}][_{tr|bx|pn|all}]_antikt{R*10}
func (b KeyBuilder) Key(rec catalog.Record) string {
	var sb strings.Builder
	sb.WriteString(rec.Particle)
	sb.WriteString(strconv.Itoa(rec.NJets))
	sb.WriteString("j")
	sb.WriteString(rec.Part)
	sb.WriteString("_")
	sb.WriteString(FormatG(rec.Energy))
	sb.WriteString("TeV")
	if b.Classifier.Process {
		sb.WriteString("_")
		sb.WriteString(ProcessOf(rec.Info))
	}
	if b.Classifier.Diagram {
		sb.WriteString("_")
		sb.WriteString(DiagramOf(rec.Info))
	}
	sb.WriteString("_antikt")
	sb.WriteString(FormatG(radiusTenths(b.JetRadius)))
	return sb.String()
}

// radiusTenths scales R to tenths and drops binary noise such as
// 0.7*10 = 7.000000000000001.
func radiusTenths(r float64) float64 {
	return math.Round(r*10*1e9) / 1e9
}

// InconsistentKeyError reports two records of one concrete selection that
// map to different chunk keys. The selection under-constrains the key, so
// the run cannot proceed.
type InconsistentKeyError struct {
	First  string
	Second string
}

func (e *InconsistentKeyError) Error() string {
	return fmt.Sprintf("incompatible selection: records map to different chunk keys:\n%s\n%s", e.First, e.Second)
}

// CommonKey returns the key shared by all records. It returns "" for an
// empty slice and an *InconsistentKeyError naming the first mismatch.
func (b KeyBuilder) CommonKey(records []catalog.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	key := b.Key(records[0])
	for _, rec := range records[1:] {
		if k := b.Key(rec); k != key {
			return "", &InconsistentKeyError{First: key, Second: k}
		}
	}
	return key, nil
}
