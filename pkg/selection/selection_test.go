package selection

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const yamlSelections = `
selections:
  - part: [B, RS, I, V]
    njets: [1]
    particle: [H]
    energy: [13]
    info: ["GGFHT pt25.0 eta4.5"]
  - part: [B, RS, I, V]
    njets: [2, 3]
    particle: H
    energy: 13.6
    info: ["ED GGFHT pt25.0 eta4.5"]
`

func TestLoadFromBytes_YAML(t *testing.T) {
	specs, err := LoadFromBytes([]byte(yamlSelections), "sel.yaml")
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, []string{"part", "njets", "particle", "energy", "info"}, specs[0].Names())
	assert.Equal(t, []Value{"B", "RS", "I", "V"}, specs[0].Fields[0].Values)
	assert.Equal(t, []Value{int64(1)}, specs[0].Fields[1].Values)
	assert.Equal(t, []Value{int64(13)}, specs[0].Fields[3].Values)

	assert.Equal(t, []Value{int64(2), int64(3)}, specs[1].Fields[1].Values)
	assert.Equal(t, []Value{"H"}, specs[1].Fields[2].Values)
	assert.Equal(t, []Value{13.6}, specs[1].Fields[3].Values)
}

func TestLoadFromBytes_JSONKeepsKeyOrder(t *testing.T) {
	data := `[{"info": ["GGFHT tr"], "part": ["B"], "njets": [1, 2], "energy": [13.0]}]`

	specs, err := LoadFromBytes([]byte(data), "sel.json")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, []string{"info", "part", "njets", "energy"}, specs[0].Names())
	assert.Equal(t, []Value{13.0}, specs[0].Fields[3].Values)
}

func TestLoadFromBytes_SingleMapping(t *testing.T) {
	specs, err := LoadFromBytes([]byte("part: [B]\nnjets: 1\n"), "sel.yml")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, []string{"part", "njets"}, specs[0].Names())
}

func TestLoadFromBytes_HCL(t *testing.T) {
	data := `
selection {
  part     = ["B", "RS"]
  njets    = [1, 2]
  particle = "H"
  energy   = 13.5
  info     = ["GGFHT pt25.0 eta4.5 mtop"]
}

selection {
  part  = ["V"]
  njets = []
}
`
	specs, err := LoadFromBytes([]byte(data), "sel.hcl")
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, []string{"part", "njets", "particle", "energy", "info"}, specs[0].Names())
	assert.Equal(t, []Value{"B", "RS"}, specs[0].Fields[0].Values)
	assert.Equal(t, []Value{int64(1), int64(2)}, specs[0].Fields[1].Values)
	assert.Equal(t, []Value{"H"}, specs[0].Fields[2].Values)
	assert.Equal(t, []Value{13.5}, specs[0].Fields[3].Values)

	assert.Empty(t, specs[1].Fields[1].Values)
	assert.Equal(t, 0, specs[1].Combinations())
}

func TestLoadFromBytes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		path    string
		wantErr string
	}{
		{"empty", "  \n", "sel.yaml", "empty"},
		{"no selections", "[]", "sel.json", "no selections"},
		{"scalar document", "42", "sel.yaml", "expected a list"},
		{"bad field name", `[{"part; drop": ["B"]}]`, "sel.json", "invalid field name"},
		{"duplicate field", "- part: [B]\n  part: [RS]\n", "sel.yaml", ""},
		{"bool value", `[{"part": [true]}]`, "sel.json", "unsupported value"},
		{"null value", `[{"part": [null]}]`, "sel.json", "unsupported value"},
		{"nested list", `[{"part": [["B"]]}]`, "sel.json", "scalars"},
		{"no fields", `[{}]`, "sel.json", "no fields"},
		{"repeated string value", "- part: [B, RS, B]\n", "sel.yaml", "duplicate of value 0"},
		{"repeated number across int and float", `[{"energy": [13, 8, 13.0]}]`, "sel.json", "duplicate of value 0"},
		{"hcl repeated value", "selection {\n part = [\"B\", \"B\"]\n}\n", "sel.hcl", "duplicate"},
		{"hcl bool", "selection {\n part = [true]\n}\n", "sel.hcl", "unsupported value type"},
		{"hcl syntax", "selection {", "sel.hcl", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.data), tt.path)
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ValueSets(t *testing.T) {
	distinct := []Spec{{Fields: []Field{
		{Name: "energy", Values: []Value{int64(13), 13.5, "13"}},
		{Name: "part", Values: []Value{"B", "b"}},
	}}}
	require.NoError(t, Validate(distinct))

	repeated := []Spec{{Fields: []Field{
		{Name: "njets", Values: []Value{int64(1)}},
		{Name: "part", Values: []Value{"B", "B"}},
	}}}
	err := Validate(repeated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "part" value 1`)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlSelections), 0o644))

	specs, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, specs, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "not found")
}

func TestExpand_OdometerOrder(t *testing.T) {
	spec := Spec{Fields: []Field{
		{Name: "part", Values: []Value{"B", "RS"}},
		{Name: "njets", Values: []Value{int64(1), int64(2), int64(3)}},
		{Name: "energy", Values: []Value{int64(13)}},
	}}

	var got []string
	for c := range Expand(spec) {
		assert.Equal(t, []string{"part", "njets", "energy"}, c.Names)
		got = append(got, c.String())
	}

	assert.Equal(t, []string{
		"part=B njets=1 energy=13",
		"part=B njets=2 energy=13",
		"part=B njets=3 energy=13",
		"part=RS njets=1 energy=13",
		"part=RS njets=2 energy=13",
		"part=RS njets=3 energy=13",
	}, got)
	assert.Equal(t, 6, spec.Combinations())
}

func TestExpand_RestartableAndStoppable(t *testing.T) {
	spec := Spec{Fields: []Field{
		{Name: "part", Values: []Value{"B", "RS", "V"}},
	}}
	seq := Expand(spec)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestExpand_Empty(t *testing.T) {
	assert.Empty(t, slices.Collect(Expand(Spec{})))

	spec := Spec{Fields: []Field{
		{Name: "part", Values: []Value{"B"}},
		{Name: "njets"},
	}}
	assert.Empty(t, slices.Collect(Expand(spec)))
}

func TestExpander_WarnsOnEmptyField(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e := Expander{Logger: zap.New(core)}

	spec := Spec{Fields: []Field{
		{Name: "part", Values: []Value{"B"}},
		{Name: "njets"},
	}}
	assert.Empty(t, slices.Collect(e.Expand(3, spec)))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "njets", fields["field"])
	assert.Equal(t, int64(3), fields["selection"])

	full := Spec{Fields: []Field{{Name: "part", Values: []Value{"B"}}}}
	assert.Len(t, slices.Collect(e.Expand(0, full)), 1)
	assert.Len(t, logs.All(), 1)
}

func TestConcreteMap(t *testing.T) {
	c := Concrete{Names: []string{"part", "njets"}, Values: []Value{"B", int64(2)}}
	assert.Equal(t, map[string]any{"part": "B", "njets": int64(2)}, c.Map())
}

func TestInfos(t *testing.T) {
	specs, err := LoadFromBytes([]byte(yamlSelections), "sel.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"GGFHT pt25.0 eta4.5", "ED GGFHT pt25.0 eta4.5"}, Infos(specs))

	assert.Empty(t, Infos([]Spec{{Fields: []Field{{Name: "part", Values: []Value{"B"}}}}}))
}
