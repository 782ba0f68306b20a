package workunit

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ntbatch/pkg/chunk"
)

func testSettings() Settings {
	return Settings{
		Exe:          "../../bin/hist",
		Binning:      "../../binning.json",
		OutDir:       "../../out/run1",
		JetAlgorithm: "antikt",
		JetRadius:    0.4,
		PtCut:        30,
		EtaCut:       4.4,
		EnvName:      "LD_LIBRARY_PATH",
		EnvValue:     "/opt/root/lib:/opt/lhapdf/lib",
	}
}

func testChunk() chunk.Chunk {
	return chunk.Chunk{
		Name:     "H1jB_13TeV_antikt4_001",
		Key:      "H1jB_13TeV_antikt4",
		Seq:      1,
		Files:    []string{"/data/H1j/B_001.root", "/data/H1j/B_002.root"},
		Events:   20_000_000,
		Energy:   13,
		NJetsMin: 1,
	}
}

const wantCard = `{
  "input": {
    "files": [
      "/data/H1j/B_001.root",
      "/data/H1j/B_002.root"
    ]
  },
  "rootS": 13,
  "jets": {
    "cuts": {
      "pt": 30,
      "eta": 4.4
    },
    "algorithm": [
      "antikt",
      0.4
    ],
    "njets_min": 1
  },
  "binning": "../../binning.json",
  "output": "../../out/run1/H1jB_13TeV_antikt4_001.root"
}`

func TestMaterialize_WritesWrapper(t *testing.T) {
	w := NewMemWriter()
	m := NewMaterializer(w, testSettings())

	unit, err := m.Materialize(testChunk())
	require.NoError(t, err)
	assert.Equal(t, "H1jB_13TeV_antikt4_001", unit.Name)
	assert.Equal(t, "H1jB_13TeV_antikt4_001.sh", unit.Script)

	want := "#!/bin/bash\n" +
		"export LD_LIBRARY_PATH=/opt/root/lib:/opt/lhapdf/lib\n" +
		"\n" +
		"../../bin/hist - << 'CARD'\n" +
		wantCard + "\n" +
		"CARD\n"
	assert.Equal(t, want, string(w.Bytes(unit.Script)))
	assert.Equal(t, fs.FileMode(0o775), w.Mode(unit.Script))
}

func TestMaterialize_Reweighting(t *testing.T) {
	s := testSettings()
	s.Reweighting = &Reweighting{PDF: "CT14nlo", PDFVar: true, RenFac: DefaultRenFac, Scale: "HT1"}
	m := NewMaterializer(NewMemWriter(), s)

	card, err := m.Payload(testChunk()).Encode()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(card, &doc))
	rw, ok := doc["reweighting"].([]any)
	require.True(t, ok)
	require.Len(t, rw, 1)
	block := rw[0].(map[string]any)
	assert.Equal(t, "CT14nlo", block["pdf"])
	assert.Equal(t, true, block["pdf_var"])
	assert.Equal(t, "HT1", block["scale"])
	assert.Len(t, block["ren_fac"], 7)
	assert.Equal(t, []any{0.5, 0.5}, block["ren_fac"].([]any)[1])
}

func TestMaterialize_NoReweightingKeyWhenDisabled(t *testing.T) {
	card, err := NewMaterializer(NewMemWriter(), testSettings()).Payload(testChunk()).Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(card), "reweighting")
}

func TestMaterialize_Deterministic(t *testing.T) {
	a, b := NewMemWriter(), NewMemWriter()
	_, err := NewMaterializer(a, testSettings()).Materialize(testChunk())
	require.NoError(t, err)
	_, err = NewMaterializer(b, testSettings()).Materialize(testChunk())
	require.NoError(t, err)

	name := testChunk().Name + ScriptSuffix
	assert.Equal(t, a.Bytes(name), b.Bytes(name))
}

func TestMaterialize_Errors(t *testing.T) {
	w := NewMemWriter()
	m := NewMaterializer(w, testSettings())

	_, err := m.Materialize(chunk.Chunk{})
	require.Error(t, err)

	_, err = m.Materialize(testChunk())
	require.NoError(t, err)
	_, err = m.Materialize(testChunk())
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrExist))

	s := testSettings()
	s.EnvName = ""
	_, err = NewMaterializer(NewMemWriter(), s).Materialize(testChunk())
	require.Error(t, err)
}

func TestJetAlgorithm_JSON(t *testing.T) {
	data, err := json.Marshal(JetAlgorithm{Name: "antikt", Radius: 0.4})
	require.NoError(t, err)
	assert.JSONEq(t, `["antikt", 0.4]`, string(data))

	var a JetAlgorithm
	require.NoError(t, json.Unmarshal([]byte(`["kt", 0.7]`), &a))
	assert.Equal(t, JetAlgorithm{Name: "kt", Radius: 0.7}, a)

	require.Error(t, json.Unmarshal([]byte(`["kt"]`), &a))
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/opt/lib:/usr/lib", "/opt/lib:/usr/lib"},
		{"", "''"},
		{"/path with space", "'/path with space'"},
		{"$HOME/lib", "'$HOME/lib'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShellQuote(tt.in), tt.in)
	}
	assert.Equal(t, "export LD_LIBRARY_PATH=''", ExportLine("LD_LIBRARY_PATH", ""))
}

func TestDirWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewDirWriter(dir)

	require.NoError(t, WriteFile(w, "job.sh", []byte("#!/bin/bash\n"), 0o775))

	info, err := os.Stat(filepath.Join(dir, "job.sh"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o775), info.Mode().Perm())

	err = WriteFile(w, "job.sh", []byte("again"), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrExist))

	_, err = w.Create("../escape.sh")
	require.Error(t, err)
	_, err = w.Create("sub/dir.sh")
	require.Error(t, err)
}

func TestMemWriter(t *testing.T) {
	w := NewMemWriter()
	require.NoError(t, WriteFile(w, "b.txt", []byte("b"), 0))
	require.NoError(t, WriteFile(w, "a.txt", []byte("a"), 0o600))

	assert.Equal(t, []string{"a.txt", "b.txt"}, w.Files())
	assert.Equal(t, []string{"b.txt", "a.txt"}, w.Created())
	assert.Equal(t, []byte("a"), w.Bytes("a.txt"))
	assert.Equal(t, fs.FileMode(0o600), w.Mode("a.txt"))
	assert.Equal(t, fs.FileMode(0o644), w.Mode("b.txt"))

	require.Error(t, w.Chmod("missing", 0o700))

	f, err := w.Create("c.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = f.Write([]byte("late"))
	require.Error(t, err)
}
