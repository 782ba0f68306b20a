package chunk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ntbatch/pkg/catalog"
)

func TestFormatG(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{13, "13"},
		{13.6, "13.6"},
		{0.5, "0.5"},
		{4, "4"},
		{-2, "-2"},
		{100000000, "100000000"},
		{2.5e-7, "2.5e-07"},
		{1e21, "1e+21"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatG(tt.in))
		})
	}
}

func TestNewClassifier(t *testing.T) {
	tests := []struct {
		name  string
		infos []string
		want  Classifier
	}{
		{"none", []string{"GGFHT pt25.0 eta4.5", "ED GGFHT pt25.0 eta4.5"}, Classifier{}},
		{"diagram at end", []string{"GGFHT pt25.0 eta4.5 tr"}, Classifier{Diagram: true}},
		{"diagram in middle", []string{"GGFHT bx pt25.0"}, Classifier{Diagram: true}},
		{"diagram needs word boundary", []string{"GGFHT ptr25 bxx"}, Classifier{}},
		{"process", []string{"mtop GGFHT"}, Classifier{Process: true}},
		{"both across specs", []string{"GGFHT", "mtop pn"}, Classifier{Diagram: true, Process: true}},
		{"empty", nil, Classifier{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewClassifier(tt.infos))
		})
	}
}

func TestDiagramAndProcessOf(t *testing.T) {
	assert.Equal(t, "tr", DiagramOf("GGFHT pt25.0 eta4.5 tr"))
	assert.Equal(t, "bx", DiagramOf("bx GGFHT"))
	assert.Equal(t, "pn", DiagramOf("GGFHT pn eta4.5"))
	assert.Equal(t, "all", DiagramOf("GGFHT pt25.0 eta4.5"))

	assert.Equal(t, "mtop", ProcessOf("GGFHT mtop"))
	assert.Equal(t, "eft", ProcessOf("GGFHT"))
}

func TestKeyBuilder_Key(t *testing.T) {
	rec := catalog.Record{Particle: "H", NJets: 1, Part: "B", Energy: 13, Info: "GGFHT pt25.0 eta4.5"}

	tests := []struct {
		name    string
		builder KeyBuilder
		rec     catalog.Record
		want    string
	}{
		{
			name:    "plain",
			builder: KeyBuilder{JetRadius: 0.4},
			rec:     rec,
			want:    "H1jB_13TeV_antikt4",
		},
		{
			name:    "fractional energy and radius",
			builder: KeyBuilder{JetRadius: 0.45},
			rec:     catalog.Record{Particle: "H", NJets: 2, Part: "RS", Energy: 13.6},
			want:    "H2jRS_13.6TeV_antikt4.5",
		},
		{
			name:    "radius binary noise is dropped",
			builder: KeyBuilder{JetRadius: 0.7},
			rec:     rec,
			want:    "H1jB_13TeV_antikt7",
		},
		{
			name:    "process class eft",
			builder: KeyBuilder{Classifier: Classifier{Process: true}, JetRadius: 0.4},
			rec:     rec,
			want:    "H1jB_13TeV_eft_antikt4",
		},
		{
			name:    "process class mtop",
			builder: KeyBuilder{Classifier: Classifier{Process: true}, JetRadius: 0.4},
			rec:     catalog.Record{Particle: "H", NJets: 1, Part: "B", Energy: 13, Info: "GGFHT mtop"},
			want:    "H1jB_13TeV_mtop_antikt4",
		},
		{
			name:    "diagram missing token is all",
			builder: KeyBuilder{Classifier: Classifier{Diagram: true}, JetRadius: 0.4},
			rec:     rec,
			want:    "H1jB_13TeV_all_antikt4",
		},
		{
			name:    "process before diagram",
			builder: KeyBuilder{Classifier: Classifier{Diagram: true, Process: true}, JetRadius: 0.4},
			rec:     catalog.Record{Particle: "H", NJets: 3, Part: "I", Energy: 13, Info: "mtop GGFHT bx"},
			want:    "H3jI_13TeV_mtop_bx_antikt4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.builder.Key(tt.rec))
		})
	}
}

func TestKeyBuilder_CommonKey(t *testing.T) {
	b := KeyBuilder{Classifier: NewClassifier([]string{"GGFHT pt25.0 eta4.5 tr"}), JetRadius: 0.4}

	t.Run("empty", func(t *testing.T) {
		key, err := b.CommonKey(nil)
		require.NoError(t, err)
		assert.Empty(t, key)
	})

	t.Run("consistent", func(t *testing.T) {
		recs := []catalog.Record{
			{Particle: "H", NJets: 1, Part: "B", Energy: 13, Info: "GGFHT pt25.0 eta4.5 tr"},
			{Particle: "H", NJets: 1, Part: "B", Energy: 13, Info: "GGFHT pt25.0 eta4.5 tr"},
		}
		key, err := b.CommonKey(recs)
		require.NoError(t, err)
		assert.Equal(t, "H1jB_13TeV_tr_antikt4", key)
	})

	t.Run("diagram disagreement is inconsistent", func(t *testing.T) {
		recs := []catalog.Record{
			{Particle: "H", NJets: 1, Part: "B", Energy: 13, Info: "GGFHT pt25.0 eta4.5 tr"},
			{Particle: "H", NJets: 1, Part: "B", Energy: 13, Info: "GGFHT pt25.0 eta4.5 bx"},
		}
		_, err := b.CommonKey(recs)
		require.Error(t, err)

		var keyErr *InconsistentKeyError
		require.True(t, errors.As(err, &keyErr))
		assert.Equal(t, "H1jB_13TeV_tr_antikt4", keyErr.First)
		assert.Equal(t, "H1jB_13TeV_bx_antikt4", keyErr.Second)
		assert.Contains(t, err.Error(), "H1jB_13TeV_tr_antikt4")
		assert.Contains(t, err.Error(), "H1jB_13TeV_bx_antikt4")
	})
}
