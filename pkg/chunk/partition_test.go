package chunk

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ntbatch/pkg/catalog"
)

func weighted(prefix string, weights ...int64) []catalog.Record {
	out := make([]catalog.Record, len(weights))
	for i, w := range weights {
		out[i] = catalog.Record{
			Dir:      "/data",
			File:     fmt.Sprintf("%s_%03d.root", prefix, i+1),
			Particle: "H",
			NJets:    2,
			Part:     "B",
			Energy:   13,
			Events:   w,
		}
	}
	return out
}

func chunkFiles(chunks []Chunk) [][]string {
	out := make([][]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Files
	}
	return out
}

func TestPartition_ThresholdCrossedOnLastRecord(t *testing.T) {
	p := NewPartitioner(25_000_000)
	chunks := p.Partition("K", weighted("f", 10_000_000, 10_000_000, 10_000_000))

	require.Len(t, chunks, 1)
	assert.Equal(t, "K_001", chunks[0].Name)
	assert.Equal(t, []string{"/data/f_001.root", "/data/f_002.root", "/data/f_003.root"}, chunks[0].Files)
	assert.Equal(t, int64(30_000_000), chunks[0].Events)
	assert.Equal(t, 13.0, chunks[0].Energy)
	assert.Equal(t, 2, chunks[0].NJetsMin)
}

func TestPartition_Cases(t *testing.T) {
	tests := []struct {
		name      string
		threshold int64
		weights   []int64
		want      [][]string
	}{
		{
			name:      "record after reset starts a new chunk",
			threshold: 25,
			weights:   []int64{10, 10, 10, 10},
			want: [][]string{
				{"/data/f_001.root", "/data/f_002.root", "/data/f_003.root"},
				{"/data/f_004.root"},
			},
		},
		{
			name:      "exact threshold closes the chunk",
			threshold: 20,
			weights:   []int64{10, 10, 5},
			want: [][]string{
				{"/data/f_001.root", "/data/f_002.root"},
				{"/data/f_003.root"},
			},
		},
		{
			name:      "oversized records are never split",
			threshold: 5,
			weights:   []int64{50, 60},
			want: [][]string{
				{"/data/f_001.root"},
				{"/data/f_002.root"},
			},
		},
		{
			name:      "zero weight record keeps the accumulator at zero",
			threshold: 10,
			weights:   []int64{0, 3, 4},
			want: [][]string{
				{"/data/f_001.root"},
				{"/data/f_002.root", "/data/f_003.root"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPartitioner(tt.threshold)
			assert.Equal(t, tt.want, chunkFiles(p.Partition("K", weighted("f", tt.weights...))))
		})
	}
}

func TestPartition_EmptyInputLeavesCounterAlone(t *testing.T) {
	p := NewPartitioner(10)
	assert.Empty(t, p.Partition("K", nil))
	assert.Empty(t, p.Counts())

	chunks := p.Partition("K", weighted("f", 1))
	require.Len(t, chunks, 1)
	assert.Equal(t, "K_001", chunks[0].Name)
}

func TestPartition_SequenceSpansCalls(t *testing.T) {
	p := NewPartitioner(10)

	first := p.Partition("A", weighted("a", 10, 10))
	other := p.Partition("B", weighted("b", 10))
	second := p.Partition("A", weighted("c", 10))

	assert.Equal(t, []string{"A_001", "A_002"}, []string{first[0].Name, first[1].Name})
	assert.Equal(t, "B_001", other[0].Name)
	assert.Equal(t, "A_003", second[0].Name)
	assert.Equal(t, 3, second[0].Seq)
	assert.Equal(t, map[string]int{"A": 3, "B": 1}, p.Counts())

	p.Reset()
	assert.Equal(t, "A_001", p.Partition("A", weighted("d", 1))[0].Name)
}

// TestPartition_Properties checks partition invariants over random inputs:
// every file lands in exactly one chunk, no chunk starts over budget, and
// sequence numbers are gap free.
func TestPartition_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 50; round++ {
		threshold := int64(1 + rng.IntN(100))
		n := rng.IntN(40)
		weights := make([]int64, n)
		for i := range weights {
			weights[i] = int64(rng.IntN(60))
		}
		recs := weighted(fmt.Sprintf("r%d", round), weights...)
		byPath := make(map[string]int64, len(recs))
		for _, r := range recs {
			byPath[r.Path()] = r.Events
		}

		p := NewPartitioner(threshold)
		chunks := p.Partition("K", recs)

		seen := make(map[string]bool)
		var order []string
		for i, c := range chunks {
			assert.Equal(t, i+1, c.Seq)
			assert.Equal(t, Name("K", i+1), c.Name)
			require.NotEmpty(t, c.Files)

			var sum int64
			for j, f := range c.Files {
				assert.False(t, seen[f], "duplicate file %s", f)
				seen[f] = true
				order = append(order, f)
				if j < len(c.Files)-1 {
					sum += byPath[f]
					assert.Less(t, sum, threshold, "chunk %s over budget before its last record", c.Name)
				}
			}
		}
		assert.Len(t, seen, len(recs))

		want := make([]string, len(recs))
		for i, r := range recs {
			want[i] = r.Path()
		}
		if len(want) == 0 {
			assert.Empty(t, order)
		} else {
			assert.Equal(t, want, order)
		}
	}
}
