package chunk

import (
	"fmt"
	"sync"

	"github.com/3leaps/ntbatch/pkg/catalog"
)

// Chunk is a group of same-key records destined for one work unit.
type Chunk struct {
	// Name is "<Key>_<Seq:03d>", unique within a run.
	Name string
	Key  string
	Seq  int

	// Files are the member paths in catalog order.
	Files []string

	// Events is the summed weight of the member records.
	Events int64

	Energy   float64
	NJetsMin int
}

// Name formats a chunk name from its key and sequence number.
func Name(key string, seq int) string {
	return fmt.Sprintf("%s_%03d", key, seq)
}

// Partitioner packs records into chunks bounded by an event threshold.
//
// It owns the per-key sequence counters for one run: create one
// Partitioner per run and discard it afterwards. Counter updates are
// serialized, so concurrent callers still get gap-free numbering; chunk
// order across callers is then the order in which they call Partition.
type Partitioner struct {
	threshold int64

	mu       sync.Mutex
	counters map[string]int
}

func NewPartitioner(threshold int64) *Partitioner {
	return &Partitioner{
		threshold: threshold,
		counters:  make(map[string]int),
	}
}

func (p *Partitioner) Threshold() int64 {
	return p.threshold
}

// Partition splits records (all sharing key) into chunks.
//
// A running total starts at zero. Whenever it is zero a new chunk begins.
// Each record is appended to the current chunk and its events added; once
// the total reaches the threshold it resets to zero, so the next record
// opens a new chunk. A chunk therefore ends with the record that crosses
// the threshold, and a single oversized record is never split.
func (p *Partitioner) Partition(key string, records []catalog.Record) []Chunk {
	if len(records) == 0 {
		return nil
	}

	var chunks []Chunk
	var total int64
	for _, rec := range records {
		if total == 0 {
			seq := p.next(key)
			chunks = append(chunks, Chunk{
				Name:     Name(key, seq),
				Key:      key,
				Seq:      seq,
				Energy:   rec.Energy,
				NJetsMin: rec.NJets,
			})
		}
		cur := &chunks[len(chunks)-1]
		cur.Files = append(cur.Files, rec.Path())
		cur.Events += rec.Events

		total += rec.Events
		if total >= p.threshold {
			total = 0
		}
	}
	return chunks
}

func (p *Partitioner) next(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[key]++
	return p.counters[key]
}

// Counts returns a snapshot of how many chunks each key has produced.
func (p *Partitioner) Counts() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.counters))
	for k, v := range p.counters {
		out[k] = v
	}
	return out
}

// Reset clears every counter.
func (p *Partitioner) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters = make(map[string]int)
}
