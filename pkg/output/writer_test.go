package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	assert.NotNil(t, w)
	assert.Equal(t, "run-123", w.runID)
	assert.Equal(t, "nightly", w.tag)
}

func TestJSONLWriter_WriteChunk(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	c := &ChunkRecord{
		Name:           "H1jB_13TeV_antikt4_001",
		Key:            "H1jB_13TeV_antikt4",
		Seq:            1,
		Script:         "H1jB_13TeV_antikt4_001.sh",
		Files:          []string{"/data/a.root", "/data/b.root"},
		Events:         20_000_000,
		Energy:         13,
		NJetsMin:       1,
		SelectionIndex: 0,
		Selection:      map[string]any{"part": "B"},
	}
	require.NoError(t, w.WriteChunk(context.Background(), c))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeChunk, record.Type)
	assert.Equal(t, "run-123", record.RunID)
	assert.Equal(t, "nightly", record.Tag)
	assert.False(t, record.TS.IsZero())

	var got ChunkRecord
	require.NoError(t, json.Unmarshal(record.Data, &got))
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Files, got.Files)
	assert.Equal(t, c.Events, got.Events)
	assert.Equal(t, "B", got.Selection["part"])
}

func TestJSONLWriter_WriteSkip(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	require.NoError(t, w.WriteSkip(context.Background(), &SkipRecord{
		SelectionIndex: 1,
		Selection:      map[string]any{"part": "V", "njets": 3},
		Reason:         SkipNoMatch,
	}))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeSkip, record.Type)

	var got SkipRecord
	require.NoError(t, json.Unmarshal(record.Data, &got))
	assert.Equal(t, SkipNoMatch, got.Reason)
	assert.Equal(t, 1, got.SelectionIndex)
}

func TestJSONLWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	sum := &SummaryRecord{
		Selections:    2,
		Queries:       12,
		Chunks:        5,
		Files:         40,
		Events:        110_000_000,
		Keys:          map[string]int{"H1jB_13TeV_antikt4": 5},
		DryRun:        true,
		Duration:      1500 * time.Millisecond,
		DurationHuman: "1.5s",
	}
	require.NoError(t, w.WriteSummary(context.Background(), sum))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeSummary, record.Type)

	var got SummaryRecord
	require.NoError(t, json.Unmarshal(record.Data, &got))
	assert.Equal(t, *sum, got)
}

func TestJSONLWriter_NewlineTerminated(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	require.NoError(t, w.WriteChunk(context.Background(), &ChunkRecord{Name: "a_001"}))
	require.NoError(t, w.WriteChunk(context.Background(), &ChunkRecord{Name: "a_002"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		var record Record
		assert.NoError(t, json.Unmarshal([]byte(line), &record))
	}
}

func TestJSONLWriter_Close(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	require.NoError(t, w.Close())

	err := w.WriteChunk(context.Background(), &ChunkRecord{Name: "a_001"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	const numWriters = 10
	const writesPerWriter = 100

	var wg sync.WaitGroup
	wg.Add(numWriters)
	for i := 0; i < numWriters; i++ {
		go func(writerID int) {
			defer wg.Done()
			for j := 0; j < writesPerWriter; j++ {
				_ = w.WriteChunk(context.Background(), &ChunkRecord{
					Name: "a",
					Seq:  writerID*writesPerWriter + j,
				})
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, numWriters*writesPerWriter)
	for i, line := range lines {
		var record Record
		assert.NoError(t, json.Unmarshal([]byte(line), &record), "line %d should be valid JSON: %s", i, line)
	}
}

func TestJSONLWriter_ContextCancellation(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.WriteChunk(ctx, &ChunkRecord{Name: "a_001"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

func TestJSONLWriter_CancelledWhileWaitingForLock(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123", "nightly")

	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()

	done := make(chan error, 1)
	go func() {
		done <- w.WriteChunk(ctx, &ChunkRecord{Name: "H1jB_13TeV_antikt4_001"})
	}()

	// The writer either has not started or is parked on the lock; both
	// paths must observe the cancellation.
	cancel()
	w.mu.Unlock()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestJSONLWriter_WriteFailure(t *testing.T) {
	w := NewJSONLWriter(&failingWriter{err: errors.New("disk full")}, "run-123", "nightly")

	err := w.WriteSummary(context.Background(), &SummaryRecord{})
	require.Error(t, err)

	var writeErr *WriteError
	assert.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "write", writeErr.Op)
}

type failingWriter struct {
	err error
}

func (f *failingWriter) Write(p []byte) (n int, err error) {
	return 0, f.err
}

func TestJSONLWriter_ShortWrite(t *testing.T) {
	sw := &shortWriteWriter{bytesPerWrite: 10}
	w := NewJSONLWriter(sw, "run-123", "nightly")

	require.NoError(t, w.WriteChunk(context.Background(), &ChunkRecord{
		Name:  "H1jB_13TeV_antikt4_001",
		Files: []string{"/data/a.root"},
	}))

	lines := strings.Split(strings.TrimSpace(sw.buf.String()), "\n")
	assert.Len(t, lines, 1)

	var record Record
	assert.NoError(t, json.Unmarshal([]byte(lines[0]), &record), "output should be valid JSON despite short writes")
	assert.Equal(t, TypeChunk, record.Type)
}

func TestJSONLWriter_ZeroWrite(t *testing.T) {
	w := NewJSONLWriter(&zeroWriteWriter{}, "run-123", "nightly")

	err := w.WriteChunk(context.Background(), &ChunkRecord{Name: "a_001"})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

// shortWriteWriter writes at most bytesPerWrite bytes per call.
type shortWriteWriter struct {
	buf           bytes.Buffer
	bytesPerWrite int
}

func (sw *shortWriteWriter) Write(p []byte) (n int, err error) {
	toWrite := len(p)
	if toWrite > sw.bytesPerWrite {
		toWrite = sw.bytesPerWrite
	}
	return sw.buf.Write(p[:toWrite])
}

type zeroWriteWriter struct{}

func (zw *zeroWriteWriter) Write(p []byte) (n int, err error) {
	return 0, nil
}

func TestWriteError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &WriteError{Op: "marshal", Err: underlying}

	assert.Equal(t, "output: marshal: underlying error", err.Error())
	assert.ErrorIs(t, err, underlying)
}

func TestDiscard(t *testing.T) {
	var w Writer = Discard{}
	assert.NoError(t, w.WriteChunk(context.Background(), &ChunkRecord{}))
	assert.NoError(t, w.WriteSkip(context.Background(), &SkipRecord{}))
	assert.NoError(t, w.WriteSummary(context.Background(), &SummaryRecord{}))
	assert.NoError(t, w.Close())
}
