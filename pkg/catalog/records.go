package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Add inserts or updates records in a single transaction.
//
// Rows are keyed by (dir, file); re-adding a file replaces its metadata.
func (s *Store) Add(ctx context.Context, records []Record) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	marks := make([]string, 8)
	for i := range marks {
		marks[i] = s.placeholder(i + 1)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s)
		 VALUES (%s)
		 ON CONFLICT(dir, file) DO UPDATE SET
		   particle = excluded.particle,
		   njets = excluded.njets,
		   part = excluded.part,
		   energy = excluded.energy,
		   info = excluded.info,
		   nentries = excluded.nentries`,
		s.table, recordColumns, strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if err := validateRecord(rec); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Dir, rec.File, rec.Particle, rec.NJets, rec.Part, rec.Energy, rec.Info, rec.Events); err != nil {
			return fmt.Errorf("insert %s: %w", rec.Path(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}

func validateRecord(rec Record) error {
	if strings.TrimSpace(rec.Dir) == "" || strings.TrimSpace(rec.File) == "" {
		return errors.New("record requires dir and file")
	}
	if rec.Events < 0 {
		return fmt.Errorf("record %s has negative nentries: %d", rec.Path(), rec.Events)
	}
	return nil
}

// ReadRecords decodes records for import.
//
// Files ending in .jsonl or .ndjson hold one JSON record per line; anything
// else is read as a YAML (or JSON) list of records.
func ReadRecords(r io.Reader, path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return readJSONL(r)
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
		var out []Record
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("invalid record list: %w", err)
		}
		return out, nil
	}
}

func readJSONL(r io.Reader) ([]Record, error) {
	var out []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}
