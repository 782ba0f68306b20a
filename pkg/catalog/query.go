package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const recordColumns = "dir, file, particle, njets, part, energy, info, nentries"

// Query runs one equality-conjunction lookup.
//
// names and values are bound positionally in the given order. An empty
// table selects the store's configured table. Results come back in catalog
// order: insertion (rowid) order on SQLite, so a catalog shared with older
// tooling yields the same chunk membership, and (dir, file) order on
// Postgres, where heap order is not stable.
func (s *Store) Query(ctx context.Context, table string, names []string, values []any) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if table == "" {
		table = s.table
	}
	if err := checkIdentifier("table", table); err != nil {
		return nil, err
	}
	if len(names) != len(values) {
		return nil, fmt.Errorf("query has %d fields but %d values", len(names), len(values))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(recordColumns)
	b.WriteString(" FROM ")
	b.WriteString(table)
	for i, name := range names {
		if err := checkIdentifier("field", name); err != nil {
			return nil, err
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(name)
		b.WriteString(" = ")
		b.WriteString(s.placeholder(i + 1))
	}
	b.WriteString(s.queryOrder())

	rows, err := s.db.QueryContext(ctx, b.String(), values...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func (s *Store) queryOrder() string {
	if s.driver == DriverPgx {
		return " ORDER BY dir, file"
	}
	return " ORDER BY rowid"
}

// ListParams filters a full catalog listing.
type ListParams struct {
	// Pattern is a doublestar glob matched against Record.Path().
	// Optional. If empty, matches all records.
	Pattern string

	// Limit caps the number of results returned.
	// Optional. Zero means no limit.
	Limit int
}

// List returns catalog records in (dir, file) order, optionally filtered
// by a glob over their paths.
func (s *Store) List(ctx context.Context, params ListParams) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if params.Pattern != "" && !doublestar.ValidatePattern(params.Pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", params.Pattern)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM "+s.table+" ORDER BY dir, file")
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	all, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if params.Pattern != "" {
			matched, err := doublestar.Match(params.Pattern, rec.Path())
			if err != nil {
				return nil, fmt.Errorf("match pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		out = append(out, rec)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of catalog records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			rec      Record
			particle sql.NullString
			part     sql.NullString
			info     sql.NullString
			njets    sql.NullInt64
			energy   sql.NullFloat64
			events   sql.NullInt64
		)
		if err := rows.Scan(&rec.Dir, &rec.File, &particle, &njets, &part, &energy, &info, &events); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Particle = particle.String
		rec.NJets = int(njets.Int64)
		rec.Part = part.String
		rec.Energy = energy.Float64
		rec.Info = info.String
		rec.Events = events.Int64
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
