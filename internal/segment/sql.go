package segment

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/GannettDigital/tablediff/internal/keyspace"
	"github.com/GannettDigital/tablediff/internal/sqlutil"
)

// SQLSegment is the database/sql-backed TableSegment implementation used
// against real MySQL tables. It mirrors RootIDFetcher's checkpoint-query
// style (batch.go): build a WHERE clause from the current bound, run one
// query, scan rows.
type SQLSegment struct {
	db         *sql.DB
	identity   string
	table      string
	keyColumns []string
	relColumns []string
	where      string // additional job-level predicate, may be ""
	ignored    map[string]struct{}
	keyRange   keyspace.Range
	hasRange   bool
	approxSize int64 // carried from the parent's row count at split time
}

// NewSQLSegment builds the unbounded root segment for a table.
func NewSQLSegment(db *sql.DB, identity, table string, keyColumns, relColumns []string, where string) *SQLSegment {
	return &SQLSegment{
		db:         db,
		identity:   identity,
		table:      table,
		keyColumns: keyColumns,
		relColumns: relColumns,
		where:      where,
	}
}

func (s *SQLSegment) Identity() string         { return s.identity }
func (s *SQLSegment) KeyColumns() []string      { return s.keyColumns }
func (s *SQLSegment) RelevantColumns() []string { return s.relColumns }

func (s *SQLSegment) KeyRange() (keyspace.Range, bool) {
	return s.keyRange, s.hasRange
}

func (s *SQLSegment) ApproximateSize() int64 {
	return s.approxSize
}

// whereClause builds the predicate for this segment's bound combined with
// the job-level filter, plus the positional args in order.
func (s *SQLSegment) whereClause() (string, []any) {
	var clauses []string
	var args []any

	if s.where != "" {
		clauses = append(clauses, "("+s.where+")")
	}

	if s.hasRange {
		for i, col := range s.keyColumns {
			q := sqlutil.QuoteIdentifier(col)
			clauses = append(clauses, fmt.Sprintf("%s >= ?", q))
			args = append(args, s.keyRange.Min[i])
			clauses = append(clauses, fmt.Sprintf("%s < ?", q))
			args = append(args, s.keyRange.Max[i])
		}
	}

	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

func (s *SQLSegment) quotedKeyColumns() []string {
	out := make([]string, len(s.keyColumns))
	for i, c := range s.keyColumns {
		out[i] = sqlutil.QuoteIdentifier(c)
	}
	return out
}

func (s *SQLSegment) QueryKeyRange(ctx context.Context) (keyspace.Range, error) {
	where, args := s.whereClause()
	selects := make([]string, 0, 2*len(s.keyColumns))
	for _, c := range s.quotedKeyColumns() {
		selects = append(selects, "MIN("+c+")", "MAX("+c+")")
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(selects, ", "), sqlutil.QuoteIdentifier(s.table), where)

	dest := make([]any, len(selects))
	ptrs := make([]any, len(selects))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(ptrs...); err != nil {
		return keyspace.Range{}, fmt.Errorf("segment: query key range for %s: %w", s.table, err)
	}

	n := len(s.keyColumns)
	min := make(keyspace.Key, n)
	max := make(keyspace.Key, n)
	for i := 0; i < n; i++ {
		min[i] = dest[2*i]
		max[i] = dest[2*i+1]
	}
	if min[0] == nil {
		// Empty result set: MIN/MAX return NULL for every column.
		return keyspace.Range{}, nil
	}
	return keyspace.NewRange(min, keyspace.Key(max).Successor()), nil
}

func (s *SQLSegment) Count(ctx context.Context) (int64, error) {
	where, args := s.whereClause()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", sqlutil.QuoteIdentifier(s.table), where)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("segment: count %s: %w", s.table, err)
	}
	return count, nil
}

// CountAndChecksum fetches every row in the segment and folds it into an
// XOR-commutative checksum, exactly mirroring GetValues' scan so the count
// returned always matches len(rows) from a subsequent GetValues call.
func (s *SQLSegment) CountAndChecksum(ctx context.Context) (int64, uint64, error) {
	rows, err := s.GetValues(ctx)
	if err != nil {
		return 0, 0, err
	}

	var checksum uint64
	for _, row := range rows {
		checksum ^= checksumRow(row, s.ignored, s.relColumns)
	}
	return int64(len(rows)), checksum, nil
}

func (s *SQLSegment) GetValues(ctx context.Context) ([]Row, error) {
	where, args := s.whereClause()
	cols := make([]string, len(s.relColumns))
	for i, c := range s.relColumns {
		cols[i] = sqlutil.QuoteIdentifier(c)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(cols, ", "), sqlutil.QuoteIdentifier(s.table), where,
		strings.Join(s.quotedKeyColumns(), ", "))

	sqlRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("segment: get values %s: %w", s.table, err)
	}
	defer sqlRows.Close()

	var out []Row
	for sqlRows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("segment: get values interrupted: %w", err)
		}

		values := make([]any, len(s.relColumns))
		ptrs := make([]any, len(s.relColumns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := sqlRows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("segment: scan row in %s: %w", s.table, err)
		}
		out = append(out, Row(values))
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("segment: iterate rows in %s: %w", s.table, err)
	}
	return out, nil
}

// ChooseCheckpoints samples n evenly-spaced rows from the segment's leading
// key column and returns their compound keys, the same "ORDER BY pk ASC
// LIMIT" checkpoint style RootIDFetcher uses for resumable batches, applied
// here to pick split points instead of a single next batch.
func (s *SQLSegment) ChooseCheckpoints(ctx context.Context, n int) ([]keyspace.Key, error) {
	if n <= 0 {
		return nil, nil
	}

	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	where, args := s.whereClause()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT 1 OFFSET ?",
		strings.Join(s.quotedKeyColumns(), ", "), sqlutil.QuoteIdentifier(s.table), where,
		strings.Join(s.quotedKeyColumns(), ", "))

	step := count / int64(n+1)
	if step == 0 {
		step = 1
	}

	var checkpoints []keyspace.Key
	for offset := step; offset < count && int64(len(checkpoints)) < int64(n); offset += step {
		rowArgs := append(append([]any{}, args...), offset)

		dest := make([]any, len(s.keyColumns))
		ptrs := make([]any, len(dest))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := s.db.QueryRowContext(ctx, query, rowArgs...).Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("segment: choose checkpoints in %s: %w", s.table, err)
		}
		checkpoints = append(checkpoints, keyspace.Key(dest))
	}
	return checkpoints, nil
}

func (s *SQLSegment) SegmentByCheckpoints(checkpoints []keyspace.Key) ([]TableSegment, error) {
	r, ok := s.KeyRange()
	if !ok {
		return nil, fmt.Errorf("segment: cannot split %s without a known key range", s.table)
	}

	bounds := append([]keyspace.Key{r.Min}, checkpoints...)
	bounds = append(bounds, r.Max)

	childSize := s.approxSize / int64(len(bounds)-1)
	segments := make([]TableSegment, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		child := s.NewKeyBounds(keyspace.NewRange(bounds[i], bounds[i+1])).(*SQLSegment)
		child.approxSize = childSize
		segments = append(segments, child)
	}
	return segments, nil
}

// SetApproximateSize seeds the root segment's size estimate, typically from
// an initial Count call, so descendants produced by SegmentByCheckpoints can
// divide it without a database round trip.
func (s *SQLSegment) SetApproximateSize(n int64) {
	s.approxSize = n
}

func (s *SQLSegment) NewKeyBounds(r keyspace.Range) TableSegment {
	clone := *s
	clone.keyRange = r
	clone.hasRange = true
	return &clone
}

func (s *SQLSegment) WithIgnoredColumns(ignored map[string]struct{}) TableSegment {
	clone := *s
	clone.ignored = ignored
	return &clone
}

func (s *SQLSegment) IgnoredColumns() map[string]struct{} {
	return s.ignored
}
