// Package segment implements the TableSegment contract (spec.md §4.1): a
// bounded rectangle of one table in key-space that can report its row
// count, a commutative checksum, its rows, and split itself on checkpoints.
package segment

import (
	"context"

	"github.com/GannettDigital/tablediff/internal/keyspace"
)

// Row is one fetched row, its values aligned with the segment's
// RelevantColumns.
type Row []any

// TableSegment is the capability contract the bisection engine depends on.
// Implementations are immutable value objects — every derivation method
// returns a new instance (spec.md §3 Ownership).
type TableSegment interface {
	// Identity names the table this segment views, for logging and stats.
	Identity() string

	// KeyColumns are the compound primary-key column names, in order.
	KeyColumns() []string

	// RelevantColumns are the columns fetched by GetValues; always a
	// superset of KeyColumns.
	RelevantColumns() []string

	// KeyRange returns the segment's bound, if set. Bounded reports false
	// for a segment spanning "whatever this table contains" prior to its
	// first QueryKeyRange call.
	KeyRange() (r keyspace.Range, bounded bool)

	// QueryKeyRange observes the segment's actual min/max key and returns
	// it; does not mutate the segment (new_key_bounds does that).
	QueryKeyRange(ctx context.Context) (keyspace.Range, error)

	// Count returns the row count of the segment. The result is not cached:
	// every call counts again (one COUNT(*) query for SQLSegment).
	Count(ctx context.Context) (int64, error)

	// CountAndChecksum returns both count and a commutative, deterministic
	// checksum over the segment's relevant-column values in one round trip.
	CountAndChecksum(ctx context.Context) (int64, uint64, error)

	// GetValues fetches every row in the segment.
	GetValues(ctx context.Context) ([]Row, error)

	// ChooseCheckpoints returns n interior split points, monotonically
	// increasing and deduplicated, approximately evenly spaced in the
	// segment's key range.
	ChooseCheckpoints(ctx context.Context, n int) ([]keyspace.Key, error)

	// SegmentByCheckpoints returns len(checkpoints)+1 contiguous
	// sub-segments covering the same range as this segment.
	SegmentByCheckpoints(checkpoints []keyspace.Key) ([]TableSegment, error)

	// NewKeyBounds derives a new segment bounded to the given range.
	NewKeyBounds(r keyspace.Range) TableSegment

	// WithIgnoredColumns derives a new segment with the given column set
	// excluded from both checksum and fetched-row diffing.
	WithIgnoredColumns(ignored map[string]struct{}) TableSegment

	// IgnoredColumns returns the column set excluded by WithIgnoredColumns,
	// so a caller that downloads this segment's rows can exclude the same
	// columns from its own comparison.
	IgnoredColumns() map[string]struct{}

	// ApproximateSize is a cheap upper bound on row count derivable from
	// the key range alone, without a database round trip.
	ApproximateSize() int64
}
