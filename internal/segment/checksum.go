package segment

import (
	"fmt"
	"hash/fnv"
)

// checksumRow hashes a single row's relevant, non-ignored column values into
// a uint64. CountAndChecksum XORs these together across a segment so the
// total is order-independent (spec.md §4.1: "commutative... so rows may
// arrive from the database in any order"), the same accumulation tidb-tools'
// checksum comparison uses (checksum ^= checksumTmp).
func checksumRow(row Row, ignored map[string]struct{}, columns []string) uint64 {
	h := fnv.New64a()
	for i, col := range columns {
		if _, skip := ignored[col]; skip {
			continue
		}
		fmt.Fprintf(h, "%s=%v|", col, row[i])
	}
	return h.Sum64()
}
