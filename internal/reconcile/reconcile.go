// Package reconcile implements the schema reconciler (spec.md §4.6): before
// bisection begins, it checks that the two sides' key columns are
// comparable and, for precision-bearing relevant columns, reduces both
// sides to the coarser of the two precisions so a checksum mismatch isn't
// just a display-precision artifact. Grounded on the same field-by-field
// comparison shape internal/config/validation.go uses for configuration
// checks, applied here to column schemas instead.
package reconcile

import (
	"fmt"
)

// ColumnType describes one column's comparison-relevant schema facts.
type ColumnType struct {
	Name      string
	Semantic  SemanticType
	Precision int // meaningful only for TimestampType/DecimalType
	Scale     int // meaningful only for DecimalType
}

// SemanticType classifies a column for key-eligibility and precision
// handling, independent of the two databases' own type names.
type SemanticType int

const (
	UnknownType SemanticType = iota
	IntegerType
	StringType
	TimestampType
	DecimalType
	UUIDType
)

// keyEligible reports whether t can appear in a compound key (spec.md §3
// "Key components must be of key-eligible types").
func (t SemanticType) keyEligible() bool {
	switch t {
	case IntegerType, StringType, TimestampType, UUIDType:
		return true
	default:
		return false
	}
}

// Schema is one side's relevant-column type map, keyed by column name.
type Schema map[string]ColumnType

// Warning is a non-fatal schema note: a column reconcile touched or
// couldn't reason about, surfaced to the caller's logger rather than
// failing the run.
type Warning struct {
	Column  string
	Message string
}

// MismatchError reports an unrecoverable schema incompatibility: the engine
// must not proceed with bisection when this is returned (spec.md §4.6, §7).
type MismatchError struct {
	Reason string
}

func (e *MismatchError) Error() string {
	return "schema reconcile: " + e.Reason
}

// Result is the reconciler's output: possibly-adjusted copies of both
// schemas plus any warnings raised along the way.
type Result struct {
	Left     Schema
	Right    Schema
	Warnings []Warning
}

// Reconcile checks key-column compatibility and reduces precision on
// matching relevant columns, returning adjusted schema copies. Must run
// after both sides' schemas have been populated (spec.md §4.6 "after
// with_schema() has populated both sides' schemas in parallel").
func Reconcile(keyColumns []string, left, right Schema) (*Result, error) {
	if err := checkKeyColumns(keyColumns, left, right); err != nil {
		return nil, err
	}

	leftOut := cloneSchema(left)
	rightOut := cloneSchema(right)
	var warnings []Warning

	for name, lcol := range left {
		rcol, ok := right[name]
		if !ok {
			continue // column exists on one side only; nothing to reconcile
		}

		switch {
		case lcol.Semantic == TimestampType && rcol.Semantic == TimestampType:
			p := lcol.Precision
			if rcol.Precision < p {
				p = rcol.Precision
			}
			if p != lcol.Precision || p != rcol.Precision {
				warnings = append(warnings, Warning{
					Column:  name,
					Message: fmt.Sprintf("reduced timestamp precision to %d to match coarser side", p),
				})
			}
			leftOut[name] = ColumnType{Name: name, Semantic: TimestampType, Precision: p}
			rightOut[name] = ColumnType{Name: name, Semantic: TimestampType, Precision: p}

		case lcol.Semantic == DecimalType && rcol.Semantic == DecimalType:
			scale := lcol.Scale
			if rcol.Scale < scale {
				scale = rcol.Scale
			}
			if scale != lcol.Scale || scale != rcol.Scale {
				warnings = append(warnings, Warning{
					Column:  name,
					Message: fmt.Sprintf("reduced decimal scale to %d to match coarser side", scale),
				})
			}
			leftOut[name] = ColumnType{Name: name, Semantic: DecimalType, Scale: scale}
			rightOut[name] = ColumnType{Name: name, Semantic: DecimalType, Scale: scale}

		case lcol.Semantic != rcol.Semantic:
			if lcol.Semantic == UnknownType || rcol.Semantic == UnknownType {
				warnings = append(warnings, Warning{
					Column:  name,
					Message: "no compatibility handler for this column's type; comparing raw values",
				})
			}
		}
	}

	return &Result{Left: leftOut, Right: rightOut, Warnings: warnings}, nil
}

// checkKeyColumns asserts equal key-column count and that each column pair
// shares one key-eligible semantic type exactly (spec.md §4.6, §3).
func checkKeyColumns(keyColumns []string, left, right Schema) error {
	for _, name := range keyColumns {
		lcol, ok := left[name]
		if !ok {
			return &MismatchError{Reason: fmt.Sprintf("key column %q missing from left schema", name)}
		}
		rcol, ok := right[name]
		if !ok {
			return &MismatchError{Reason: fmt.Sprintf("key column %q missing from right schema", name)}
		}
		if !lcol.Semantic.keyEligible() {
			return &MismatchError{Reason: fmt.Sprintf("key column %q is not a key-eligible type", name)}
		}
		if !rcol.Semantic.keyEligible() {
			return &MismatchError{Reason: fmt.Sprintf("key column %q is not a key-eligible type", name)}
		}
		if lcol.Semantic != rcol.Semantic {
			return &MismatchError{Reason: fmt.Sprintf(
				"key column %q has mismatched types: left=%v right=%v", name, lcol.Semantic, rcol.Semantic)}
		}
	}
	return nil
}

func cloneSchema(s Schema) Schema {
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
