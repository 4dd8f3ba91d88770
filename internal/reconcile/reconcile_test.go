package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileKeyColumnTypeMismatchRejected(t *testing.T) {
	left := Schema{"id": {Name: "id", Semantic: IntegerType}}
	right := Schema{"id": {Name: "id", Semantic: StringType}}

	_, err := Reconcile([]string{"id"}, left, right)
	require.Error(t, err)
	var mismatch *MismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestReconcileKeyColumnNotEligible(t *testing.T) {
	left := Schema{"blob": {Name: "blob", Semantic: UnknownType}}
	right := Schema{"blob": {Name: "blob", Semantic: UnknownType}}

	_, err := Reconcile([]string{"blob"}, left, right)
	assert.Error(t, err)
}

func TestReconcileMissingKeyColumn(t *testing.T) {
	left := Schema{"id": {Name: "id", Semantic: IntegerType}}
	right := Schema{}

	_, err := Reconcile([]string{"id"}, left, right)
	assert.Error(t, err)
}

func TestReconcileReducesTimestampPrecision(t *testing.T) {
	left := Schema{
		"id":         {Name: "id", Semantic: IntegerType},
		"updated_at": {Name: "updated_at", Semantic: TimestampType, Precision: 6},
	}
	right := Schema{
		"id":         {Name: "id", Semantic: IntegerType},
		"updated_at": {Name: "updated_at", Semantic: TimestampType, Precision: 3},
	}

	result, err := Reconcile([]string{"id"}, left, right)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Left["updated_at"].Precision)
	assert.Equal(t, 3, result.Right["updated_at"].Precision)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "updated_at", result.Warnings[0].Column)
}

func TestReconcileReducesDecimalScale(t *testing.T) {
	left := Schema{
		"id":    {Name: "id", Semantic: IntegerType},
		"price": {Name: "price", Semantic: DecimalType, Scale: 4},
	}
	right := Schema{
		"id":    {Name: "id", Semantic: IntegerType},
		"price": {Name: "price", Semantic: DecimalType, Scale: 2},
	}

	result, err := Reconcile([]string{"id"}, left, right)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Left["price"].Scale)
	assert.Equal(t, 2, result.Right["price"].Scale)
}

func TestReconcileWarnsOnNoHandler(t *testing.T) {
	left := Schema{
		"id":   {Name: "id", Semantic: IntegerType},
		"geom": {Name: "geom", Semantic: UnknownType},
	}
	right := Schema{
		"id":   {Name: "id", Semantic: IntegerType},
		"geom": {Name: "geom", Semantic: StringType},
	}

	result, err := Reconcile([]string{"id"}, left, right)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "geom", result.Warnings[0].Column)
}

func TestReconcileMatchingPrecisionNoWarning(t *testing.T) {
	left := Schema{
		"id":         {Name: "id", Semantic: IntegerType},
		"updated_at": {Name: "updated_at", Semantic: TimestampType, Precision: 3},
	}
	right := Schema{
		"id":         {Name: "id", Semantic: IntegerType},
		"updated_at": {Name: "updated_at", Semantic: TimestampType, Precision: 3},
	}

	result, err := Reconcile([]string{"id"}, left, right)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}
