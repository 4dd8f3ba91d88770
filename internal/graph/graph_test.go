package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFromDependencies_LinearChain(t *testing.T) {
	g, err := BuildFromDependencies(map[string][]string{
		"orders":          nil,
		"order_items":     {"orders"},
		"order_item_tax":  {"order_items"},
	})
	require.NoError(t, err)

	order, err := g.RunOrder()
	require.NoError(t, err)

	pos := indexOf(order)
	assert.Less(t, pos["orders"], pos["order_items"])
	assert.Less(t, pos["order_items"], pos["order_item_tax"])
}

func TestBuildFromDependencies_UnknownDependency(t *testing.T) {
	_, err := BuildFromDependencies(map[string][]string{
		"order_items": {"orders"}, // "orders" never declared
	})
	require.Error(t, err)
	var unknownErr *UnknownDependencyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "orders", unknownErr.Dependency)
}

func TestBuildFromDependencies_Cycle(t *testing.T) {
	_, err := BuildFromDependencies(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.UnprocessedJobs)
}

func TestRunOrder_IndependentJobsAnyOrder(t *testing.T) {
	g, err := BuildFromDependencies(map[string][]string{
		"customers": nil,
		"products":  nil,
	})
	require.NoError(t, err)

	order, err := g.RunOrder()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"customers", "products"}, order)
}

func indexOf(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	return pos
}
