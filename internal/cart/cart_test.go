package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOrIncrementMergesByProduct(t *testing.T) {
	c := New()

	ids := []int64{1, 2, 1, 3, 2, 1}
	for _, id := range ids {
		c.AddOrIncrement(id, "p", "b", 10)
	}

	lines := c.Lines()
	require.Len(t, lines, 3)

	counts := map[int64]int{}
	for _, l := range lines {
		counts[l.ProductID] = l.Quantity
	}
	assert.Equal(t, 3, counts[1])
	assert.Equal(t, 2, counts[2])
	assert.Equal(t, 1, counts[3])
}

func TestAddOrIncrementKeepsInsertionOrder(t *testing.T) {
	c := New()
	c.AddOrIncrement(5, "five", "", 1)
	c.AddOrIncrement(3, "three", "", 1)
	c.AddOrIncrement(5, "five", "", 1)
	c.AddOrIncrement(9, "nine", "", 1)

	lines := c.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, int64(5), lines[0].ProductID)
	assert.Equal(t, int64(3), lines[1].ProductID)
	assert.Equal(t, int64(9), lines[2].ProductID)
}

func TestAdjustQuantityFloorsAtOne(t *testing.T) {
	c := New()
	c.AddOrIncrement(1, "p", "b", 10)

	for i := 0; i < 5; i++ {
		line, ok := c.AdjustQuantity(1, -1)
		require.True(t, ok)
		assert.Equal(t, 1, line.Quantity)
	}

	line, ok := c.AdjustQuantity(1, 3)
	require.True(t, ok)
	assert.Equal(t, 4, line.Quantity)

	_, ok = c.AdjustQuantity(99, 1)
	assert.False(t, ok)
}

func TestRemoveDeletesLine(t *testing.T) {
	c := New()
	c.AddOrIncrement(1, "a", "", 10)
	c.AddOrIncrement(2, "b", "", 20)

	require.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)
}

func TestTotal(t *testing.T) {
	c := New()
	assert.Zero(t, c.Total())

	c.AddOrIncrement(1, "a", "", 50)
	c.AddOrIncrement(1, "a", "", 50)
	c.AddOrIncrement(2, "b", "", 30)

	assert.InDelta(t, 130, c.Total(), 1e-9)
}

func TestClear(t *testing.T) {
	c := New()
	c.AddOrIncrement(1, "a", "", 10)
	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Total())
}
