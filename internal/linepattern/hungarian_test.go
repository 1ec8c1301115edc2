package linepattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func solve(cost [][]float64) []int {
	var a assigner
	n := len(cost)
	m := 0
	if n > 0 {
		m = len(cost[0])
	}
	for i := range cost {
		copy(a.cost[i][:], cost[i])
	}
	result := make([]int, n)
	a.Solve(n, m, result)
	return result
}

func TestAssigner_Empty(t *testing.T) {
	assert.Empty(t, solve(nil))
}

func TestAssigner_NoColumns(t *testing.T) {
	var a assigner
	result := make([]int, 2)
	a.Solve(2, 0, result)
	assert.Equal(t, []int{-1, -1}, result)
}

func TestAssigner_SquareOptimal(t *testing.T) {
	//   [1 2 3]     optimal: 0→0, 1→1, 2→2 = 10
	//   [4 4 6]
	//   [9 8 5]
	cost := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	assert.Equal(t, []int{0, 1, 2}, solve(cost))
}

func TestAssigner_PrefersMoreMatches(t *testing.T) {
	// Greedy nearest would give row 0 column 0 and leave row 1 unmatched.
	cost := [][]float64{
		{1, 3},
		{2, assignForbidden},
	}
	assert.Equal(t, []int{1, 0}, solve(cost))
}

func TestAssigner_Forbidden(t *testing.T) {
	cost := [][]float64{
		{1, 2},
		{assignForbidden, assignForbidden},
	}
	result := solve(cost)
	assert.GreaterOrEqual(t, result[0], 0)
	assert.Equal(t, -1, result[1])
}

func TestAssigner_MoreRowsThanColumns(t *testing.T) {
	cost := [][]float64{
		{1, 10},
		{10, 1},
		{5, 5},
	}
	assert.Equal(t, []int{0, 1, -1}, solve(cost))
}

func TestAssigner_ReusedAcrossCalls(t *testing.T) {
	var a assigner
	result := make([]int, 2)

	a.cost[0][0], a.cost[0][1] = 5, 1
	a.cost[1][0], a.cost[1][1] = 1, 5
	a.Solve(2, 2, result)
	assert.Equal(t, []int{1, 0}, result)

	// A smaller problem must not see stale costs or potentials.
	a.cost[0][0] = 2
	a.Solve(1, 1, result[:1])
	assert.Equal(t, 0, result[0])
}

func TestAssigner_DoesNotAllocate(t *testing.T) {
	var a assigner
	result := make([]int, MaxLines)
	for i := 0; i < MaxLines; i++ {
		for j := 0; j < MaxFeatures; j++ {
			a.cost[i][j] = float64((i*7 + j*3) % 11)
		}
	}
	allocs := testing.AllocsPerRun(100, func() {
		a.Solve(MaxLines, MaxFeatures, result)
	})
	assert.Zero(t, allocs)
}
