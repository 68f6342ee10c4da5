package voting

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfund/baseline/internal/models"
)

func result(id string, votes int, score, rank float64) models.ProjectResult {
	return models.ProjectResult{ProjectID: id, VoteCount: votes, AvgScore: score, AvgRank: rank}
}

func TestEqualSplitSumsToPool(t *testing.T) {
	results := []models.ProjectResult{
		result("alpha", 1, 20, 1.0),
		result("beta", 1, 20, 1.0),
		result("gamma", 1, 20, 1.0),
	}

	allocs, err := CalculateAllocations(results, 9.99, AllocateOptions{})
	require.NoError(t, err)
	require.Len(t, allocs, 3)

	for _, a := range allocs {
		assert.InDelta(t, 3.33, a.Allocation, 0.01)
		assert.InDelta(t, 33.33, a.AllocationPct, 0.01)
	}
	assert.True(t, ValidateAllocations(allocs, 9.99, 0.01))
	assert.False(t, ValidateAllocations(allocs, 10.99, 0.01))
}

func TestSingleProjectTakesWholePool(t *testing.T) {
	allocs, err := CalculateAllocations([]models.ProjectResult{result("alpha", 2, 25, 1.5)}, 100, AllocateOptions{})
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, 100.0, allocs[0].Allocation)
	assert.Equal(t, 100.0, allocs[0].AllocationPct)
}

func TestMinVotesFilterIsStrict(t *testing.T) {
	results := []models.ProjectResult{
		result("dominant", 1, 30, 1.0), // weight 30, but below the threshold
		result("steady", 3, 10, 2.0),   // weight 15
	}

	allocs, err := CalculateAllocations(results, 100, AllocateOptions{MinVotes: 2})
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, "steady", allocs[0].ProjectID)
	assert.Equal(t, 100.0, allocs[0].Allocation)
}

func TestNoEligibleProjectsIsNotAnError(t *testing.T) {
	allocs, err := CalculateAllocations([]models.ProjectResult{result("alpha", 1, 20, 1.0)}, 100, AllocateOptions{MinVotes: 5})
	require.NoError(t, err)
	assert.Empty(t, allocs)
}

func TestTopNTruncatesWithoutRenormalizing(t *testing.T) {
	results := []models.ProjectResult{
		result("first", 3, 20, 1.0),  // weight 60
		result("second", 2, 15, 1.0), // weight 30
		result("third", 1, 10, 1.0),  // weight 10
	}

	full, err := CalculateAllocations(results, 100, AllocateOptions{})
	require.NoError(t, err)
	require.Len(t, full, 3)

	truncated, err := CalculateAllocations(results, 100, AllocateOptions{TopN: 2})
	require.NoError(t, err)
	require.Len(t, truncated, 2)

	// Truncation keeps the descending prefix untouched.
	assert.Equal(t, full[0], truncated[0])
	assert.Equal(t, full[1], truncated[1])
	assert.Greater(t, truncated[0].Allocation, truncated[1].Allocation)

	// Amounts are deliberately not re-normalized after truncation.
	assert.InDelta(t, 60.0, truncated[0].Allocation, 0.01)
	assert.InDelta(t, 30.0, truncated[1].Allocation, 0.01)
	assert.False(t, ValidateAllocations(truncated, 100, 0.01))
}

func TestEqualWeightsGetEqualShares(t *testing.T) {
	// weight 30 both ways: 1×30/1.0 and 3×20/2.0.
	results := []models.ProjectResult{
		result("alpha", 1, 30, 1.0),
		result("beta", 3, 20, 2.0),
	}

	allocs, err := CalculateAllocations(results, 100, AllocateOptions{})
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.InDelta(t, allocs[0].Allocation, allocs[1].Allocation, 1.0)
	assert.InDelta(t, 50.0, allocs[0].Allocation, 0.01)
}

func TestZeroTotalWeight(t *testing.T) {
	_, err := CalculateAllocations([]models.ProjectResult{result("alpha", 1, 0, 1.0)}, 100, AllocateOptions{})
	assert.ErrorIs(t, err, models.ErrZeroWeight)
}

func TestNonPositivePool(t *testing.T) {
	_, err := CalculateAllocations([]models.ProjectResult{result("alpha", 1, 20, 1.0)}, 0, AllocateOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAllocationsDeterministic(t *testing.T) {
	results := []models.ProjectResult{
		result("alpha", 2, 21.5, 1.5),
		result("beta", 2, 21.5, 1.5), // identical weight: tie broken by id
		result("gamma", 1, 25, 2.0),
	}

	first, err := CalculateAllocations(results, 77.77, AllocateOptions{})
	require.NoError(t, err)
	second, err := CalculateAllocations(results, 77.77, AllocateOptions{})
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(first, second))
	assert.Equal(t, "alpha", first[0].ProjectID)
}
