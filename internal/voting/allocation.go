package voting

import (
	"fmt"
	"math"
	"sort"

	"github.com/agentfund/baseline/internal/models"
)

// AllocateOptions tunes the allocation run. MinVotes below 1 is treated
// as 1. TopN of 0 means no truncation.
type AllocateOptions struct {
	MinVotes int
	TopN     int
}

// CalculateAllocations splits pool across eligible projects in proportion
// to weight = voteCount × avgScore / avgRank. More agreeing votes, higher
// authorizing scores and better (lower) ranks all increase the share.
//
// Projects below MinVotes are dropped; an empty result is not an error, it
// signals insufficient participation. models.ErrZeroWeight is returned
// only when every eligible project has zero weight. When TopN truncates
// the list the kept amounts are deliberately not re-normalized, so they
// may sum to less than pool.
func CalculateAllocations(results []models.ProjectResult, pool float64, opts AllocateOptions) ([]models.Allocation, error) {
	if pool <= 0 {
		return nil, fmt.Errorf("%w: pool amount must be positive", models.ErrInvalidInput)
	}
	minVotes := opts.MinVotes
	if minVotes < 1 {
		minVotes = 1
	}

	var eligible []models.ProjectResult
	for _, r := range results {
		if r.VoteCount >= minVotes {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		return []models.Allocation{}, nil
	}

	weights := make([]float64, len(eligible))
	total := 0.0
	for i, r := range eligible {
		if r.AvgRank > 0 {
			weights[i] = float64(r.VoteCount) * r.AvgScore / r.AvgRank
		}
		total += weights[i]
	}
	if total == 0 {
		return nil, models.ErrZeroWeight
	}

	allocations := make([]models.Allocation, len(eligible))
	for i, r := range eligible {
		share := weights[i] / total
		allocations[i] = models.Allocation{
			ProjectID:     r.ProjectID,
			Weight:        weights[i],
			Allocation:    round(share*pool, 4),
			AllocationPct: round(share*100, 2),
			VoteCount:     r.VoteCount,
		}
	}

	sort.Slice(allocations, func(i, j int) bool {
		if allocations[i].Allocation != allocations[j].Allocation {
			return allocations[i].Allocation > allocations[j].Allocation
		}
		return allocations[i].ProjectID < allocations[j].ProjectID
	})

	if opts.TopN > 0 && opts.TopN < len(allocations) {
		allocations = allocations[:opts.TopN]
	}
	return allocations, nil
}

// ValidateAllocations reports whether the allocation amounts sum to pool
// within tolerance. Audit use only; never gates output.
func ValidateAllocations(allocations []models.Allocation, pool, tolerance float64) bool {
	sum := 0.0
	for _, a := range allocations {
		sum += a.Allocation
	}
	return math.Abs(sum-pool) <= tolerance
}

func round(x float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(x*shift) / shift
}
