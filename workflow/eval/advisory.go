package eval

import "github.com/dshills/flowgraph/workflow/runner"

// advisoryScores computes the two advisory signals of spec 4.10 - text
// overlap against the expected output and an efficiency measure from
// duration and retries - blended 0.67/0.33 into a single advisory
// criterion. Advisory scores never gate the grade; they only contribute
// to the composite.
func advisoryScores(result runner.Result, sample *Sample) []CriterionScore {
	_, _, retries := stepStats(result.State)

	var overlap float64
	if sample != nil && sample.ExpectedOutput != "" {
		overlap = tokenOverlap(candidateText(result), sample.ExpectedOutput)
	}
	efficiency := efficiencyFormula(result, retries)

	blended := zeroOneClamp(0.67*overlap + 0.33*efficiency)
	return []CriterionScore{
		{Name: "advisory_overlap_efficiency", Raw: blended * 100, Normalized: blended, Source: "advisory"},
	}
}
