package eval

import (
	"strings"

	"github.com/dshills/flowgraph/workflow/runner"
	"github.com/dshills/flowgraph/workflow/state"
)

// objectiveScores computes the built-in formula for each of the four
// standard objective criteria named in spec section 4.10. A real
// deployment would drive this from the workflow's declared criteria list
// and a formula registry keyed by formula_id; the four built-ins are
// implemented directly here since they're the ones the spec names.
func objectiveScores(result runner.Result, sample *Sample) []CriterionScore {
	successRate, failedRatio, retries := stepStats(result.State)

	correctnessRaw := correctnessFormula(successRate, result, sample)
	codeQualityRaw := zeroOneClamp(1.0 - failedRatio - 0.05*float64(retries))
	efficiencyRaw := efficiencyFormula(result, retries)
	documentationRaw := documentationFormula(result)

	return []CriterionScore{
		{Name: "correctness", Raw: correctnessRaw * 100, Normalized: correctnessRaw, Source: "objective"},
		{Name: "code_quality", Raw: codeQualityRaw * 100, Normalized: codeQualityRaw, Source: "objective"},
		{Name: "efficiency", Raw: efficiencyRaw * 100, Normalized: efficiencyRaw, Source: "objective"},
		{Name: "documentation", Raw: documentationRaw * 100, Normalized: documentationRaw, Source: "objective"},
	}
}

func stepStats(run state.Run) (successRate, failedRatio float64, retries int) {
	if len(run.Steps) == 0 {
		return 0, 0, 0
	}
	succeeded, failed := 0, 0
	for _, st := range run.Steps {
		switch st.Status {
		case state.StatusSuccess, state.StatusValidation:
			succeeded++
		case state.StatusFailed:
			failed++
		}
		if len(st.Meta.Attempts) > 1 {
			retries += len(st.Meta.Attempts) - 1
		}
	}
	total := len(run.Steps)
	return float64(succeeded) / float64(total), float64(failed) / float64(total), retries
}

// correctnessFormula blends success rate with expected-text token overlap
// 70/30, per spec section 4.10.
func correctnessFormula(successRate float64, result runner.Result, sample *Sample) float64 {
	if sample == nil || sample.ExpectedOutput == "" {
		return successRate
	}
	overlap := tokenOverlap(candidateText(result), sample.ExpectedOutput)
	return zeroOneClamp(0.7*successRate + 0.3*overlap)
}

// efficiencyFormula penalizes wall-clock seconds against an SLO and
// retries, using the lower-is-better (slo_good, slo_bad) normalization.
func efficiencyFormula(result runner.Result, retries int) float64 {
	const sloGood, sloBad = 30.0, 180.0
	seconds := wallClockSeconds(result.State)
	base := lowerIsBetter(seconds, sloGood, sloBad)
	penalty := 0.05 * float64(retries)
	return zeroOneClamp(base - penalty)
}

func wallClockSeconds(run state.Run) float64 {
	var earliest, latest int64
	first := true
	for _, st := range run.Steps {
		if st.StartedAt.IsZero() || st.EndedAt.IsZero() {
			continue
		}
		startNS, endNS := st.StartedAt.UnixNano(), st.EndedAt.UnixNano()
		if first {
			earliest, latest = startNS, endNS
			first = false
			continue
		}
		if startNS < earliest {
			earliest = startNS
		}
		if endNS > latest {
			latest = endNS
		}
	}
	if first {
		return 0
	}
	return float64(latest-earliest) / 1e9
}

func documentationFormula(result runner.Result) float64 {
	text := candidateText(result)
	words := len(strings.Fields(text))
	// Richness saturates at 400 words; short or empty outputs score low.
	return zeroOneClamp(float64(words) / 400.0)
}

func candidateText(result runner.Result) string {
	var b strings.Builder
	for _, st := range result.State.Steps {
		if raw, ok := st.Outputs["raw_response"].(string); ok {
			b.WriteString(raw)
			b.WriteString(" ")
		}
	}
	if b.Len() == 0 {
		for _, v := range result.Outputs {
			if s, ok := v.(string); ok {
				b.WriteString(s)
				b.WriteString(" ")
			}
		}
	}
	return b.String()
}

func tokenOverlap(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(bTokens) == 0 {
		return 0
	}
	matched := 0
	for t := range bTokens {
		if aTokens[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(bTokens))
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = true
	}
	return out
}

func zeroOneClamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// lowerIsBetter normalizes a raw value into [0, 1] where sloGood or better
// scores 1.0 and sloBad or worse scores 0.0, linearly interpolated between.
func lowerIsBetter(value, sloGood, sloBad float64) float64 {
	if value <= sloGood {
		return 1.0
	}
	if value >= sloBad {
		return 0.0
	}
	return zeroOneClamp(1.0 - (value-sloGood)/(sloBad-sloGood))
}

// likert5 normalizes a 1..5 Likert score into [0, 1].
func likert5(score float64) float64 {
	return zeroOneClamp((score - 1.0) / 4.0)
}

// likertSigned normalizes a -2..2 Likert score into [0, 1].
func likertSigned(score float64) float64 {
	return zeroOneClamp((score + 2.0) / 4.0)
}

// binary normalizes a boolean-as-float (0 or 1) criterion; it's already in
// [0, 1] but included for symmetry with the other named formulas.
func binary(v float64) float64 {
	return zeroOneClamp(v)
}

// reliabilityAdjust shrinks a score toward a prior p for small sample
// counts n, per spec 4.10: (n*x + k*p) / (n + k).
func reliabilityAdjust(x float64, n int, k float64, p float64) float64 {
	return (float64(n)*x + k*p) / (float64(n) + k)
}
