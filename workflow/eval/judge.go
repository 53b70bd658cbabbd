package eval

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/dshills/flowgraph/workflow/runner"
)

// judgeLayer invokes the judge twice - once in forward order, once with
// the candidate/expected outputs swapped - to detect pairwise
// inconsistency (spec 4.10 bias mitigation), and returns the forward
// pass's per-criterion scores.
func judgeLayer(judge Judge, result runner.Result, sample Sample) ([]CriterionScore, []string, error) {
	criteriaNames := []string{"correctness", "code_quality", "efficiency", "documentation"}
	candidate := candidateText(result)

	shuffled := shuffleCriteria(criteriaNames, sample.Inputs)

	forward, err := judge.Score(candidate, sample.ExpectedOutput, shuffled)
	if err != nil {
		return nil, nil, fmt.Errorf("judge forward pass: %w", err)
	}
	swapped, err := judge.Score(sample.ExpectedOutput, candidate, shuffled)
	if err != nil {
		return nil, nil, fmt.Errorf("judge swapped pass: %w", err)
	}

	var inconsistencies []string
	for _, name := range criteriaNames {
		f, okF := forward[name]
		s, okS := swapped[name]
		if okF && okS {
			delta := f.Score - s.Score
			if delta < 0 {
				delta = -delta
			}
			if delta > 1.0 {
				inconsistencies = append(inconsistencies, name)
			}
		}
	}

	scores := make([]CriterionScore, 0, len(criteriaNames))
	for _, name := range criteriaNames {
		v, ok := forward[name]
		if !ok {
			continue
		}
		scores = append(scores, CriterionScore{
			Name: name, Raw: v.Score * 20, Normalized: likert5(v.Score), Source: "judge",
		})
	}
	return scores, inconsistencies, nil
}

// shuffleCriteria reorders criterion names with a stable seed derived
// from the sample's inputs, so repeated evaluations of the same sample
// produce the same shuffle (reproducible) while different samples see
// different orderings (bias resistant).
func shuffleCriteria(names []string, inputs map[string]any) []string {
	seed := seedFromInputs(inputs)
	out := append([]string{}, names...)
	// Fisher-Yates using an xorshift64* PRNG seeded from the hash,
	// avoiding math/rand's global state (which the no-Math.random rule
	// for reproducible workflow runs rules out anyway).
	for i := len(out) - 1; i > 0; i-- {
		seed = nextRand(seed)
		j := int(seed % uint64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func seedFromInputs(inputs map[string]any) uint64 {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte(fmt.Sprint(inputs[k])))
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

func nextRand(x uint64) uint64 {
	// xorshift64*
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	return x * 2685821657736338717
}
