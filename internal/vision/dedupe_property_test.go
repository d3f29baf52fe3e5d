package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func genCandidates(rt *rapid.T) []Candidate {
	n := rapid.IntRange(0, 60).Draw(rt, "n")
	cands := make([]Candidate, n)
	for i := range cands {
		cands[i] = Candidate{
			X:          rapid.IntRange(0, 1080).Draw(rt, "x"),
			Y:          rapid.IntRange(0, 1920).Draw(rt, "y"),
			Confidence: rapid.Float32Range(0.65, 1).Draw(rt, "conf"),
		}
	}
	return cands
}

// No two survivors within the radius, every survivor comes from the
// input, and every input candidate is represented by a survivor within
// the radius.
func TestDedupeInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cands := genCandidates(rt)
		distinct := dedupe(cands, DedupRadius)

		for i := range distinct {
			for j := i + 1; j < len(distinct); j++ {
				assert.GreaterOrEqual(rt, abs(distinct[i].Y-distinct[j].Y), DedupRadius,
					"survivors %d and %d are within the dedup radius", i, j)
			}
		}
		for _, k := range distinct {
			assert.Contains(rt, cands, k)
		}
		for _, c := range cands {
			represented := false
			for _, k := range distinct {
				if abs(c.Y-k.Y) < DedupRadius {
					represented = true
					break
				}
			}
			assert.True(rt, represented, "candidate at y=%d has no survivor nearby", c.Y)
		}
	})
}

// Topmost must return the minimum Y of the deduplicated set,
// HighestConfidence the maximum confidence.
func TestSelectionPolicies(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cands := genCandidates(rt)
		distinct := dedupe(cands, DedupRadius)
		if len(distinct) == 0 {
			return
		}

		top := pick(distinct, Topmost)
		conf := pick(distinct, HighestConfidence)

		for _, c := range distinct {
			assert.LessOrEqual(rt, top.Y, c.Y)
			assert.GreaterOrEqual(rt, conf.Confidence, c.Confidence)
		}
	})
}
