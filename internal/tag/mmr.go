package tag

import "math"

// Cosine returns the cosine similarity of two vectors. A zero-norm vector
// (including nil) has similarity 0.0 with anything; there is no division by
// zero. Vectors of different lengths are compared over the shorter prefix.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}

	var na, nb float64
	for _, x := range a {
		na += float64(x) * float64(x)
	}
	for _, y := range b {
		nb += float64(y) * float64(y)
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SelectMMR picks up to k candidate indices by maximal marginal relevance:
// individually relevant to the document vector, mutually diverse. lambda
// weighs relevance against diversity (1.0 pure relevance, 0.0 pure
// diversity). The first pick is the most relevant candidate; each later pick
// maximizes
//
//	lambda*relevance[i] - (1-lambda)*max(cosine(candidate[i], chosen...))
//
// Ties resolve to the lowest index, so selection is deterministic for
// identical inputs. Selection stops at k picks or when candidates run out.
//
// SelectMMR is a pure function; it never modifies its arguments.
func SelectMMR(doc []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	rel := make([]float64, len(candidates))
	for i, c := range candidates {
		rel[i] = Cosine(doc, c)
	}

	chosen := make([]int, 0, min(k, len(candidates)))
	picked := make([]bool, len(candidates))
	for len(chosen) < k && len(chosen) < len(candidates) {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if picked[i] {
				continue
			}
			score := rel[i]
			if len(chosen) > 0 {
				// Similarity floor is 0 so an all-negative neighborhood
				// never rewards redundancy.
				maxSim := 0.0
				for _, j := range chosen {
					if sim := Cosine(candidates[i], candidates[j]); sim > maxSim {
						maxSim = sim
					}
				}
				score = lambda*rel[i] - (1-lambda)*maxSim
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		chosen = append(chosen, best)
		picked[best] = true
	}
	return chosen
}
