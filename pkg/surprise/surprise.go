// Package surprise scores how novel an embedding is against recent history.
package surprise

import "math"

// Scorer computes novelty scores for embeddings. A score of 1.0 means the
// embedding is entirely novel relative to the provided history; 0.0 means
// an exact duplicate exists.
type Scorer struct{}

// NewScorer creates a new surprise scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns 1 minus the maximum cosine similarity between the candidate
// embedding and the history embeddings. An empty history scores 1.0.
// Zero-norm vectors on either side contribute no similarity. The result is
// clamped to [0, 1].
func (s *Scorer) Score(embedding []float32, history [][]float32) float64 {
	if len(history) == 0 {
		return 1.0
	}

	candNorm := norm(embedding)
	if candNorm == 0 {
		return 1.0
	}

	maxSim := math.Inf(-1)
	found := false
	for _, h := range history {
		hNorm := norm(h)
		if hNorm == 0 || len(h) != len(embedding) {
			continue
		}
		sim := dot(embedding, h) / (candNorm * hNorm)
		if sim > maxSim {
			maxSim = sim
		}
		found = true
	}

	if !found {
		return 1.0
	}

	score := 1.0 - maxSim
	return clamp01(score)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
