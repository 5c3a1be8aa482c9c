// Package fusion combines per-signal search scores into one ranked ordering.
// Both backends share it for hybrid and semantic modes.
package fusion

import "sort"

// Weights holds the linear blend coefficients for the vector and text
// signals. The shipped values (0.7/0.3 hybrid, 0.8/0.2 semantic) are
// configuration constants, not tuned parameters.
type Weights struct {
	Vector float64
	Text   float64
}

// DefaultHybridWeights blends raw text counts with vector similarity.
var DefaultHybridWeights = Weights{Vector: 0.7, Text: 0.3}

// DefaultSemanticWeights blends max-normalized text scores with vector similarity.
var DefaultSemanticWeights = Weights{Vector: 0.8, Text: 0.2}

// Fused is one merged result. The merge key is the chunk ID, never the
// document ID: chunks of the same document rank independently.
type Fused struct {
	ID          string
	Score       float64
	VectorScore float64
	TextScore   float64
}

// Hybrid merges vector and text score maps keyed by chunk ID and computes
// score = w.Vector*vectorScore + w.Text*textScore using the raw text score.
// An ID absent from one map contributes 0 for that signal. Results are
// sorted by fused score descending.
func Hybrid(vectorScores, textScores map[string]float64, w Weights) []*Fused {
	merged := merge(vectorScores, textScores)
	for _, f := range merged {
		f.Score = w.Vector*f.VectorScore + w.Text*f.TextScore
	}
	sortByScore(merged)
	return merged
}

// Semantic merges vector and text score maps keyed by chunk ID and computes
// score = w.Vector*vectorScore + w.Text*(textScore/maxTextScore), where
// maxTextScore is taken across the merged set. When no record has a text
// match the normalized term is 0 for every record.
func Semantic(vectorScores, textScores map[string]float64, w Weights) []*Fused {
	merged := merge(vectorScores, textScores)
	var maxText float64
	for _, f := range merged {
		if f.TextScore > maxText {
			maxText = f.TextScore
		}
	}
	for _, f := range merged {
		normalized := 0.0
		if maxText > 0 {
			normalized = f.TextScore / maxText
		}
		f.Score = w.Vector*f.VectorScore + w.Text*normalized
	}
	sortByScore(merged)
	return merged
}

func merge(vectorScores, textScores map[string]float64) []*Fused {
	byID := make(map[string]*Fused, len(vectorScores)+len(textScores))
	for id, score := range vectorScores {
		byID[id] = &Fused{ID: id, VectorScore: score}
	}
	for id, score := range textScores {
		if f, ok := byID[id]; ok {
			f.TextScore = score
		} else {
			byID[id] = &Fused{ID: id, TextScore: score}
		}
	}
	merged := make([]*Fused, 0, len(byID))
	for _, f := range byID {
		merged = append(merged, f)
	}
	return merged
}

func sortByScore(results []*Fused) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// Top truncates results to at most k entries.
func Top(results []*Fused, k int) []*Fused {
	if k > 0 && len(results) > k {
		return results[:k]
	}
	return results
}
