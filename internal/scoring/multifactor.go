package scoring

import (
	"context"
	"fmt"

	"github.com/noah-isme/sage-go-api/pkg/similarity"
)

const (
	contentWeight = 0.45
	qualityWeight = 0.35
	lengthWeight  = 0.20

	// Reference sentences count as covered when their best-matching
	// student sentence reaches this similarity.
	coverageThreshold = 0.6
)

// MultiFactorStrategy scores answers from per-sentence similarity alone:
// coverage of the reference sentences, mean quality of the best matches,
// and a word-count length factor.
type MultiFactorStrategy struct {
	oracle similarity.Oracle
}

// NewMultiFactorStrategy builds the strategy over a similarity oracle.
func NewMultiFactorStrategy(oracle similarity.Oracle) *MultiFactorStrategy {
	return &MultiFactorStrategy{oracle: oracle}
}

// Score implements Strategy.
func (s *MultiFactorStrategy) Score(ctx context.Context, input Input) (Outcome, error) {
	referenceSentences := SplitSentences(input.ReferenceAnswer)
	studentSentences := SplitSentences(input.StudentAnswer)

	contentScore, quality, err := s.coverage(ctx, referenceSentences, studentSentences)
	if err != nil {
		return Outcome{}, err
	}

	lengthScore := lengthFactor(WordCount(input.StudentAnswer), WordCount(input.ReferenceAnswer))

	final := clamp(contentWeight*contentScore+qualityWeight*quality+lengthWeight*lengthScore, 0, 1)

	marks := 0.0
	if final >= input.Config.SimilarityThreshold {
		marks = final * input.MaxMarks
	}

	return Outcome{
		ComputedMarks: clamp(marks, 0, input.MaxMarks),
		Explanation:   multiFactorExplanation(contentScore, quality, lengthScore),
		Details: map[string]interface{}{
			"content_score": contentScore,
			"quality":       quality,
			"length_score":  lengthScore,
			"final":         final,
		},
	}, nil
}

// coverage returns the fraction of reference sentences whose best student
// match clears coverageThreshold, and the mean of those best-match values.
// An empty reference or student answer yields zero for both, never NaN.
func (s *MultiFactorStrategy) coverage(ctx context.Context, referenceSentences, studentSentences []string) (float64, float64, error) {
	if len(referenceSentences) == 0 || len(studentSentences) == 0 {
		return 0, 0, nil
	}

	covered := 0
	totalBest := 0.0
	for _, reference := range referenceSentences {
		best := 0.0
		for _, student := range studentSentences {
			score, err := s.oracle.Similarity(ctx, student, reference)
			if err != nil {
				return 0, 0, fmt.Errorf("sentence similarity: %w", err)
			}
			if score > best {
				best = score
			}
		}
		if best >= coverageThreshold {
			covered++
		}
		totalBest += best
	}

	contentScore := float64(covered) / float64(len(referenceSentences))
	quality := totalBest / float64(len(referenceSentences))

	return clamp(contentScore, 0, 1), clamp(quality, 0, 1), nil
}

// lengthFactor is 1.0 for ratios in [0.7,1.5] and degrades linearly to 0
// outside [0.3,2.0].
func lengthFactor(studentWords, referenceWords int) float64 {
	if referenceWords == 0 {
		return 0
	}

	ratio := float64(studentWords) / float64(referenceWords)
	switch {
	case ratio >= 0.7 && ratio <= 1.5:
		return 1
	case ratio < 0.3 || ratio > 2.0:
		return 0
	case ratio < 0.7:
		return (ratio - 0.3) / (0.7 - 0.3)
	default:
		return (2.0 - ratio) / (2.0 - 1.5)
	}
}

func multiFactorExplanation(contentScore, quality, lengthScore float64) string {
	return fmt.Sprintf(
		"Coverage %.0f%% of reference points, match quality %.0f%%, length score %.0f%%.",
		contentScore*100, quality*100, lengthScore*100,
	)
}
