package similarity

import (
	"context"
	"math"
	"strings"
)

// Oracle computes a semantic similarity score for a pair of texts.
// Implementations must return a value in [0,1], be deterministic for
// identical inputs, and treat empty or whitespace-only input as 0.0.
type Oracle interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Clamp01 bounds a score to the [0,1] interval and maps NaN to 0.
func Clamp01(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func normalize(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			builder.WriteRune(r)
		case r == '\n' || r == '\t':
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
