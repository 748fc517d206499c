package scoring

import (
	"context"
	"fmt"

	"github.com/noah-isme/sage-go-api/pkg/similarity"
)

// PrimaryFilter cheaply rejects answers with insufficient semantic overlap
// before the expensive scoring path runs. It only ever vetoes, it never
// raises a score.
type PrimaryFilter struct {
	oracle similarity.Oracle
}

// NewPrimaryFilter constructs a filter over the given similarity oracle.
func NewPrimaryFilter(oracle similarity.Oracle) *PrimaryFilter {
	return &PrimaryFilter{oracle: oracle}
}

// Apply computes the raw similarity between the student and reference
// answers and reports whether it clears the threshold (boundary inclusive).
// A threshold of 0 passes everything; a threshold of 1 demands a near-exact
// paraphrase.
func (f *PrimaryFilter) Apply(ctx context.Context, studentAnswer, referenceAnswer string, threshold float64) (bool, float64, error) {
	raw, err := f.oracle.Similarity(ctx, studentAnswer, referenceAnswer)
	if err != nil {
		return false, 0, fmt.Errorf("primary filter similarity: %w", err)
	}

	raw = similarity.Clamp01(raw)
	return raw >= threshold, raw, nil
}
