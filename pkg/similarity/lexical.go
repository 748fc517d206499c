package similarity

import (
	"context"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	lexicalDiffWeight    = 0.5
	lexicalOverlapWeight = 0.3
	lexicalLengthWeight  = 0.2
)

// LexicalOracle scores text pairs without a model, combining a character
// diff ratio, word overlap, and a length ratio. It is the fallback oracle
// when no embedding endpoint is configured.
type LexicalOracle struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewLexicalOracle constructs the lexical oracle.
func NewLexicalOracle() *LexicalOracle {
	return &LexicalOracle{dmp: diffmatchpatch.New()}
}

// Similarity implements Oracle.
func (o *LexicalOracle) Similarity(_ context.Context, a, b string) (float64, error) {
	left := normalize(a)
	right := normalize(b)
	if left == "" || right == "" {
		return 0, nil
	}

	combined := lexicalDiffWeight*o.diffRatio(left, right) +
		lexicalOverlapWeight*wordOverlap(left, right) +
		lexicalLengthWeight*lengthRatio(left, right)

	return Clamp01(combined), nil
}

func (o *LexicalOracle) diffRatio(a, b string) float64 {
	diffs := o.dmp.DiffMain(a, b, false)
	distance := o.dmp.DiffLevenshtein(diffs)

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}

	return 1 - float64(distance)/float64(longest)
}

func wordOverlap(a, b string) float64 {
	left := wordSet(a)
	right := wordSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	intersection := 0
	for word := range left {
		if _, ok := right[word]; ok {
			intersection++
		}
	}

	union := len(left) + len(right) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		words[word] = struct{}{}
	}
	return words
}

func lengthRatio(a, b string) float64 {
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer == 0 {
		return 0
	}
	return float64(shorter) / float64(longer)
}
