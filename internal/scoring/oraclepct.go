package scoring

import (
	"context"
	"fmt"

	"github.com/noah-isme/sage-go-api/pkg/ai"
)

// Answers below this many words have their oracle percentage scaled down
// proportionally, so trivially short answers cannot score high by accident.
const minAnswerWords = 3

// OraclePercentageStrategy asks the explanation oracle for a percentage
// verdict and converts it to marks, applying length penalties on the way.
type OraclePercentageStrategy struct {
	explainer ai.Explainer
}

// NewOraclePercentageStrategy builds the strategy over an explainer.
func NewOraclePercentageStrategy(explainer ai.Explainer) *OraclePercentageStrategy {
	return &OraclePercentageStrategy{explainer: explainer}
}

// Score implements Strategy. Oracle failures propagate unchanged so the
// orchestrator can record them; a failure is never turned into a score.
func (s *OraclePercentageStrategy) Score(ctx context.Context, input Input) (Outcome, error) {
	temperature := float32(input.Config.Temperature)
	outcome, err := s.explainer.Evaluate(ctx, ai.ExplanationInput{
		Question:        input.Question,
		ReferenceAnswer: input.ReferenceAnswer,
		StudentAnswer:   input.StudentAnswer,
	}, ai.Options{
		Model:       input.Config.ModelName,
		Temperature: &temperature,
		MaxTokens:   input.Config.MaxTokens,
		Timeout:     input.Config.OracleTimeout(),
		MaxRetries:  input.Config.MaxRetries,
	})
	if err != nil {
		return Outcome{}, err
	}

	rawScore := clamp(outcome.Score, 0, 100)
	percentage := rawScore

	words := WordCount(input.StudentAnswer)
	if words < minAnswerWords {
		percentage = percentage * float64(words) / float64(minAnswerWords)
	}

	explanation := outcome.Explanation
	if capped := lengthCap(len(input.StudentAnswer), len(input.ReferenceAnswer)); percentage > capped {
		percentage = capped
		explanation = fmt.Sprintf("%s (Length penalty applied)", explanation)
	}

	percentage = clamp(percentage, 0, 100)
	oracleScore := rawScore

	return Outcome{
		ComputedMarks: clamp(percentage/100*input.MaxMarks, 0, input.MaxMarks),
		OracleScore:   &oracleScore,
		Explanation:   explanation,
		Details: map[string]interface{}{
			"oracle_score":     rawScore,
			"final_percentage": percentage,
			"model_name":       outcome.Model,
			"attempts":         outcome.Attempts,
		},
	}, nil
}

// lengthCap bounds the achievable percentage for answers much shorter than
// the reference: under 5% of the reference length the answer can reach at
// most 30%, under 15% at most 50%, under 25% at most 70%.
func lengthCap(studentLen, referenceLen int) float64 {
	if referenceLen == 0 {
		return 100
	}

	ratio := float64(studentLen) / float64(referenceLen) * 100
	switch {
	case ratio < 5:
		return 30
	case ratio < 15:
		return 50
	case ratio < 25:
		return 70
	default:
		return 100
	}
}
