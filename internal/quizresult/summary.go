package quizresult

import (
	"bytes"

	"github.com/shopspring/decimal"

	"github.com/victornm/storefront/internal/domain"
)

const scoreField = "score"

// Summarize computes the summary shown next to a user's results. Only results
// whose payload has a numeric "score" contribute to the average.
func Summarize(results []domain.QuizResult) domain.QuizResultSummary {
	sum := domain.QuizResultSummary{
		Count:        len(results),
		AverageScore: decimal.Zero,
	}

	if len(results) == 0 {
		return sum
	}
	sum.Last = results[len(results)-1].Date

	total := decimal.Zero
	for _, r := range results {
		raw, ok := r.Payload[scoreField]
		if !ok {
			continue
		}

		d, err := decimal.NewFromString(string(bytes.TrimSpace(raw)))
		if err != nil {
			continue
		}

		total = total.Add(d)
		sum.Scored++
	}

	if sum.Scored > 0 {
		sum.AverageScore = total.DivRound(decimal.NewFromInt(int64(sum.Scored)), 2)
	}

	return sum
}
