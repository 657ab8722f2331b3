package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// FieldID and FieldDate are generated on save and take precedence over
	// payload fields with the same name.
	FieldID   = "id"
	FieldDate = "date"

	// DateLayout is ISO-8601 in UTC with millisecond precision.
	DateLayout = "2006-01-02T15:04:05.000Z"
)

// QuizResult is one stored outcome of a quiz attempt. The payload is opaque to
// the storefront; it is stored flat next to the generated fields.
type QuizResult struct {
	// ID is the save time in milliseconds since the Unix epoch.
	ID int64
	// Date is the save time formatted with DateLayout.
	Date    string
	Payload map[string]json.RawMessage
}

// NewQuizResult decorates payload with the identifier and date derived from now.
func NewQuizResult(payload map[string]json.RawMessage, now time.Time) QuizResult {
	p := make(map[string]json.RawMessage, len(payload))
	for k, v := range payload {
		if k == FieldID || k == FieldDate {
			continue
		}
		p[k] = v
	}

	return QuizResult{
		ID:      now.UnixMilli(),
		Date:    now.UTC().Format(DateLayout),
		Payload: p,
	}
}

// Time parses Date.
func (r QuizResult) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.Date)
}

func (r QuizResult) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Payload)+2)
	for k, v := range r.Payload {
		m[k] = v
	}
	m[FieldID] = r.ID
	m[FieldDate] = r.Date

	return json.Marshal(m)
}

func (r *QuizResult) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	*r = QuizResult{Payload: m}

	if raw, ok := m[FieldID]; ok {
		if err := json.Unmarshal(raw, &r.ID); err != nil {
			return fmt.Errorf("quiz result %s: %w", FieldID, err)
		}
		delete(m, FieldID)
	}

	if raw, ok := m[FieldDate]; ok {
		if err := json.Unmarshal(raw, &r.Date); err != nil {
			return fmt.Errorf("quiz result %s: %w", FieldDate, err)
		}
		delete(m, FieldDate)
	}

	return nil
}

// QuizResultSummary is a read-side view of a user's quiz results.
type QuizResultSummary struct {
	Count int    `json:"count"`
	Last  string `json:"last,omitempty"`
	// Scored counts results carrying a numeric "score" field.
	Scored       int             `json:"scored"`
	AverageScore decimal.Decimal `json:"average_score"`
}

// QuizTaker is a user with at least one saved quiz result.
type QuizTaker struct {
	UserID string `json:"user_id"`
	// LastResultID is the ID of the user's most recent result.
	LastResultID int64 `json:"last_result_id"`
}
