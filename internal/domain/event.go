package domain

const (
	EventNameQuizResultSaved = "quiz_result.saved"
)

type EventQuizResultSaved struct {
	UserID string
	Result QuizResult
}

func (EventQuizResultSaved) Name() string { return EventNameQuizResultSaved }
