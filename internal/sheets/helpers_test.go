package sheets

import "github.com/mind-engage/mindengage-quizdesk/internal/exam"

func fakeQuestion() exam.Question {
	return exam.Question{
		ID:        "Q1",
		Level:     "Nhận biết",
		Type:      exam.TypeMultipleChoice,
		Text:      "1 + 1 = ?",
		OptionA:   "1",
		OptionB:   "2",
		AnswerKey: "B",
		Topic:     "Số học",
		Grade:     6,
	}
}
