package grading

import (
	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
)

// Strategy decides whether a response matches the answer key for one
// question type. Responses are in wire form ("B", "Đ-S-Đ-S", free text).
type Strategy interface {
	Correct(key, response string) bool
}

// Mark is the outcome for one question.
type Mark struct {
	QuestionID string
	Response   string
	Correct    bool
}

// Engine routes by question type to the correct Strategy.
type Engine struct {
	strategies map[exam.QuestionType]Strategy
}

type Option func(*Engine)

// WithStrategy installs or replaces the strategy for a question type.
func WithStrategy(t exam.QuestionType, s Strategy) Option {
	return func(e *Engine) { e.strategies[t] = s }
}

// NewEngine installs built-in strategies.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		strategies: map[exam.QuestionType]Strategy{
			exam.TypeMultipleChoice: exactStrategy{},
			exam.TypeTrueFalse:      exactStrategy{},
			exam.TypeShortAnswer:    foldStrategy{},
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Grade scores one response. Unanswered questions and unknown types are
// incorrect.
func (e *Engine) Grade(q exam.Question, response string, answered bool) bool {
	if !answered || isBlank(response) {
		return false
	}
	s, ok := e.strategies[q.Kind()]
	if !ok {
		return false
	}
	return s.Correct(q.AnswerKey, response)
}

// Score grades every question. responses[i] is ignored when answered[i] is
// false; both slices must be as long as qs.
func (e *Engine) Score(qs []exam.Question, responses []string, answered []bool) (int, []Mark) {
	correct := 0
	marks := make([]Mark, len(qs))
	for i, q := range qs {
		ok := e.Grade(q, responses[i], answered[i])
		if ok {
			correct++
		}
		marks[i] = Mark{QuestionID: q.ID, Response: responses[i], Correct: ok}
	}
	return correct, marks
}

// --- Strategies ---

// exactStrategy is used for single-letter choices and the four-slot
// true/false form; partial clause matches score nothing.
type exactStrategy struct{}

func (exactStrategy) Correct(key, response string) bool {
	return response == key
}

// foldStrategy compares trimmed, lower-cased text. No numeric normalization:
// "12.5" and "12,5" differ.
type foldStrategy struct{}

func (foldStrategy) Correct(key, response string) bool {
	return fold(response) == fold(key)
}
