package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
)

func q(t exam.QuestionType, key string) exam.Question {
	return exam.Question{ID: "Q", Type: t, AnswerKey: key}
}

func TestMultipleChoice(t *testing.T) {
	e := NewEngine()
	mc := q(exam.TypeMultipleChoice, "B")

	assert.True(t, e.Grade(mc, "B", true))
	for _, r := range []string{"A", "C", "D", "b", ""} {
		assert.False(t, e.Grade(mc, r, true), r)
	}
	assert.False(t, e.Grade(mc, "B", false))
}

func TestTrueFalseIsAllOrNothing(t *testing.T) {
	e := NewEngine()
	tf := q(exam.TypeTrueFalse, "Đ-S-Đ-S")

	assert.True(t, e.Grade(tf, "Đ-S-Đ-S", true))
	assert.False(t, e.Grade(tf, "Đ-S-Đ-Đ", true))
	assert.False(t, e.Grade(tf, "Đ-S-?-?", true))
	assert.False(t, e.Grade(tf, "S-Đ-S-Đ", true))
}

func TestShortAnswerTrimsAndFolds(t *testing.T) {
	e := NewEngine()
	sa := q(exam.TypeShortAnswer, " 12,5 ")

	for _, r := range []string{"12,5", "12,5 ", " 12,5"} {
		assert.True(t, e.Grade(sa, r, true), r)
	}
	assert.False(t, e.Grade(sa, "12.5", true))

	word := q(exam.TypeShortAnswer, "Parabol")
	assert.True(t, e.Grade(word, "  PARABOL", true))
	assert.False(t, e.Grade(word, "   ", true))
}

func TestUnknownTypeIsIncorrect(t *testing.T) {
	e := NewEngine()
	assert.False(t, e.Grade(q("Tự luận", "x"), "x", true))
}

func TestTypeLabelWhitespaceIgnored(t *testing.T) {
	e := NewEngine()
	assert.True(t, e.Grade(q(" Trắc nghiệm ", "A"), "A", true))
}

type alwaysRight struct{}

func (alwaysRight) Correct(string, string) bool { return true }

func TestWithStrategyOverrides(t *testing.T) {
	e := NewEngine(WithStrategy("Tự luận", alwaysRight{}))
	assert.True(t, e.Grade(q("Tự luận", ""), "anything", true))
}

func TestScore(t *testing.T) {
	e := NewEngine()
	qs := []exam.Question{
		{ID: "1", Type: exam.TypeMultipleChoice, AnswerKey: "A"},
		{ID: "2", Type: exam.TypeTrueFalse, AnswerKey: "Đ-Đ-S-S"},
		{ID: "3", Type: exam.TypeShortAnswer, AnswerKey: "4"},
	}
	n, marks := e.Score(qs, []string{"A", "Đ-Đ-S-S", ""}, []bool{true, true, false})
	assert.Equal(t, 2, n)
	assert.Equal(t, []Mark{
		{QuestionID: "1", Response: "A", Correct: true},
		{QuestionID: "2", Response: "Đ-Đ-S-S", Correct: true},
		{QuestionID: "3", Response: "", Correct: false},
	}, marks)
}
