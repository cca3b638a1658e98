package desk

import (
	"context"
	"strings"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/tutor"
)

// Chat asks the tutor about the current question. Hint levels are scoped to
// the live quiz and reset when a new one starts.
func (d *Desk) Chat(ctx context.Context, msg string) tutor.Reply {
	if d.tutor == nil || strings.TrimSpace(msg) == "" {
		return tutor.Reply{Message: tutor.FallbackMessage}
	}
	return d.tutor.Ask(ctx, d.hints, msg, d.questionContext())
}

func (d *Desk) questionContext() *tutor.QuestionContext {
	snap := d.quiz.Snapshot()
	d.mu.Lock()
	qc := &tutor.QuestionContext{Grade: d.grade, Topic: d.topic, Level: 1}
	d.mu.Unlock()
	if len(snap.Questions) == 0 {
		return qc
	}
	qc.Grade, qc.Topic, qc.Level = snap.Meta.Grade, snap.Meta.Topic, snap.Meta.Level

	q := snap.Questions[snap.CurrentIndex]
	qc.QuestionID = q.ID
	qc.QuestionText = q.Text
	qc.QuestionType = string(q.Kind())
	qc.CorrectAnswer = q.AnswerKey
	if q.Kind() != exam.TypeShortAnswer {
		opts := q.Options()
		qc.Options = opts[:]
	}
	if a := snap.Answer(snap.CurrentIndex); a != nil {
		qc.UserAnswer = a.Wire()
	}
	return qc
}
