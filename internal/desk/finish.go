package desk

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	syncx "github.com/mind-engage/mindengage-quizdesk/internal/sync"
)

// Finish submits the live quiz. The local result is returned together with
// any submission error.
func (d *Desk) Finish(ctx context.Context) (*sheets.QuizResult, error) {
	res, _, err := d.quiz.Finish(ctx, quiz.ReasonNormal)
	return res, err
}

// Visibility forwards a page visibility change to the anti-cheat monitor.
func (d *Desk) Visibility(ctx context.Context, hidden bool) (count int, finished bool) {
	return d.guard.Visibility(ctx, hidden)
}

// ExitResult leaves the result screen: the attempt binding, the quiz and any
// in-flight attempt responses are dropped.
func (d *Desk) ExitResult() error {
	if d.quiz.State() == quiz.InProgress {
		return ErrQuizLive
	}
	d.stopClock()
	d.attempts.ClearActive()
	d.attempts.Invalidate()
	d.quiz.Reset()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.theory = nil
	d.view = ViewLogin
	if d.sess != nil {
		d.view = ViewDashboard
	}
	return nil
}

// onFinish runs once per completed quiz, whatever triggered it.
func (d *Desk) onFinish(ctx context.Context, o quiz.Outcome) {
	d.stopClock()
	d.setView(ViewResult)

	r, meta := o.Result, o.Snapshot.Meta
	key := ""
	if o.Snapshot.Attempt != nil {
		key = o.Snapshot.Attempt.AttemptID
	}
	d.record(ctx, syncx.QuizFinished, key, map[string]any{
		"grade":      meta.Grade,
		"topic":      meta.Topic,
		"level":      meta.Level,
		"reason":     r.SubmissionReason,
		"percentage": r.Percentage,
		"passed":     r.Passed,
		"remote":     o.Remote,
	})

	// remediation lesson when the level was not passed on score
	if !r.Passed && (!o.Remote || r.Percentage.Int() < d.threshold) {
		th, err := d.api.Theory(ctx, meta.Grade, meta.Topic, meta.Level)
		if err != nil {
			d.log.WithError(err).Debug("remediation theory not loaded")
		}
		d.mu.Lock()
		d.theory = th
		d.mu.Unlock()
	}

	if r.Passed && r.CanAdvance {
		d.mu.Lock()
		d.progress.Advance(meta.Grade, meta.Topic, meta.Level)
		if d.sess != nil {
			d.sess.User.Progress = d.progress.Clone()
		}
		d.mu.Unlock()
	}

	if o.Snapshot.Attempt != nil {
		if id := d.Identity(); id != nil {
			if _, err := d.attempts.Refresh(ctx, id); err != nil {
				d.log.WithError(err).Debug("assigned exams not refreshed")
			}
		}
	}
}

func (d *Desk) onViolation(v sheets.Violation) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.record(ctx, syncx.ViolationObserved, "", v)
}
