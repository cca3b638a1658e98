// Package anticheat approximates "the student left the exam tab" from page
// visibility signals. It is advisory: screenshots, second devices and proxied
// requests are invisible to it.
package anticheat

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/metrics"
	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

const ViolationTabSwitch = "cheat_tab"

// Quiz is the part of the quiz controller the monitor drives.
type Quiz interface {
	RecordTabSwitch() (int, bool)
	TabSwitches() int
	Context() (quiz.Meta, *sheets.Identity, *quiz.Attempt, int)
	Finish(ctx context.Context, reason quiz.Reason) (*sheets.QuizResult, bool, error)
}

type Reporter interface {
	ReportViolation(ctx context.Context, v sheets.Violation) error
}

// Observer is notified of each counted violation (event journal).
type Observer func(v sheets.Violation)

type Monitor struct {
	quiz     Quiz
	reporter Reporter
	limit    int
	now      func() time.Time
	log      logrus.FieldLogger
	observe  Observer

	wg sync.WaitGroup
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option  { return func(m *Monitor) { m.now = now } }
func WithLogger(l logrus.FieldLogger) Option { return func(m *Monitor) { m.log = l } }
func WithObserver(o Observer) Option         { return func(m *Monitor) { m.observe = o } }

// New builds a monitor that auto-finishes once the tab switch count reaches
// limit. A limit below 1 is treated as 1.
func New(q Quiz, r Reporter, limit int, opts ...Option) *Monitor {
	if limit < 1 {
		limit = 1
	}
	m := &Monitor{quiz: q, reporter: r, limit: limit, now: time.Now, log: logrus.StandardLogger()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Visibility handles a page visibility change. Only hidden transitions during
// a live quiz count. It returns the current count and whether this call
// forced the submission.
func (m *Monitor) Visibility(ctx context.Context, hidden bool) (count int, finished bool) {
	if !hidden {
		return m.quiz.TabSwitches(), false
	}
	count, ok := m.quiz.RecordTabSwitch()
	if !ok {
		return count, false
	}
	metrics.Violations.WithLabelValues(ViolationTabSwitch).Inc()

	meta, id, _, qIndex := m.quiz.Context()
	v := sheets.Violation{
		Type:    ViolationTabSwitch,
		Details: map[string]any{"hidden": true, "at": m.now().UnixMilli()},
		QuizInfo: sheets.QuizInfo{
			Topic:  meta.Topic,
			Grade:  meta.Grade,
			Level:  meta.Level,
			QIndex: qIndex,
		},
	}
	if id != nil {
		v.Email = id.Email
		m.report(v)
	}
	if m.observe != nil {
		m.observe(v)
	}

	m.log.WithFields(logrus.Fields{"count": count, "limit": m.limit}).Warn("tab switch during quiz")
	if count < m.limit {
		return count, false
	}
	// the controller's isComplete guard makes repeated triggers no-ops
	_, changed, err := m.quiz.Finish(ctx, quiz.ReasonCheatTab)
	if err != nil {
		m.log.WithError(err).Warn("forced submission could not reach the backend")
	}
	return count, changed
}

// report is fire-and-forget; failures are logged and dropped.
func (m *Monitor) report(v sheets.Violation) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.reporter.ReportViolation(ctx, v); err != nil {
			m.log.WithError(err).Debug("violation report dropped")
		}
	}()
}

// Wait blocks until in-flight reports are done.
func (m *Monitor) Wait() { m.wg.Wait() }
