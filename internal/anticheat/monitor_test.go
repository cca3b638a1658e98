package anticheat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/grading"
	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

type recorder struct {
	mu  sync.Mutex
	got []sheets.Violation
	err error
}

func (r *recorder) ReportViolation(_ context.Context, v sheets.Violation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, v)
	return r.err
}

type countingSubmitter struct {
	mu sync.Mutex
	n  int
}

func (s *countingSubmitter) SubmitQuiz(context.Context, sheets.Submission) (*sheets.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return &sheets.QuizResult{}, nil
}

func startQuiz(t *testing.T, sub quiz.Submitter, id *sheets.Identity, hooks ...quiz.FinishHook) *quiz.Controller {
	t.Helper()
	var opts []quiz.Option
	for _, h := range hooks {
		opts = append(opts, quiz.WithFinishHook(h))
	}
	c := quiz.NewController(grading.NewEngine(), sub, opts...)
	qs := []exam.Question{{ID: "1", Type: exam.TypeMultipleChoice, AnswerKey: "A"}, {ID: "2", Type: exam.TypeMultipleChoice, AnswerKey: "B"}}
	require.NoError(t, c.Start(qs, quiz.StartOptions{Meta: quiz.Meta{Grade: 10, Topic: "Hàm số", Level: 2}, Identity: id}))
	return c
}

func TestAutoSubmitExactlyOnce(t *testing.T) {
	finishes := 0
	sub := &countingSubmitter{}
	c := startQuiz(t, sub, &sheets.Identity{Email: "an@school.vn", Token: "t"}, func(_ context.Context, o quiz.Outcome) {
		finishes++
		assert.Equal(t, quiz.ReasonCheatTab, o.Snapshot.Reason)
	})
	rec := &recorder{}
	m := New(c, rec, 1, WithClock(func() time.Time { return time.UnixMilli(1700000000000) }))

	n, forced := m.Visibility(context.Background(), true)
	assert.Equal(t, 1, n)
	assert.True(t, forced)

	for i := 0; i < 3; i++ {
		_, forced = m.Visibility(context.Background(), true)
		assert.False(t, forced)
	}
	m.Wait()

	assert.Equal(t, 1, finishes)
	assert.Equal(t, 1, sub.n)
	assert.Equal(t, quiz.Complete, c.State())
	assert.Equal(t, 1, c.Snapshot().TabSwitchCount)

	require.Len(t, rec.got, 1)
	v := rec.got[0]
	assert.Equal(t, "cheat_tab", v.Type)
	assert.Equal(t, "an@school.vn", v.Email)
	assert.Equal(t, true, v.Details["hidden"])
	assert.EqualValues(t, 1700000000000, v.Details["at"])
	assert.Equal(t, sheets.QuizInfo{Topic: "Hàm số", Grade: 10, Level: 2, QIndex: 0}, v.QuizInfo)
}

func TestLimitIsPolicy(t *testing.T) {
	c := startQuiz(t, &countingSubmitter{}, nil)
	m := New(c, &recorder{}, 3)

	_, forced := m.Visibility(context.Background(), true)
	assert.False(t, forced)
	_, forced = m.Visibility(context.Background(), false)
	assert.False(t, forced)
	_, forced = m.Visibility(context.Background(), true)
	assert.False(t, forced)
	assert.Equal(t, quiz.InProgress, c.State())

	n, forced := m.Visibility(context.Background(), true)
	assert.Equal(t, 3, n)
	assert.True(t, forced)
	assert.Equal(t, quiz.Complete, c.State())
}

func TestAnonymousQuizIsNotReported(t *testing.T) {
	c := startQuiz(t, &countingSubmitter{}, nil)
	rec := &recorder{}
	var observed []sheets.Violation
	m := New(c, rec, 1, WithObserver(func(v sheets.Violation) { observed = append(observed, v) }))

	_, forced := m.Visibility(context.Background(), true)
	m.Wait()
	assert.True(t, forced)
	assert.Empty(t, rec.got)
	assert.Len(t, observed, 1)
}

func TestReportFailureIsSwallowed(t *testing.T) {
	c := startQuiz(t, &countingSubmitter{}, &sheets.Identity{Email: "a"})
	m := New(c, &recorder{err: errors.New("offline")}, 2)

	n, forced := m.Visibility(context.Background(), true)
	m.Wait()
	assert.Equal(t, 1, n)
	assert.False(t, forced)
	assert.Equal(t, quiz.InProgress, c.State())
}

func TestIgnoredOutsideQuiz(t *testing.T) {
	c := quiz.NewController(grading.NewEngine(), &countingSubmitter{})
	rec := &recorder{}
	m := New(c, rec, 1)
	n, forced := m.Visibility(context.Background(), true)
	m.Wait()
	assert.Equal(t, 0, n)
	assert.False(t, forced)
	assert.Empty(t, rec.got)
}

func TestVisibleReportsCurrentCount(t *testing.T) {
	c := startQuiz(t, &countingSubmitter{}, nil)
	m := New(c, &recorder{}, 3)

	n, _ := m.Visibility(context.Background(), false)
	assert.Equal(t, 0, n)

	_, _ = m.Visibility(context.Background(), true)
	_, _ = m.Visibility(context.Background(), true)
	n, forced := m.Visibility(context.Background(), false)
	assert.Equal(t, 2, n)
	assert.False(t, forced)
	assert.Equal(t, quiz.InProgress, c.State())
}
