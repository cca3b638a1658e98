// Package quiz holds the quiz session state machine: answering, navigation
// and the one-way finish that grades and submits.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/grading"
	"github.com/mind-engage/mindengage-quizdesk/internal/metrics"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

type State string

const (
	NotStarted State = "NOT_STARTED"
	InProgress State = "IN_PROGRESS"
	Complete   State = "COMPLETE"
)

type Reason string

const (
	ReasonNormal        Reason = "normal"
	ReasonCheatTab      Reason = "cheat_tab"
	ReasonCheatConflict Reason = "cheat_conflict"
	ReasonTimeout       Reason = "timeout"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonNormal, ReasonCheatTab, ReasonCheatConflict, ReasonTimeout:
		return true
	}
	return false
}

var (
	ErrNoQuestions = errors.New("quiz has no questions")
	ErrNotActive   = errors.New("quiz is not in progress")
	ErrIndex       = errors.New("question index out of range")
)

// Meta is the practice context used for submission and remediation.
type Meta struct {
	Grade int    `json:"grade"`
	Topic string `json:"topic"`
	Level int    `json:"level"`
}

// Attempt correlates the quiz with a server-side assignment attempt.
type Attempt struct {
	AssignmentID    string `json:"assignmentId"`
	AttemptID       string `json:"attemptId"`
	ExamID          string `json:"examId"`
	StartedAt       string `json:"startedAt"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	MaxAttempts     int    `json:"maxAttempts,omitempty"`
	ExamTitle       string `json:"examTitle,omitempty"`
}

type StartOptions struct {
	Meta     Meta
	Identity *sheets.Identity // nil for anonymous quizzes
	Attempt  *Attempt
}

// Submitter posts a finished quiz to the backend.
type Submitter interface {
	SubmitQuiz(ctx context.Context, s sheets.Submission) (*sheets.QuizResult, error)
}

// Outcome is what Finish produced. Snapshot reflects the completed quiz.
type Outcome struct {
	Result   *sheets.QuizResult
	Snapshot Snapshot
	Remote   bool
}

// FinishHook runs after every completed Finish, outside the controller lock.
type FinishHook func(ctx context.Context, o Outcome)

type Option func(*Controller)

func WithPassThreshold(pct int) Option       { return func(c *Controller) { c.threshold = pct } }
func WithClock(now func() time.Time) Option  { return func(c *Controller) { c.now = now } }
func WithLogger(l logrus.FieldLogger) Option { return func(c *Controller) { c.log = l } }
func WithFinishHook(h FinishHook) Option     { return func(c *Controller) { c.hooks = append(c.hooks, h) } }

// Controller is safe for concurrent use. The isComplete check-and-set in
// Finish happens under the lock, so concurrent finish triggers (manual,
// anti-cheat, timer, heartbeat) grade and submit at most once per quiz.
type Controller struct {
	mu        sync.Mutex
	grader    *grading.Engine
	submit    Submitter
	threshold int
	now       func() time.Time
	log       logrus.FieldLogger
	hooks     []FinishHook

	gen         uint64 // bumped by Start and Reset
	questions   []exam.Question
	index       int
	answers     []Answer
	startTime   time.Time
	endTime     time.Time
	tabSwitches int
	complete    bool
	score       int
	reason      Reason
	meta        Meta
	identity    *sheets.Identity
	attempt     *Attempt
	result      *sheets.QuizResult
}

func NewController(grader *grading.Engine, submit Submitter, opts ...Option) *Controller {
	c := &Controller{
		grader:    grader,
		submit:    submit,
		threshold: 80,
		now:       time.Now,
		log:       logrus.StandardLogger(),
		reason:    ReasonNormal,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start replaces any current quiz. An empty question list leaves state
// untouched.
func (c *Controller) Start(questions []exam.Question, opts StartOptions) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.questions = append([]exam.Question(nil), questions...)
	c.index = 0
	c.answers = make([]Answer, len(questions))
	c.startTime = c.now()
	c.endTime = time.Time{}
	c.tabSwitches = 0
	c.complete = false
	c.score = 0
	c.reason = ReasonNormal
	c.meta = opts.Meta
	if c.meta.Level <= 0 {
		c.meta.Level = 1
	}
	c.identity = nil
	if opts.Identity != nil {
		id := *opts.Identity
		c.identity = &id
	}
	c.attempt = nil
	if opts.Attempt != nil {
		a := *opts.Attempt
		c.attempt = &a
	}
	c.result = nil
	metrics.ActiveQuizzes.Set(1)
	return nil
}

// Reset drops the current quiz (result exit, logout).
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.questions = nil
	c.answers = nil
	c.index = 0
	c.startTime = time.Time{}
	c.endTime = time.Time{}
	c.tabSwitches = 0
	c.complete = false
	c.score = 0
	c.reason = ReasonNormal
	c.meta = Meta{}
	c.identity = nil
	c.attempt = nil
	c.result = nil
	metrics.ActiveQuizzes.Set(0)
}

func (c *Controller) stateLocked() State {
	switch {
	case len(c.questions) == 0:
		return NotStarted
	case c.complete:
		return Complete
	default:
		return InProgress
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) SetAnswer(index int, a Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() != InProgress {
		return ErrNotActive
	}
	if index < 0 || index >= len(c.questions) {
		return fmt.Errorf("%w: %d", ErrIndex, index)
	}
	c.answers[index] = a
	return nil
}

func (c *Controller) SetCurrentAnswer(a Answer) error {
	c.mu.Lock()
	idx := c.index
	c.mu.Unlock()
	return c.SetAnswer(idx, a)
}

func (c *Controller) Next() (int, error)     { return c.Navigate(1) }
func (c *Controller) Previous() (int, error) { return c.Navigate(-1) }

// Navigate moves by direction and clamps to the question range; there is no
// wraparound.
func (c *Controller) Navigate(direction int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() != InProgress {
		return c.index, ErrNotActive
	}
	c.index = clamp(c.index+direction, 0, len(c.questions)-1)
	return c.index, nil
}

// Jump moves directly to a question (the question palette).
func (c *Controller) Jump(index int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() != InProgress {
		return c.index, ErrNotActive
	}
	if index < 0 || index >= len(c.questions) {
		return c.index, fmt.Errorf("%w: %d", ErrIndex, index)
	}
	c.index = index
	return c.index, nil
}

// RecordTabSwitch counts a hidden-transition. ok is false outside
// IN_PROGRESS, where nothing is counted.
func (c *Controller) RecordTabSwitch() (count int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() != InProgress {
		return c.tabSwitches, false
	}
	c.tabSwitches++
	return c.tabSwitches, true
}

func (c *Controller) TabSwitches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tabSwitches
}

// Elapsed is clock based and freezes at endTime once complete.
func (c *Controller) Elapsed(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked(now)
}

func (c *Controller) elapsedLocked(now time.Time) time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	if c.complete {
		now = c.endTime
	}
	if d := now.Sub(c.startTime); d > 0 {
		return d
	}
	return 0
}

// Expired reports whether a timed attempt ran past its duration.
func (c *Controller) Expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() != InProgress || c.attempt == nil || c.attempt.DurationMinutes <= 0 {
		return false
	}
	return c.elapsedLocked(now) >= time.Duration(c.attempt.DurationMinutes)*time.Minute
}

// Finish grades and completes the quiz. It is a no-op (changed=false) when
// the quiz is already complete or has no questions. When the remote
// submission fails the quiz stays complete and the local result is returned
// together with the error.
func (c *Controller) Finish(ctx context.Context, reason Reason) (res *sheets.QuizResult, changed bool, err error) {
	if !reason.Valid() {
		reason = ReasonNormal
	}

	c.mu.Lock()
	if c.complete || len(c.questions) == 0 {
		res = c.result
		c.mu.Unlock()
		return res, false, nil
	}
	c.complete = true
	c.endTime = c.now()
	c.reason = reason

	responses := make([]string, len(c.questions))
	answered := make([]bool, len(c.questions))
	for i, a := range c.answers {
		if a != nil {
			responses[i] = a.Wire()
			answered[i] = true
		}
	}
	correct, marks := c.grader.Score(c.questions, responses, answered)
	c.score = correct
	gen := c.gen
	local := c.localResultLocked(correct, marks)
	var sub *sheets.Submission
	if c.identity != nil {
		s := c.submissionLocked(correct, marks)
		sub = &s
	}
	c.result = local
	c.mu.Unlock()

	metrics.ActiveQuizzes.Set(0)
	metrics.QuizFinishes.WithLabelValues(string(reason)).Inc()
	log := c.log.WithFields(logrus.Fields{"reason": reason, "score": correct, "total": len(marks)})

	remote := false
	res = local
	if sub != nil {
		r, serr := c.submit.SubmitQuiz(ctx, *sub)
		if serr != nil {
			log.WithError(serr).Error("quiz submission failed")
			err = fmt.Errorf("submit quiz: %w", serr)
		} else {
			r.SubmissionReason = string(reason)
			if r.Score == nil {
				v := exam.Num(correct)
				r.Score = &v
			}
			if r.TotalQuestions == nil {
				v := exam.Num(len(marks))
				r.TotalQuestions = &v
			}
			res, remote = r, true
		}
	}

	c.mu.Lock()
	if c.gen == gen {
		c.result = res
	}
	snap := c.snapshotLocked(c.now())
	c.mu.Unlock()
	log.Info("quiz finished")

	out := Outcome{Result: res, Snapshot: snap, Remote: remote}
	for _, h := range c.hooks {
		h(ctx, out)
	}
	return res, true, err
}

func (c *Controller) localResultLocked(correct int, marks []grading.Mark) *sheets.QuizResult {
	total := len(marks)
	pct := int(math.Round(float64(correct) / float64(total) * 100))
	passed := pct >= c.threshold && c.reason == ReasonNormal
	score, tq := exam.Num(correct), exam.Num(total)

	msg := "Kết quả bài thi thử"
	if c.reason != ReasonNormal {
		msg = "Bài thi bị nộp do: " + c.reason.Label()
	}
	email := "guest"
	if c.identity != nil {
		email = c.identity.Email
	}
	return &sheets.QuizResult{
		Email:            email,
		Topic:            c.meta.Topic,
		Grade:            exam.Num(c.meta.Grade),
		Level:            exam.Num(c.meta.Level),
		Score:            &score,
		TotalQuestions:   &tq,
		Percentage:       exam.Num(pct),
		Passed:           passed,
		CanAdvance:       false,
		TimeSpent:        exam.Num(int(c.elapsedLocked(c.endTime).Seconds())),
		SubmissionReason: string(c.reason),
		Message:          msg,
		Answers:          records(marks),
		Timestamp:        c.endTime.UTC().Format(time.RFC3339),
	}
}

func (c *Controller) submissionLocked(correct int, marks []grading.Mark) sheets.Submission {
	s := sheets.Submission{
		Email:            c.identity.Email,
		SessionToken:     c.identity.Token,
		Topic:            c.meta.Topic,
		Grade:            c.meta.Grade,
		Level:            c.meta.Level,
		Score:            correct,
		TotalQuestions:   len(marks),
		Answers:          records(marks),
		TimeSpent:        int(c.elapsedLocked(c.endTime).Seconds()),
		SubmissionReason: string(c.reason),
		Violations:       []sheets.ViolationMark{},
	}
	if c.reason != ReasonNormal {
		s.Violations = append(s.Violations, sheets.ViolationMark{Type: string(c.reason), Timestamp: c.endTime.UnixMilli()})
	}
	if a := c.attempt; a != nil {
		s.AssignmentID = a.AssignmentID
		s.AttemptID = a.AttemptID
		s.ExamID = a.ExamID
		s.StartedAt = a.StartedAt
	}
	return s
}

// Label is the Vietnamese reason shown on the result screen.
func (r Reason) Label() string {
	switch r {
	case ReasonCheatTab:
		return "Chuyển tab"
	case ReasonCheatConflict:
		return "Đa thiết bị"
	case ReasonTimeout:
		return "Hết giờ"
	}
	return string(r)
}

func records(marks []grading.Mark) []sheets.AnswerRecord {
	out := make([]sheets.AnswerRecord, len(marks))
	for i, m := range marks {
		out[i] = sheets.AnswerRecord{QuestionID: m.QuestionID, UserAnswer: m.Response, Correct: m.Correct}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
