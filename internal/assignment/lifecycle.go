// Package assignment bridges an instructor assignment to a concrete graded
// attempt.
package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

var (
	ErrNotAuthenticated = errors.New("sign in to start an assignment")
	ErrMalformedExam    = sheets.ErrMalformedExam
	// ErrStale marks a response that arrived after the view it was issued
	// for was left. Callers drop it without touching state.
	ErrStale = errors.New("response arrived after the view changed")
)

// Backend is the subset of *sheets.Client used here.
type Backend interface {
	StartAssignmentAttempt(ctx context.Context, id sheets.Identity, assignmentID string) (*sheets.StartedAttempt, error)
	AssignedExams(ctx context.Context, email string) ([]sheets.AssignedExam, error)
	AssignmentAttempts(ctx context.Context, assignmentID, email string) ([]sheets.AssignmentAttempt, error)
	AssignmentDetail(ctx context.Context, assignmentID, email string) (json.RawMessage, error)
}

// Lifecycle tracks the assigned list and the single live attempt. Every
// request is tagged with the epoch at issue time; Invalidate bumps it so
// late responses are discarded.
type Lifecycle struct {
	backend Backend
	log     logrus.FieldLogger

	mu       sync.Mutex
	epoch    uint64
	active   *quiz.Attempt
	assigned []sheets.AssignedExam
}

func New(b Backend, log logrus.FieldLogger) *Lifecycle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Lifecycle{backend: b, log: log}
}

// Epoch returns the current epoch for callers that tag their own requests.
func (l *Lifecycle) Epoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// Invalidate is called on view change and logout.
func (l *Lifecycle) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
}

// StartAttempt asks the backend for a new attempt. On success the attempt
// becomes the active one and the embedded exam is returned; on any failure
// nothing changes.
func (l *Lifecycle) StartAttempt(ctx context.Context, id *sheets.Identity, assignmentID string) (*quiz.Attempt, *exam.Exam, error) {
	if id == nil || id.Email == "" {
		return nil, nil, ErrNotAuthenticated
	}
	epoch := l.Epoch()
	sa, err := l.backend.StartAssignmentAttempt(ctx, *id, assignmentID)
	if err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.epoch != epoch {
		l.log.WithField("assignment", assignmentID).Info("dropping stale attempt response")
		return nil, nil, ErrStale
	}
	a := &quiz.Attempt{
		AssignmentID:    sa.AssignmentID,
		AttemptID:       sa.AttemptID,
		ExamID:          sa.ExamID,
		StartedAt:       sa.StartedAt,
		DurationMinutes: sa.DurationMinutes,
		MaxAttempts:     sa.MaxAttempts,
		ExamTitle:       sa.ExamTitle,
	}
	l.active = a
	ex := sa.Exam
	cp := *a
	return &cp, &ex, nil
}

// Active returns a copy of the live attempt, or nil.
func (l *Lifecycle) Active() *quiz.Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == nil {
		return nil
	}
	a := *l.active
	return &a
}

// ClearActive is called when the result view is left or a non-assignment
// quiz starts.
func (l *Lifecycle) ClearActive() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = nil
}

// Refresh reloads the student's assigned list.
func (l *Lifecycle) Refresh(ctx context.Context, id *sheets.Identity) ([]sheets.AssignedExam, error) {
	if id == nil || id.Email == "" {
		return nil, ErrNotAuthenticated
	}
	epoch := l.Epoch()
	list, err := l.backend.AssignedExams(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.epoch != epoch {
		return nil, ErrStale
	}
	l.assigned = list
	return append([]sheets.AssignedExam(nil), list...), nil
}

// Assigned returns the last loaded list.
func (l *Lifecycle) Assigned() []sheets.AssignedExam {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]sheets.AssignedExam(nil), l.assigned...)
}

func (l *Lifecycle) Attempts(ctx context.Context, id *sheets.Identity, assignmentID string) ([]sheets.AssignmentAttempt, error) {
	if id == nil || id.Email == "" {
		return nil, ErrNotAuthenticated
	}
	return l.backend.AssignmentAttempts(ctx, assignmentID, id.Email)
}

func (l *Lifecycle) Detail(ctx context.Context, id *sheets.Identity, assignmentID string) (json.RawMessage, error) {
	if id == nil || id.Email == "" {
		return nil, ErrNotAuthenticated
	}
	return l.backend.AssignmentDetail(ctx, assignmentID, id.Email)
}

// Reset forgets everything (logout).
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	l.active = nil
	l.assigned = nil
}
