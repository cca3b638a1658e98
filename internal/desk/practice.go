package desk

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/progress"
	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	syncx "github.com/mind-engage/mindengage-quizdesk/internal/sync"
)

// SelectGrade switches the grade and reloads its topics.
func (d *Desk) SelectGrade(ctx context.Context, grade int) ([]string, error) {
	if grade <= 0 {
		grade = defaultGrade
	}
	d.mu.Lock()
	d.grade = grade
	d.topic = ""
	d.mu.Unlock()
	return d.Topics(ctx)
}

// Topics loads the topic list for the selected grade.
func (d *Desk) Topics(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	grade := d.grade
	d.mu.Unlock()
	ts, err := d.api.Topics(ctx, grade)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.grade == grade {
		d.topics = ts
	}
	d.mu.Unlock()
	return ts, nil
}

// SelectTopic opens the level picker and refreshes the unlock map. A failed
// refresh keeps the cached map.
func (d *Desk) SelectTopic(ctx context.Context, topic string) (progress.Map, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrNoTopic
	}
	d.mu.Lock()
	d.topic = topic
	d.theory = nil
	id := d.identityLocked()
	d.mu.Unlock()

	if id != nil {
		up, err := d.api.UserProgress(ctx, id.Email)
		if err != nil {
			d.log.WithError(err).Debug("progress not refreshed")
		} else if up != nil && up.Progress != nil {
			d.mu.Lock()
			d.progress = up.Progress.Clone()
			d.mu.Unlock()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.view = ViewTopicSelect
	return d.progress.Clone(), nil
}

// StartLevel starts a practice quiz for the selected topic. Locked levels and
// empty banks leave state untouched.
func (d *Desk) StartLevel(ctx context.Context, level int) (quiz.Snapshot, error) {
	if level <= 0 {
		level = 1
	}
	d.mu.Lock()
	grade, topic := d.grade, d.topic
	unlocked := d.progress.Unlocked(grade, topic, level)
	threshold := d.threshold
	d.mu.Unlock()
	if topic == "" {
		return quiz.Snapshot{}, ErrNoTopic
	}
	if !unlocked {
		return quiz.Snapshot{}, &progress.LockedError{Level: level, Threshold: threshold}
	}

	qs, err := d.api.Questions(ctx, grade, topic, level)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	if len(qs) == 0 {
		return quiz.Snapshot{}, ErrEmptyBank
	}
	d.attempts.ClearActive()
	return d.startQuiz(ctx, qs, quiz.Meta{Grade: grade, Topic: topic, Level: level}, nil)
}

// InstantExam loads a shared exam by id. It works without signing in; a
// signed-in student's result is submitted as usual.
func (d *Desk) InstantExam(ctx context.Context, examID string) (quiz.Snapshot, error) {
	examID = strings.TrimSpace(examID)
	if examID == "" {
		return quiz.Snapshot{}, ErrEmptyExamRef
	}
	ex, err := d.api.ExamByLink(ctx, examID)
	if err != nil {
		return quiz.Snapshot{}, err
	}
	if len(ex.Questions) == 0 {
		return quiz.Snapshot{}, sheets.ErrMalformedExam
	}
	meta := quiz.Meta{Grade: ex.Grade.Int(), Topic: ex.Title, Level: 1}
	if meta.Grade <= 0 {
		meta.Grade = defaultGrade
	}
	if meta.Topic == "" {
		meta.Topic = "Đề thi"
	}
	d.attempts.ClearActive()
	d.mu.Lock()
	d.grade, d.topic = meta.Grade, meta.Topic
	d.mu.Unlock()
	return d.startQuiz(ctx, ex.Questions, meta, nil)
}

// StartAssignment opens a graded attempt and starts its exam.
func (d *Desk) StartAssignment(ctx context.Context, assignmentID string) (quiz.Snapshot, error) {
	id := d.Identity()
	at, ex, err := d.attempts.StartAttempt(ctx, id, strings.TrimSpace(assignmentID))
	if err != nil {
		return quiz.Snapshot{}, err
	}
	meta := quiz.Meta{Grade: ex.Grade.Int(), Topic: firstNonEmpty(ex.Title, at.ExamTitle, "Đề được giao"), Level: 1}
	d.mu.Lock()
	if meta.Grade <= 0 {
		meta.Grade = d.grade
	}
	d.grade, d.topic = meta.Grade, meta.Topic
	d.mu.Unlock()

	snap, err := d.startQuiz(ctx, ex.Questions, meta, at)
	if err != nil {
		d.attempts.ClearActive()
		return snap, err
	}
	d.record(ctx, syncx.AttemptStarted, at.AttemptID, at)
	if _, err := d.attempts.Refresh(ctx, id); err != nil {
		d.log.WithError(err).Debug("assigned exams not refreshed")
	}
	return snap, nil
}

// startPending runs the queued assignment once a student is signed in.
// Staff accounts keep it queued.
func (d *Desk) startPending(ctx context.Context) {
	d.mu.Lock()
	id := d.pending
	ok := id != "" && d.sess != nil &&
		(d.sess.User.Role == "" || d.sess.User.Role == sheets.RoleStudent)
	if ok {
		d.pending = ""
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	if _, err := d.StartAssignment(ctx, id); err != nil {
		d.log.WithError(err).WithField("assignment", id).Warn("queued assignment did not start")
		d.mu.Lock()
		d.notice = err.Error()
		d.mu.Unlock()
	}
}

func (d *Desk) startQuiz(ctx context.Context, qs []exam.Question, meta quiz.Meta, at *quiz.Attempt) (quiz.Snapshot, error) {
	if err := d.quiz.Start(qs, quiz.StartOptions{Meta: meta, Identity: d.Identity(), Attempt: at}); err != nil {
		return quiz.Snapshot{}, err
	}
	d.hints.Reset()
	d.mu.Lock()
	d.theory = nil
	d.notice = ""
	d.view = ViewQuiz
	d.mu.Unlock()
	d.startClock()

	key := ""
	if at != nil {
		key = at.AttemptID
	}
	d.record(ctx, syncx.QuizStarted, key, map[string]any{
		"grade": meta.Grade, "topic": meta.Topic, "level": meta.Level, "questions": len(qs),
	})
	return d.quiz.Snapshot(), nil
}

// Leaderboard shows the top 20.
func (d *Desk) Leaderboard(ctx context.Context) ([]sheets.LeaderboardEntry, error) {
	list, err := d.api.Leaderboard(ctx, 20)
	if err != nil {
		return nil, err
	}
	d.setView(ViewLeaderboard)
	return list, nil
}

// TheoryReview opens the lesson for a topic level.
func (d *Desk) TheoryReview(ctx context.Context, grade int, topic string, level int) (*exam.Theory, error) {
	th, err := d.api.Theory(ctx, grade, topic, level)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.theory = th
	d.view = ViewTheoryReview
	d.mu.Unlock()
	return th, nil
}

// Assigned reloads the student's assignment list.
func (d *Desk) Assigned(ctx context.Context) ([]sheets.AssignedExam, error) {
	return d.attempts.Refresh(ctx, d.Identity())
}

func (d *Desk) AssignmentAttempts(ctx context.Context, assignmentID string) ([]sheets.AssignmentAttempt, error) {
	return d.attempts.Attempts(ctx, d.Identity(), assignmentID)
}

// AssignmentDetail is the backend's assignment record, passed through as-is.
func (d *Desk) AssignmentDetail(ctx context.Context, assignmentID string) (json.RawMessage, error) {
	return d.attempts.Detail(ctx, d.Identity(), assignmentID)
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if s := strings.TrimSpace(x); s != "" {
			return s
		}
	}
	return ""
}
