// Package desk is the view-state orchestrator behind the local API. It owns
// one signed-in session, one quiz controller and the timers that drive it.
package desk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/anticheat"
	"github.com/mind-engage/mindengage-quizdesk/internal/assignment"
	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/grading"
	"github.com/mind-engage/mindengage-quizdesk/internal/progress"
	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/scheduler"
	"github.com/mind-engage/mindengage-quizdesk/internal/session"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	"github.com/mind-engage/mindengage-quizdesk/internal/tutor"
)

type View string

const (
	ViewLogin        View = "LOGIN"
	ViewDashboard    View = "DASHBOARD"
	ViewTopicSelect  View = "TOPIC_SELECT"
	ViewQuiz         View = "QUIZ"
	ViewResult       View = "RESULT"
	ViewLeaderboard  View = "LEADERBOARD"
	ViewTheoryReview View = "THEORY_REVIEW"
	ViewAdminPanel   View = "ADMIN_PANEL"
)

const defaultGrade = 6

var (
	ErrNotSignedIn  = errors.New("not signed in")
	ErrNotStaff     = errors.New("admin panel requires a teacher account")
	ErrEmptyBank    = errors.New("Chưa có câu hỏi cho chuyên đề này.")
	ErrNoTopic      = errors.New("select a topic first")
	ErrQuizLive     = errors.New("finish the quiz before leaving it")
	ErrEmptyExamRef = errors.New("exam id is required")
)

// Journal receives local audit events. It may be nil.
type Journal interface {
	Record(ctx context.Context, typ, key string, data any) error
}

type Deps struct {
	API       *sheets.Client
	Store     *session.Store
	Grader    *grading.Engine
	Tutor     *tutor.Tutor         // nil: chat answers with the fallback
	Scheduler *scheduler.Scheduler // nil: no heartbeat or quiz clock
	Journal   Journal
	Log       logrus.FieldLogger
}

type Config struct {
	TabSwitchLimit    int
	PassThreshold     int
	HeartbeatInterval time.Duration
	ClockInterval     time.Duration
	Now               func() time.Time
}

type Desk struct {
	api      *sheets.Client
	store    *session.Store
	quiz     *quiz.Controller
	guard    *anticheat.Monitor
	attempts *assignment.Lifecycle
	tutor    *tutor.Tutor
	sched    *scheduler.Scheduler
	journal  Journal
	log      logrus.FieldLogger
	now      func() time.Time

	threshold     int
	hbInterval    time.Duration
	clockInterval time.Duration

	mu         sync.Mutex
	view       View
	sess       *session.Session
	deviceID   string
	grade      int
	topic      string
	topics     []string
	progress   progress.Map
	pending    string
	theory     *exam.Theory
	notice     string
	validation *sheets.SessionValidation
	hints      *tutor.Hints
}

func New(deps Deps, cfg Config) *Desk {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = 80
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 60 * time.Second
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = time.Second
	}
	d := &Desk{
		api:           deps.API,
		store:         deps.Store,
		tutor:         deps.Tutor,
		sched:         deps.Scheduler,
		journal:       deps.Journal,
		log:           log,
		now:           now,
		threshold:     cfg.PassThreshold,
		hbInterval:    cfg.HeartbeatInterval,
		clockInterval: cfg.ClockInterval,
		view:          ViewLogin,
		grade:         defaultGrade,
		progress:      progress.Map{},
		hints:         tutor.NewHints(),
	}
	d.quiz = quiz.NewController(deps.Grader, deps.API,
		quiz.WithPassThreshold(cfg.PassThreshold),
		quiz.WithClock(now),
		quiz.WithLogger(log),
		quiz.WithFinishHook(d.onFinish),
	)
	d.guard = anticheat.New(d.quiz, deps.API, cfg.TabSwitchLimit,
		anticheat.WithClock(now),
		anticheat.WithLogger(log),
		anticheat.WithObserver(d.onViolation),
	)
	d.attempts = assignment.New(deps.API, log)
	return d
}

// Quiz exposes the controller for answer and navigation handlers.
func (d *Desk) Quiz() *quiz.Controller { return d.quiz }

// Status is everything the UI needs to render the current view.
type Status struct {
	View       View                      `json:"view"`
	User       *sheets.User              `json:"user,omitempty"`
	DeviceID   string                    `json:"deviceId,omitempty"`
	Grade      int                       `json:"grade"`
	Topic      string                    `json:"topic,omitempty"`
	Topics     []string                  `json:"topics,omitempty"`
	Progress   progress.Map              `json:"progress"`
	Pending    string                    `json:"pendingAssignmentId,omitempty"`
	Assigned   []sheets.AssignedExam     `json:"assigned,omitempty"`
	Attempt    *quiz.Attempt             `json:"activeAttempt,omitempty"`
	Theory     *exam.Theory              `json:"theory,omitempty"`
	Notice     string                    `json:"notice,omitempty"`
	Validation *sheets.SessionValidation `json:"session,omitempty"`
	Quiz       quiz.Snapshot             `json:"quiz"`
}

func (d *Desk) Status() Status {
	snap := d.quiz.Snapshot()
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		View:       d.view,
		DeviceID:   d.deviceID,
		Grade:      d.grade,
		Topic:      d.topic,
		Topics:     append([]string(nil), d.topics...),
		Progress:   d.progress.Clone(),
		Pending:    d.pending,
		Assigned:   d.attempts.Assigned(),
		Attempt:    d.attempts.Active(),
		Theory:     d.theory,
		Notice:     d.notice,
		Validation: d.validation,
		Quiz:       snap,
	}
	if d.sess != nil {
		u := d.sess.User
		st.User = &u
	}
	return st
}

func (d *Desk) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Identity returns the signed-in pair, or nil for guests.
func (d *Desk) Identity() *sheets.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identityLocked()
}

func (d *Desk) identityLocked() *sheets.Identity {
	if d.sess == nil {
		return nil
	}
	id := d.sess.Identity()
	return &id
}

// Boot consumes the URL parameters the UI was opened with. An assignment id
// is queued until a student is signed in; an exam id starts the instant exam
// right away.
func (d *Desk) Boot(ctx context.Context, examID, assignmentID string) error {
	if id := strings.TrimSpace(assignmentID); id != "" {
		d.mu.Lock()
		d.pending = id
		if d.sess == nil {
			d.view = ViewLogin
		}
		d.mu.Unlock()
	}
	if strings.TrimSpace(examID) != "" {
		if _, err := d.InstantExam(ctx, examID); err != nil {
			return err
		}
	}
	d.startPending(ctx)
	return nil
}

// Restore loads the stored session at startup.
func (d *Desk) Restore(ctx context.Context) error {
	dev, err := d.store.DeviceID(ctx)
	if err != nil {
		return err
	}
	sess, err := d.store.Load(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.deviceID = dev
	d.mu.Unlock()
	if sess == nil {
		return nil
	}
	d.signedIn(ctx, *sess)
	d.log.WithField("email", sess.User.Email).Info("session restored")
	return nil
}

func (d *Desk) Login(ctx context.Context, email, password string) (*sheets.User, error) {
	dev, err := d.store.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := d.api.Login(ctx, email, password, dev)
	if err != nil {
		return nil, err
	}
	sess := session.Session{
		User:         res.User,
		SessionToken: res.SessionToken,
		DeviceID:     dev,
		LoginTime:    d.now().UTC().Format(time.RFC3339),
	}
	if err := d.store.Save(ctx, sess); err != nil {
		d.log.WithError(err).Warn("session not persisted")
	}
	d.mu.Lock()
	d.deviceID = dev
	d.mu.Unlock()
	d.signedIn(ctx, sess)
	d.log.WithField("email", sess.User.Email).Info("signed in")
	u := sess.User
	return &u, nil
}

// signedIn installs sess and loads what the dashboard shows.
func (d *Desk) signedIn(ctx context.Context, sess session.Session) {
	d.mu.Lock()
	d.sess = &sess
	d.progress = sess.User.Progress.Clone()
	d.view = ViewDashboard
	d.notice = ""
	d.validation = nil
	d.mu.Unlock()

	d.startHeartbeat()
	if _, err := d.Topics(ctx); err != nil {
		d.log.WithError(err).Debug("topics not loaded")
	}
	if !sess.User.IsStaff() {
		id := sess.Identity()
		if _, err := d.attempts.Refresh(ctx, &id); err != nil {
			d.log.WithError(err).Debug("assigned exams not loaded")
		}
	}
	d.startPending(ctx)
}

// Logout never fails locally: a backend error is logged and local state is
// cleared anyway.
func (d *Desk) Logout(ctx context.Context) {
	d.mu.Lock()
	id := d.identityLocked()
	d.mu.Unlock()
	if id != nil {
		if err := d.api.Logout(ctx, *id); err != nil {
			d.log.WithError(err).Debug("remote logout failed")
		}
	}
	if err := d.store.Clear(ctx); err != nil {
		d.log.WithError(err).Warn("stored session not cleared")
	}
	d.stopTimers()
	d.quiz.Reset()
	d.attempts.Reset()
	d.hints.Reset()

	d.mu.Lock()
	d.sess = nil
	d.view = ViewLogin
	d.topic = ""
	d.topics = nil
	d.progress = progress.Map{}
	d.theory = nil
	d.notice = ""
	d.validation = nil
	d.mu.Unlock()
}

// OpenAdmin switches to the admin panel for staff accounts.
func (d *Desk) OpenAdmin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sess == nil {
		return ErrNotSignedIn
	}
	if !d.sess.User.IsStaff() {
		return ErrNotStaff
	}
	d.view = ViewAdminPanel
	return nil
}

// Home returns to the dashboard (or login for guests) from a non-quiz view.
func (d *Desk) Home() error {
	if d.quiz.State() == quiz.InProgress {
		return ErrQuizLive
	}
	d.attempts.Invalidate()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view = ViewLogin
	if d.sess != nil {
		d.view = ViewDashboard
	}
	return nil
}

func (d *Desk) setView(v View) {
	d.mu.Lock()
	d.view = v
	d.mu.Unlock()
}

func (d *Desk) record(ctx context.Context, typ, key string, data any) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Record(ctx, typ, key, data); err != nil {
		d.log.WithError(err).WithField("event", typ).Debug("journal write failed")
	}
}
