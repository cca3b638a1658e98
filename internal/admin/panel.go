// Package admin is the teacher panel: question and theory banks, exam
// generation, class assignments and student progress.
package admin

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	"github.com/mind-engage/mindengage-quizdesk/internal/storage"
	"github.com/mind-engage/mindengage-quizdesk/internal/tutor"
)

// Assignment defaults applied when the teacher leaves a field empty.
const (
	DefaultDurationMinutes = 45
	DefaultMaxAttempts     = 1
)

var (
	ErrMissingID   = errors.New("id is required")
	ErrNoTutor     = errors.New("AI drafting is not configured")
	ErrNoBlobStore = errors.New("file storage is not configured")
)

type Panel struct {
	api       *sheets.Client
	validate  *validator.Validate
	gen       *exam.Generator
	blobs     storage.BlobStore
	tutor     *tutor.Tutor
	publicURL string
	now       func() time.Time
	log       logrus.FieldLogger
}

type Option func(*Panel)

func WithGenerator(g *exam.Generator) Option   { return func(p *Panel) { p.gen = g } }
func WithBlobStore(b storage.BlobStore) Option { return func(p *Panel) { p.blobs = b } }
func WithTutor(t *tutor.Tutor) Option          { return func(p *Panel) { p.tutor = t } }
func WithClock(now func() time.Time) Option    { return func(p *Panel) { p.now = now } }
func WithLogger(l logrus.FieldLogger) Option   { return func(p *Panel) { p.log = l } }

// New builds a panel. publicURL is the UI address used in shared exam links.
func New(api *sheets.Client, publicURL string, opts ...Option) *Panel {
	p := &Panel{
		api:       api,
		validate:  newValidator(),
		publicURL: publicURL,
		now:       time.Now,
		log:       logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.gen == nil {
		p.gen = exam.NewGenerator(0)
	}
	return p
}

// Link is the share link that opens an instant exam.
func (p *Panel) Link(examID string) string {
	base := p.publicURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return base + "?examId=" + url.QueryEscape(examID)
}

// ---- question bank ----

func (p *Panel) Questions(ctx context.Context) ([]exam.Question, error) {
	return p.api.AllQuestions(ctx)
}

func (p *Panel) SaveQuestion(ctx context.Context, q exam.Question) error {
	q.Type = q.Kind()
	q.AnswerKey = strings.TrimSpace(q.AnswerKey)
	if err := p.check(q); err != nil {
		return err
	}
	return p.api.SaveQuestion(ctx, q)
}

func (p *Panel) DeleteQuestion(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return p.api.DeleteQuestion(ctx, strings.TrimSpace(id))
}

// ---- theory bank ----

func (p *Panel) Theories(ctx context.Context) ([]exam.Theory, error) {
	return p.api.AllTheories(ctx)
}

func (p *Panel) SaveTheory(ctx context.Context, th exam.Theory) error {
	if err := p.check(th); err != nil {
		return err
	}
	return p.api.SaveTheory(ctx, th)
}

func (p *Panel) DeleteTheory(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return p.api.DeleteTheory(ctx, strings.TrimSpace(id))
}

// ---- assignments ----

// Assign gives an exam to a class. Zero duration and attempt limits take the
// defaults and an empty openAt means now.
func (p *Panel) Assign(ctx context.Context, req sheets.AssignRequest) (*sheets.Assigned, error) {
	req.ExamID = strings.TrimSpace(req.ExamID)
	req.ClassName = strings.TrimSpace(req.ClassName)
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = DefaultDurationMinutes
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = DefaultMaxAttempts
	}
	if req.OpenAt == "" {
		req.OpenAt = p.now().UTC().Format(time.RFC3339)
	}
	if req.ExamTitle == "" {
		req.ExamTitle = req.ExamID
	}
	if err := p.check(req); err != nil {
		return nil, err
	}
	out, err := p.api.AssignExamToClass(ctx, req)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{"exam": req.ExamID, "class": req.ClassName}).Info("exam assigned")
	return out, nil
}

func (p *Panel) Assignments(ctx context.Context, className string, grade int) ([]sheets.Assignment, error) {
	className = strings.TrimSpace(className)
	if className == "" {
		return nil, &ValidationError{Fields: map[string]string{"className": "is required"}}
	}
	return p.api.AssignmentsByClass(ctx, className, grade)
}

// ---- students ----

func (p *Panel) Students(ctx context.Context) ([]sheets.User, error) {
	return p.api.AllStudents(ctx)
}

func (p *Panel) StudentDetail(ctx context.Context, email string) (*sheets.StudentDetail, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrMissingID
	}
	return p.api.StudentDetail(ctx, email)
}

func (p *Panel) ResultDetail(ctx context.Context, resultID string) (*sheets.ResultDetail, error) {
	if strings.TrimSpace(resultID) == "" {
		return nil, ErrMissingID
	}
	return p.api.ResultDetail(ctx, strings.TrimSpace(resultID))
}

// ---- AI drafts ----

// DraftQuestion asks the tutor model for a question. The draft is returned
// for review and is not saved.
func (p *Panel) DraftQuestion(ctx context.Context, grade int, topic, level string, typ exam.QuestionType, source string) (*exam.Question, error) {
	if p.tutor == nil {
		return nil, ErrNoTutor
	}
	return p.tutor.GenerateQuestion(ctx, grade, topic, level, typ, source)
}

func (p *Panel) DraftTheory(ctx context.Context, grade int, topic string, level int) (*exam.Theory, error) {
	if p.tutor == nil {
		return nil, ErrNoTutor
	}
	return p.tutor.GenerateTheory(ctx, grade, topic, level)
}
