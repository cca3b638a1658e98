// Package sheets is the typed client for the Apps Script backend actions. It
// sits on top of the gateway transport and owns payload shapes only.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/gateway"
)

// ErrMalformedExam is returned when an exam object is missing or has no
// question array.
var ErrMalformedExam = errors.New("exam payload missing or has no question list")

// Transport is the subset of *gateway.Client the typed client needs.
type Transport interface {
	Call(ctx context.Context, action string, payload, out any) error
	CallWithRetry(ctx context.Context, action string, payload, out any) error
	Post(ctx context.Context, action string, body, out any) error
}

var _ Transport = (*gateway.Client)(nil)

type Client struct {
	t Transport
}

func New(t Transport) *Client { return &Client{t: t} }

// ---- auth ----

func (c *Client) Login(ctx context.Context, email, password, deviceID string) (*LoginResult, error) {
	var out LoginResult
	err := c.t.Call(ctx, "login", map[string]any{
		"email":    strings.ToLower(strings.TrimSpace(email)),
		"password": password,
		"deviceId": deviceID,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.SessionToken == "" {
		return nil, errors.New("login: backend returned no session token")
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, id Identity) error {
	return c.t.Call(ctx, "logout", identityPayload(id), nil)
}

// Heartbeat maps transport failures to a valid verdict and any other failure
// to session_conflict.
func (c *Client) Heartbeat(ctx context.Context, id Identity) SessionValidation {
	var out SessionValidation
	err := c.t.Call(ctx, "heartbeat", identityPayload(id), &out)
	switch {
	case err == nil:
		return out
	case errors.Is(err, gateway.ErrTransport):
		return SessionValidation{Valid: true}
	default:
		return SessionValidation{Valid: false, Reason: ReasonSessionConflict}
	}
}

func (c *Client) ValidateSession(ctx context.Context, id Identity) SessionValidation {
	var out SessionValidation
	if err := c.t.Call(ctx, "validateSession", identityPayload(id), &out); err != nil {
		return SessionValidation{Valid: false, Reason: ReasonInvalidToken}
	}
	return out
}

// ---- practice ----

func (c *Client) Topics(ctx context.Context, grade int) ([]string, error) {
	var out []string
	if err := c.t.CallWithRetry(ctx, "getTopics", map[string]any{"grade": grade}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Questions(ctx context.Context, grade int, topic string, level int) ([]exam.Question, error) {
	var out []exam.Question
	err := c.t.CallWithRetry(ctx, "getQuestions", map[string]any{"grade": grade, "topic": topic, "level": level}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Theory returns nil without error when no theory exists for the level.
func (c *Client) Theory(ctx context.Context, grade int, topic string, level int) (*exam.Theory, error) {
	var out *exam.Theory
	if err := c.t.Call(ctx, "getTheory", map[string]any{"grade": grade, "topic": topic, "level": level}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserProgress(ctx context.Context, email string) (*UserProgress, error) {
	var out *UserProgress
	if err := c.t.Call(ctx, "getUserProgress", map[string]any{"email": email}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitQuiz(ctx context.Context, s Submission) (*QuizResult, error) {
	if s.Violations == nil {
		s.Violations = []ViolationMark{}
	}
	var out *QuizResult
	if err := c.t.Call(ctx, "submitQuiz", s, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("submitQuiz: empty result")
	}
	return out, nil
}

func (c *Client) ReportViolation(ctx context.Context, v Violation) error {
	return c.t.Call(ctx, "reportViolation", v, nil)
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []LeaderboardEntry
	if err := c.t.Call(ctx, "getLeaderboard", map[string]any{"limit": limit}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ExamByLink(ctx context.Context, examID string) (*exam.Exam, error) {
	var raw json.RawMessage
	if err := c.t.Call(ctx, "getExamByLink", map[string]any{"examId": strings.TrimSpace(examID)}, &raw); err != nil {
		return nil, err
	}
	ex, err := decodeExam(raw)
	if err != nil {
		return nil, err
	}
	if ex.ExamID == "" {
		ex.ExamID = strings.TrimSpace(examID)
	}
	return ex, nil
}

// ---- assignments ----

func (c *Client) AssignedExams(ctx context.Context, email string) ([]AssignedExam, error) {
	var out []AssignedExam
	if err := c.t.CallWithRetry(ctx, "getAssignedExamsForStudent", map[string]any{"email": email}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartAssignmentAttempt(ctx context.Context, id Identity, assignmentID string) (*StartedAttempt, error) {
	var w startAttemptWire
	err := c.t.Call(ctx, "startAssignmentAttempt", map[string]any{
		"assignmentId": assignmentID,
		"email":        id.Email,
		"sessionToken": id.Token,
	}, &w)
	if err != nil {
		return nil, err
	}
	ex, err := decodeExam(w.Exam)
	if err != nil {
		return nil, err
	}

	sa := &StartedAttempt{
		AttemptID:    w.AttemptID,
		AssignmentID: firstNonEmpty(w.AssignmentID, assignmentID),
		ExamID:       firstNonEmpty(w.ExamID, ex.ExamID),
		StartedAt:    w.StartedAt,
		ExamTitle:    ex.Title,
		Exam:         *ex,
	}
	sa.DurationMinutes = w.DurationMinutes.Int()
	if a := w.Assignment; a != nil {
		if d := firstPositive(a.DurationMinutes.Int(), a.DurationMinutes2.Int()); d > 0 {
			sa.DurationMinutes = d
		}
		sa.MaxAttempts = firstPositive(a.MaxAttempts.Int(), a.MaxAttempts2.Int())
		sa.ExamTitle = firstNonEmpty(a.ExamTitle, ex.Title)
	}
	return sa, nil
}

func (c *Client) AssignmentAttempts(ctx context.Context, assignmentID, email string) ([]AssignmentAttempt, error) {
	var out []AssignmentAttempt
	err := c.t.Call(ctx, "getAssignmentAttempts", map[string]any{"assignmentId": assignmentID, "email": email}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AssignmentDetail is passed through untyped; its shape varies by backend
// version.
func (c *Client) AssignmentDetail(ctx context.Context, assignmentID, email string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.t.Call(ctx, "getAssignmentDetail", map[string]any{"assignmentId": assignmentID, "email": email}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---- teacher ----

func (c *Client) AllQuestions(ctx context.Context) ([]exam.Question, error) {
	var out []exam.Question
	if err := c.t.Call(ctx, "getAllQuestions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveQuestion(ctx context.Context, q exam.Question) error {
	return c.t.Post(ctx, "saveQuestion", q, nil)
}

func (c *Client) DeleteQuestion(ctx context.Context, questionID string) error {
	return c.t.Call(ctx, "deleteQuestion", map[string]any{"exam_id": questionID}, nil)
}

func (c *Client) AllTheories(ctx context.Context) ([]exam.Theory, error) {
	var out []exam.Theory
	if err := c.t.Call(ctx, "getAllTheories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveTheory(ctx context.Context, th exam.Theory) error {
	return c.t.Post(ctx, "saveTheory", th, nil)
}

func (c *Client) DeleteTheory(ctx context.Context, theoryID string) error {
	return c.t.Call(ctx, "deleteTheory", map[string]any{"theoryId": theoryID}, nil)
}

func (c *Client) CreateInstantExam(ctx context.Context, title string, grade int, qs []exam.Question) (*CreatedExam, error) {
	var out CreatedExam
	err := c.t.Post(ctx, "createInstantExam", map[string]any{"title": title, "grade": grade, "questions": qs}, &out)
	if err != nil {
		return nil, err
	}
	if out.ExamID == "" {
		return nil, errors.New("createInstantExam: backend returned no examId")
	}
	return &out, nil
}

func (c *Client) AllStudents(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.t.Call(ctx, "getAllStudents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StudentDetail(ctx context.Context, email string) (*StudentDetail, error) {
	var out *StudentDetail
	if err := c.t.Call(ctx, "getStudentDetail", map[string]any{"email": email}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResultDetail(ctx context.Context, resultID string) (*ResultDetail, error) {
	var out *ResultDetail
	if err := c.t.Call(ctx, "getResultDetail", map[string]any{"resultId": resultID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AssignExamToClass(ctx context.Context, req AssignRequest) (*Assigned, error) {
	var out Assigned
	if err := c.t.Call(ctx, "assignExamToClass", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AssignmentsByClass(ctx context.Context, className string, grade int) ([]Assignment, error) {
	payload := map[string]any{"className": className}
	if grade > 0 {
		payload["grade"] = grade
	}
	var out []Assignment
	if err := c.t.CallWithRetry(ctx, "getAssignmentsByClass", payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- helpers ----

func identityPayload(id Identity) map[string]any {
	return map[string]any{"email": id.Email, "sessionToken": id.Token}
}

// decodeExam requires an object whose "questions" field is a JSON array.
func decodeExam(raw json.RawMessage) (*exam.Exam, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrMalformedExam
	}
	var probe struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, ErrMalformedExam
	}
	if q := bytes.TrimSpace(probe.Questions); len(q) == 0 || q[0] != '[' {
		return nil, ErrMalformedExam
	}
	var ex exam.Exam
	if err := json.Unmarshal(raw, &ex); err != nil {
		return nil, errors.Join(ErrMalformedExam, err)
	}
	if ex.Questions == nil {
		ex.Questions = []exam.Question{}
	}
	return &ex, nil
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x != "" {
			return x
		}
	}
	return ""
}

func firstPositive(xs ...int) int {
	for _, x := range xs {
		if x > 0 {
			return x
		}
	}
	return 0
}
