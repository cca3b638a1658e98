package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quizdesk/internal/admin"
	authmw "github.com/mind-engage/mindengage-quizdesk/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quizdesk/internal/db"
	"github.com/mind-engage/mindengage-quizdesk/internal/desk"
	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/gateway"
	"github.com/mind-engage/mindengage-quizdesk/internal/grading"
	"github.com/mind-engage/mindengage-quizdesk/internal/session"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets/sheetstest"
	"github.com/mind-engage/mindengage-quizdesk/internal/storage"
	syncx "github.com/mind-engage/mindengage-quizdesk/internal/sync"
)

type env struct {
	srv  *httptest.Server
	fake *sheetstest.Fake
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fake := sheetstest.New()
	api := sheets.New(fake)

	st, err := session.NewStore(session.NewMemKV(), "test-secret", nil)
	require.NoError(t, err)
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	events := syncx.NewEventRepo(dbh, "dev-test")

	d := desk.New(desk.Deps{
		API:     api,
		Store:   st,
		Grader:  grading.NewEngine(),
		Journal: events,
	}, desk.Config{TabSwitchLimit: 1})

	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	s := &Server{
		Desk:        d,
		Admin:       admin.New(api, "http://localhost:3000/", admin.WithBlobStore(blobs), admin.WithClock(func() time.Time { return now })),
		Auth:        authmw.NewAuthService("test-hmac"),
		Blobs:       blobs,
		Events:      events,
		EnableGuest: true,
	}
	r := chi.NewRouter()
	s.Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &env{srv: srv, fake: fake}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func (e *env) login(t *testing.T, role string) string {
	t.Helper()
	e.fake.Reply("login", map[string]any{
		"user":         map[string]any{"email": "an@school.vn", "name": "An", "class": "6A1", "role": role},
		"sessionToken": "tok-1",
	})
	res := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "an@school.vn", "password": "pw"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	body := decode[struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}](t, res)
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func (e *env) guest(t *testing.T) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/auth/guest", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	return decode[struct {
		AccessToken string `json:"access_token"`
	}](t, res).AccessToken
}

func threeQuestions() []exam.Question {
	qs := make([]exam.Question, 3)
	for i := range qs {
		qs[i] = exam.Question{
			ID: fmt.Sprintf("Q%d", i+1), Level: "Nhận biết", Type: exam.TypeMultipleChoice,
			Text: "Câu hỏi", OptionA: "1", OptionB: "2", AnswerKey: "A", Topic: "Số học", Grade: 6,
		}
	}
	return qs
}

func TestLoginAndState(t *testing.T) {
	e := newEnv(t)

	res := e.do(t, http.MethodGet, "/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	tok := e.login(t, "student")
	res = e.do(t, http.MethodGet, "/state", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	st := decode[desk.Status](t, res)
	assert.Equal(t, desk.ViewDashboard, st.View)
	require.NotNil(t, st.User)
	assert.Equal(t, "an@school.vn", st.User.Email)

	e.fake.Reply("getAssignmentDetail", map[string]any{"assignmentId": "AS1", "examTitle": "Kiểm tra 15 phút"})
	res = e.do(t, http.MethodGet, "/assignments/AS1", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "AS1", decode[map[string]any](t, res)["assignmentId"])
	res = e.do(t, http.MethodGet, "/assignments/NOPE/attempts", tok, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = e.do(t, http.MethodPost, "/auth/logout", tok, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res = e.do(t, http.MethodGet, "/assignments/", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLoginErrors(t *testing.T) {
	e := newEnv(t)

	e.fake.Fail("login", &gateway.RemoteError{Action: "login", Message: "Sai email hoặc mật khẩu"})
	res := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.vn", "password": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "Sai email hoặc mật khẩu", decode[errorBody](t, res).Error)

	e.fake.Fail("login", fmt.Errorf("%w: dial tcp", gateway.ErrTransport))
	res = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.vn", "password": "x"})
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.NotContains(t, decode[errorBody](t, res).Error, "dial")

	res = e.do(t, http.MethodPost, "/auth/login", "", "{")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGuestInstantExam(t *testing.T) {
	e := newEnv(t)
	e.fake.Reply("getExamByLink", map[string]any{"examId": "EX1", "title": "Đề 101", "grade": 6, "questions": threeQuestions()})
	tok := e.guest(t)

	res := e.do(t, http.MethodGet, "/practice/topics", tok, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res = e.do(t, http.MethodPost, "/admin/open", tok, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = e.do(t, http.MethodPost, "/exams/EX1/start", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = e.do(t, http.MethodPut, "/quiz/answers/0", tok, `{"kind":"mc","choice":"a"}`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res = e.do(t, http.MethodPut, "/quiz/answers/7", tok, `{"kind":"mc","choice":"A"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = e.do(t, http.MethodPut, "/quiz/answer", tok, `{"kind":"mc","choice":"E"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = e.do(t, http.MethodPost, "/quiz/jump/2", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 2, decode[map[string]int](t, res)["currentIndex"])
	res = e.do(t, http.MethodPost, "/quiz/next", tok, nil)
	assert.Equal(t, 2, decode[map[string]int](t, res)["currentIndex"])

	res = e.do(t, http.MethodPost, "/quiz/exit", tok, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = e.do(t, http.MethodPost, "/quiz/finish", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[struct {
		Result      sheets.QuizResult `json:"result"`
		SubmitError string            `json:"submitError"`
	}](t, res)
	assert.Equal(t, 33, out.Result.Percentage.Int())
	assert.Empty(t, out.SubmitError)

	res = e.do(t, http.MethodPost, "/quiz/exit", tok, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res = e.do(t, http.MethodPost, "/quiz/finish", tok, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestTabSwitchFinishesQuiz(t *testing.T) {
	e := newEnv(t)
	e.fake.Reply("getExamByLink", map[string]any{"examId": "EX1", "title": "Đề 101", "questions": threeQuestions()})
	tok := e.guest(t)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/exams/EX1/start", tok, nil).StatusCode)

	res := e.do(t, http.MethodPost, "/quiz/visibility", tok, map[string]bool{"hidden": true})
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[struct {
		Count    int  `json:"tabSwitchCount"`
		Finished bool `json:"finished"`
	}](t, res)
	assert.Equal(t, 1, out.Count)
	assert.True(t, out.Finished)

	res = e.do(t, http.MethodGet, "/state", tok, nil)
	assert.Equal(t, desk.ViewResult, decode[desk.Status](t, res).View)
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)
	tok := e.login(t, "teacher")

	res := e.do(t, http.MethodPost, "/admin/open", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, desk.ViewAdminPanel, decode[desk.Status](t, res).View)

	res = e.do(t, http.MethodPost, "/admin/questions", tok, map[string]any{"question_type": "Trắc nghiệm"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.NotEmpty(t, decode[errorBody](t, res).Fields)
	assert.Empty(t, e.fake.Calls("saveQuestion"))

	res = e.do(t, http.MethodPost, "/admin/assignments", tok, map[string]any{"examId": "EX1", "className": "6A1"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	calls := e.fake.Calls("assignExamToClass")
	require.Len(t, calls, 1)
	assert.Equal(t, "an@school.vn", calls[0].Payload["assignedBy"])
	assert.Equal(t, float64(admin.DefaultDurationMinutes), calls[0].Payload["durationMinutes"])

	res = e.do(t, http.MethodGet, "/admin/assignments", tok, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	e.fake.Reply("getAllStudents", []sheets.User{{Email: "an@s.vn", Name: "An", Class: "6A1"}})
	res = e.do(t, http.MethodPost, "/admin/export?className=6A1", tok, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	exp := decode[map[string]string](t, res)
	assert.Equal(t, "reports/results-6A1-20261017-093000.xlsx", exp["key"])
	assert.Contains(t, exp["url"], "file://")

	res = e.do(t, http.MethodGet, exp["download"], tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Disposition"), "results-6A1-20261017-093000.xlsx")

	res = e.do(t, http.MethodGet, "/admin/files/reports/missing.xlsx", tok, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = e.do(t, http.MethodGet, "/admin/files?prefix=reports", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[[]storage.Object](t, res), 1)
}

func TestAdminImportUpload(t *testing.T) {
	e := newEnv(t)
	tok := e.login(t, "teacher")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_, err := mw.CreateFormFile("file", "bank.xlsx")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/admin/import", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	// an empty upload is not a workbook
	assert.NotEqual(t, http.StatusOK, res.StatusCode)

	res2 := e.do(t, http.MethodPost, "/admin/import", tok, nil)
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
}

func TestStudentCannotUseAdmin(t *testing.T) {
	e := newEnv(t)
	tok := e.login(t, "student")
	res := e.do(t, http.MethodGet, "/admin/students", tok, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res = e.do(t, http.MethodGet, "/admin/events", tok, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestEventsListedForAdmins(t *testing.T) {
	e := newEnv(t)
	e.fake.Reply("getExamByLink", map[string]any{"examId": "EX1", "title": "Đề 101", "questions": threeQuestions()})
	tok := e.login(t, "admin")
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/exams/EX1/start", tok, nil).StatusCode)

	res := e.do(t, http.MethodGet, "/admin/events", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	evs := decode[[]syncx.Event](t, res)
	require.NotEmpty(t, evs)
	assert.Equal(t, syncx.QuizStarted, evs[len(evs)-1].Type)
}
