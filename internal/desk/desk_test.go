package desk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quizdesk/internal/assignment"
	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/gateway"
	"github.com/mind-engage/mindengage-quizdesk/internal/grading"
	"github.com/mind-engage/mindengage-quizdesk/internal/progress"
	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/session"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets/sheetstest"
	syncx "github.com/mind-engage/mindengage-quizdesk/internal/sync"
	"github.com/mind-engage/mindengage-quizdesk/internal/tutor"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memJournal struct {
	mu    sync.Mutex
	types []string
}

func (j *memJournal) Record(_ context.Context, typ, _ string, _ any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.types = append(j.types, typ)
	return nil
}

func (j *memJournal) has(typ string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, t := range j.types {
		if t == typ {
			return true
		}
	}
	return false
}

type harness struct {
	desk    *Desk
	fake    *sheetstest.Fake
	store   *session.Store
	clock   *clock
	journal *memJournal
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	st, err := session.NewStore(session.NewMemKV(), "test-secret", nil)
	require.NoError(t, err)
	h := &harness{
		fake:    sheetstest.New(),
		store:   st,
		clock:   &clock{t: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)},
		journal: &memJournal{},
	}
	deps := Deps{
		API:     sheets.New(h.fake),
		Store:   st,
		Grader:  grading.NewEngine(),
		Journal: h.journal,
	}
	for _, o := range opts {
		o(&deps)
	}
	h.desk = New(deps, Config{TabSwitchLimit: 1, Now: h.clock.Now})
	return h
}

func bank(n int) []exam.Question {
	qs := make([]exam.Question, n)
	for i := range qs {
		qs[i] = exam.Question{
			ID:        "Q" + string(rune('1'+i)),
			Level:     "Nhận biết",
			Type:      exam.TypeMultipleChoice,
			Text:      "Câu hỏi",
			OptionA:   "1",
			OptionB:   "2",
			AnswerKey: "A",
			Topic:     "Số học",
			Grade:     6,
		}
	}
	return qs
}

func loginReply(role string) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"email": "an@school.vn", "name": "An", "class": "6A1", "role": role,
			"progress": map[string]any{"6_Số học": 1},
		},
		"sessionToken": "tok-1",
	}
}

func TestLoginRestoreLogout(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student")).Reply("getTopics", []string{"Số học", "Hình học"})
	ctx := context.Background()

	u, err := h.desk.Login(ctx, " An@School.vn ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "An", u.Name)
	st := h.desk.Status()
	assert.Equal(t, ViewDashboard, st.View)
	assert.Equal(t, []string{"Số học", "Hình học"}, st.Topics)
	assert.Len(t, h.fake.Calls("getAssignedExamsForStudent"), 1)

	stored, err := h.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "tok-1", stored.SessionToken)
	assert.Contains(t, stored.DeviceID, "device_")

	// a fresh desk over the same store picks the session up
	other := New(Deps{API: sheets.New(h.fake), Store: h.store, Grader: grading.NewEngine()}, Config{})
	require.NoError(t, other.Restore(ctx))
	assert.Equal(t, ViewDashboard, other.View())
	assert.Equal(t, "an@school.vn", other.Identity().Email)

	h.desk.Logout(ctx)
	assert.Len(t, h.fake.Calls("logout"), 1)
	assert.Equal(t, ViewLogin, h.desk.View())
	assert.Nil(t, h.desk.Identity())
	stored, err = h.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRestoreWithoutSessionStaysOnLogin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.desk.Restore(context.Background()))
	assert.Equal(t, ViewLogin, h.desk.View())
	assert.NotEmpty(t, h.desk.Status().DeviceID)
}

func TestLockedLevelAndEmptyBank(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student")).
		Reply("getUserProgress", map[string]any{"progress": map[string]any{"6_Số học": 1}}).
		Reply("getQuestions", []exam.Question{})
	ctx := context.Background()
	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)

	_, err = h.desk.SelectTopic(ctx, "Số học")
	require.NoError(t, err)
	assert.Equal(t, ViewTopicSelect, h.desk.View())

	_, err = h.desk.StartLevel(ctx, 2)
	var locked *progress.LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 2, locked.Level)
	assert.Equal(t, 80, locked.Threshold)
	assert.Contains(t, err.Error(), "80%")
	assert.Empty(t, h.fake.Calls("getQuestions"))

	_, err = h.desk.StartLevel(ctx, 1)
	assert.ErrorIs(t, err, ErrEmptyBank)
	assert.Equal(t, ViewTopicSelect, h.desk.View())
	assert.Equal(t, quiz.NotStarted, h.desk.Quiz().State())
}

func TestPassAdvancesProgress(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student")).
		Reply("getQuestions", bank(2)).
		Reply("submitQuiz", map[string]any{"percentage": 100, "passed": true, "canAdvance": true, "message": "Giỏi"})
	ctx := context.Background()
	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)
	_, err = h.desk.SelectTopic(ctx, "Số học")
	require.NoError(t, err)

	_, err = h.desk.StartLevel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ViewQuiz, h.desk.View())
	require.NoError(t, h.desk.Quiz().SetAnswer(0, quiz.Choice{Letter: "A"}))
	require.NoError(t, h.desk.Quiz().SetAnswer(1, quiz.Choice{Letter: "A"}))

	res, err := h.desk.Finish(ctx)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	st := h.desk.Status()
	assert.Equal(t, ViewResult, st.View)
	assert.Equal(t, 2, st.Progress.Level(6, "Số học"))
	assert.Nil(t, st.Theory)
	assert.Empty(t, h.fake.Calls("getTheory"))
	assert.True(t, h.journal.has(syncx.QuizStarted))
	assert.True(t, h.journal.has(syncx.QuizFinished))

	// the new level is open now
	_, err = h.desk.StartLevel(ctx, 2)
	assert.NoError(t, err)
}

func TestFailLoadsRemediationTheory(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student")).
		Reply("getQuestions", bank(2)).
		Reply("submitQuiz", map[string]any{"percentage": 0, "passed": false}).
		Reply("getTheory", map[string]any{"title": "Phép cộng", "content": "..."})
	ctx := context.Background()
	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)
	_, err = h.desk.SelectTopic(ctx, "Số học")
	require.NoError(t, err)
	_, err = h.desk.StartLevel(ctx, 1)
	require.NoError(t, err)

	_, err = h.desk.Finish(ctx)
	require.NoError(t, err)
	st := h.desk.Status()
	require.NotNil(t, st.Theory)
	assert.Equal(t, "Phép cộng", st.Theory.Title)
	calls := h.fake.Calls("getTheory")
	require.Len(t, calls, 1)
	assert.Equal(t, "Số học", calls[0].Payload["topic"])
	assert.Equal(t, 1, st.Progress.Level(6, "Số học"))
}

func TestInstantExam(t *testing.T) {
	h := newHarness(t)
	h.fake.On("getExamByLink", func(p map[string]any) (any, error) {
		if p["examId"] == "broken" {
			return map[string]any{"title": "Đề lỗi"}, nil
		}
		return map[string]any{"examId": p["examId"], "title": "Đề 101", "grade": "7", "questions": bank(3)}, nil
	})
	ctx := context.Background()

	_, err := h.desk.InstantExam(ctx, "broken")
	assert.ErrorIs(t, err, sheets.ErrMalformedExam)
	assert.Equal(t, ViewLogin, h.desk.View())
	assert.Equal(t, quiz.NotStarted, h.desk.Quiz().State())

	snap, err := h.desk.InstantExam(ctx, " EX1 ")
	require.NoError(t, err)
	assert.Equal(t, "Đề 101", snap.Meta.Topic)
	assert.Equal(t, 7, snap.Meta.Grade)
	assert.Equal(t, ViewQuiz, h.desk.View())

	require.NoError(t, h.desk.Quiz().SetAnswer(0, quiz.Choice{Letter: "A"}))
	res, err := h.desk.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "guest", res.Email)
	assert.Equal(t, 33, res.Percentage.Int())
	assert.Empty(t, h.fake.Calls("submitQuiz"))
	assert.Len(t, h.fake.Calls("getTheory"), 1)

	require.NoError(t, h.desk.ExitResult())
	assert.Equal(t, ViewLogin, h.desk.View())
}

func startReply(duration int) map[string]any {
	return map[string]any{
		"attemptId":    "att-1",
		"assignmentId": "asg-1",
		"startedAt":    "2026-10-17T08:00:00Z",
		"assignment":   map[string]any{"duration_minutes": duration, "max_attempts": 2, "examTitle": "Kiểm tra 15 phút"},
		"exam":         map[string]any{"examId": "EX9", "title": "Đề 9", "grade": 6, "questions": bank(2)},
	}
}

func TestPendingAssignmentWaitsForStudent(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student")).Reply("startAssignmentAttempt", startReply(15))
	ctx := context.Background()

	require.NoError(t, h.desk.Boot(ctx, "", "asg-1"))
	st := h.desk.Status()
	assert.Equal(t, "asg-1", st.Pending)
	assert.Equal(t, ViewLogin, st.View)
	assert.Empty(t, h.fake.Calls("startAssignmentAttempt"))

	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)
	calls := h.fake.Calls("startAssignmentAttempt")
	require.Len(t, calls, 1)
	assert.Equal(t, "tok-1", calls[0].Payload["sessionToken"])

	st = h.desk.Status()
	assert.Empty(t, st.Pending)
	assert.Equal(t, ViewQuiz, st.View)
	require.NotNil(t, st.Attempt)
	assert.Equal(t, 15, st.Attempt.DurationMinutes)
	assert.True(t, h.journal.has(syncx.AttemptStarted))
}

func TestPendingAssignmentIgnoredForTeachers(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("teacher"))
	ctx := context.Background()

	require.NoError(t, h.desk.Boot(ctx, "", "asg-1"))
	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)
	assert.Empty(t, h.fake.Calls("startAssignmentAttempt"))
	assert.Empty(t, h.fake.Calls("getAssignedExamsForStudent"))
	assert.NoError(t, h.desk.OpenAdmin())
	assert.Equal(t, ViewAdminPanel, h.desk.View())
}

func TestTimeoutSubmitsAttempt(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student")).
		Reply("startAssignmentAttempt", startReply(1)).
		Reply("submitQuiz", map[string]any{"percentage": 0, "passed": false})
	ctx := context.Background()
	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)
	_, err = h.desk.StartAssignment(ctx, "asg-1")
	require.NoError(t, err)

	h.clock.Add(59 * time.Second)
	assert.False(t, h.desk.Tick(ctx))
	h.clock.Add(2 * time.Second)
	assert.True(t, h.desk.Tick(ctx))
	assert.False(t, h.desk.Tick(ctx))

	subs := h.fake.Calls("submitQuiz")
	require.Len(t, subs, 1)
	assert.Equal(t, "timeout", subs[0].Payload["submissionReason"])
	assert.Equal(t, "att-1", subs[0].Payload["attemptId"])
	assert.Equal(t, "asg-1", subs[0].Payload["assignmentId"])
	// login, start, finish
	assert.Len(t, h.fake.Calls("getAssignedExamsForStudent"), 3)

	require.NoError(t, h.desk.ExitResult())
	st := h.desk.Status()
	assert.Nil(t, st.Attempt)
	assert.Equal(t, ViewDashboard, st.View)
}

func TestHeartbeatConflictForcesSubmission(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student")).
		Reply("getQuestions", bank(1)).
		Reply("submitQuiz", map[string]any{"percentage": 0, "passed": false})
	ctx := context.Background()
	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)

	h.fake.Fail("heartbeat", &gateway.RemoteError{Action: "heartbeat", Message: "logged in elsewhere"})
	v := h.desk.Heartbeat(ctx)
	assert.False(t, v.Valid)
	assert.Empty(t, h.fake.Calls("submitQuiz"))

	_, err = h.desk.SelectTopic(ctx, "Số học")
	require.NoError(t, err)
	_, err = h.desk.StartLevel(ctx, 1)
	require.NoError(t, err)

	h.desk.Heartbeat(ctx)
	assert.Equal(t, quiz.Complete, h.desk.Quiz().State())
	subs := h.fake.Calls("submitQuiz")
	require.Len(t, subs, 1)
	assert.Equal(t, "cheat_conflict", subs[0].Payload["submissionReason"])
	assert.Equal(t, ViewResult, h.desk.View())
}

func TestHeartbeatOfflineCountsAsValid(t *testing.T) {
	h := newHarness(t)
	h.fake.Reply("login", loginReply("student"))
	ctx := context.Background()
	_, err := h.desk.Login(ctx, "an@school.vn", "pw")
	require.NoError(t, err)

	h.fake.Fail("heartbeat", gateway.ErrTransport)
	assert.True(t, h.desk.Heartbeat(ctx).Valid)
	assert.Equal(t, sheets.ReasonNoSession, newHarness(t).desk.Heartbeat(ctx).Reason)
}

func TestTabSwitchForcesSubmission(t *testing.T) {
	h := newHarness(t)
	h.fake.On("getExamByLink", func(map[string]any) (any, error) {
		return map[string]any{"title": "Đề", "questions": bank(2)}, nil
	})
	ctx := context.Background()
	_, err := h.desk.InstantExam(ctx, "EX")
	require.NoError(t, err)

	count, finished := h.desk.Visibility(ctx, false)
	assert.Equal(t, 0, count)
	assert.False(t, finished)

	count, finished = h.desk.Visibility(ctx, true)
	assert.Equal(t, 1, count)
	assert.True(t, finished)
	snap := h.desk.Quiz().Snapshot()
	assert.Equal(t, quiz.ReasonCheatTab, snap.Reason)
	assert.False(t, snap.Result.Passed)
	assert.True(t, h.journal.has(syncx.ViolationObserved))
	assert.Empty(t, h.fake.Calls("reportViolation"))
}

func TestExitDuringQuizRefused(t *testing.T) {
	h := newHarness(t)
	h.fake.On("getExamByLink", func(map[string]any) (any, error) {
		return map[string]any{"title": "Đề", "questions": bank(1)}, nil
	})
	_, err := h.desk.InstantExam(context.Background(), "EX")
	require.NoError(t, err)
	assert.ErrorIs(t, h.desk.ExitResult(), ErrQuizLive)
	assert.ErrorIs(t, h.desk.Home(), ErrQuizLive)
}

type echoModel struct{ prompts []string }

func (m *echoModel) Generate(_ context.Context, prompt string, _ tutor.GenConfig) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return "Thử lại nhé", nil
}

func TestChatHintsResetPerQuiz(t *testing.T) {
	m := &echoModel{}
	h := newHarness(t, func(d *Deps) { d.Tutor = tutor.New(m, nil) })
	h.fake.On("getExamByLink", func(map[string]any) (any, error) {
		return map[string]any{"title": "Đề", "questions": bank(1)}, nil
	})
	ctx := context.Background()
	_, err := h.desk.InstantExam(ctx, "EX")
	require.NoError(t, err)

	require.NoError(t, h.desk.Quiz().SetAnswer(0, quiz.Choice{Letter: "B"}))
	r := h.desk.Chat(ctx, "cho em gợi ý")
	assert.Equal(t, 0, r.HintLevel)
	assert.Contains(t, m.prompts[0], "Học sinh đã chọn: B")
	r = h.desk.Chat(ctx, "gợi ý tiếp")
	assert.Equal(t, 1, r.HintLevel)

	_, err = h.desk.InstantExam(ctx, "EX")
	require.NoError(t, err)
	r = h.desk.Chat(ctx, "gợi ý")
	assert.Equal(t, 0, r.HintLevel)

	assert.Equal(t, tutor.FallbackMessage, newHarness(t).desk.Chat(ctx, "hi").Message)
}

func TestStartAssignmentRequiresLogin(t *testing.T) {
	h := newHarness(t)
	_, err := h.desk.StartAssignment(context.Background(), "asg-1")
	assert.ErrorIs(t, err, assignment.ErrNotAuthenticated)
	assert.Empty(t, h.fake.Calls("startAssignmentAttempt"))
}
