package sheets

import (
	"encoding/json"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/progress"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

type User struct {
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	Class        string       `json:"class"`
	Avatar       string       `json:"avatar,omitempty"`
	TotalScore   exam.Num     `json:"totalScore"`
	CurrentLevel exam.Num     `json:"currentLevel,omitempty"`
	Progress     progress.Map `json:"progress,omitempty"`
	Role         Role         `json:"role,omitempty"`
}

// IsStaff reports whether the user may open the admin panel.
func (u User) IsStaff() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}

// Identity is the pair every authenticated action carries.
type Identity struct {
	Email string
	Token string
}

type LoginResult struct {
	User         User   `json:"user"`
	SessionToken string `json:"sessionToken"`
}

// Session verdict reasons.
const (
	ReasonExpired         = "expired"
	ReasonSessionConflict = "session_conflict"
	ReasonInvalidToken    = "invalid_token"
	ReasonNoSession       = "no_session"
)

type SessionValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	User   *User  `json:"user,omitempty"`
}

type UserProgress struct {
	TotalScore   exam.Num     `json:"totalScore"`
	CurrentLevel exam.Num     `json:"currentLevel"`
	Progress     progress.Map `json:"progress"`
}

type LeaderboardEntry struct {
	Rank               int      `json:"rank"`
	Email              string   `json:"email"`
	Name               string   `json:"name"`
	Class              string   `json:"class"`
	Avatar             string   `json:"avatar,omitempty"`
	TotalScore         exam.Num `json:"totalScore"`
	QuestionsCompleted exam.Num `json:"questionsCompleted,omitempty"`
	Streak             exam.Num `json:"streak,omitempty"`
}

// AnswerRecord is one graded answer as sent to and echoed by submitQuiz.
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	UserAnswer string `json:"userAnswer"`
	Correct    bool   `json:"correct"`
}

type ViolationMark struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type Submission struct {
	Email            string          `json:"email"`
	SessionToken     string          `json:"sessionToken"`
	Topic            string          `json:"topic"`
	Grade            int             `json:"grade"`
	Level            int             `json:"level"`
	Score            int             `json:"score"`
	TotalQuestions   int             `json:"totalQuestions"`
	Answers          []AnswerRecord  `json:"answers"`
	TimeSpent        int             `json:"timeSpent"`
	SubmissionReason string          `json:"submissionReason"`
	Violations       []ViolationMark `json:"violations"`

	AssignmentID string `json:"assignmentId,omitempty"`
	AttemptID    string `json:"attemptId,omitempty"`
	ExamID       string `json:"examId,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
}

type QuizResult struct {
	ResultID         string         `json:"resultId,omitempty"`
	Email            string         `json:"email"`
	Topic            string         `json:"topic"`
	Grade            exam.Num       `json:"grade"`
	Level            exam.Num       `json:"level"`
	Score            *exam.Num      `json:"score,omitempty"`
	TotalQuestions   *exam.Num      `json:"totalQuestions,omitempty"`
	Percentage       exam.Num       `json:"percentage"`
	Passed           bool           `json:"passed"`
	CanAdvance       bool           `json:"canAdvance"`
	NextLevel        exam.Num       `json:"nextLevel,omitempty"`
	TimeSpent        exam.Num       `json:"timeSpent"`
	SubmissionReason string         `json:"submissionReason"`
	Theory           *exam.Theory   `json:"theory,omitempty"`
	Message          string         `json:"message"`
	Answers          []AnswerRecord `json:"answers,omitempty"`
	Timestamp        string         `json:"timestamp"`
}

type Violation struct {
	Email    string         `json:"email"`
	Type     string         `json:"type"`
	Details  map[string]any `json:"details"`
	QuizInfo QuizInfo       `json:"quizInfo"`
}

type QuizInfo struct {
	Topic  string `json:"topic"`
	Grade  int    `json:"grade"`
	Level  int    `json:"level"`
	QIndex int    `json:"qIndex"`
}

type AssignmentState string

const (
	StateOpen     AssignmentState = "OPEN"
	StateUpcoming AssignmentState = "UPCOMING"
	StateClosed   AssignmentState = "CLOSED"
)

type Assignment struct {
	AssignmentID    string         `json:"assignmentId"`
	ExamID          string         `json:"examId"`
	ExamTitle       string         `json:"examTitle"`
	Grade           exam.Num       `json:"grade"`
	Class           string         `json:"class,omitempty"`
	ClassName       string         `json:"className,omitempty"`
	AssignedBy      string         `json:"assignedBy,omitempty"`
	OpenAt          string         `json:"openAt,omitempty"`
	DueAt           string         `json:"dueAt,omitempty"`
	DurationMinutes exam.Num       `json:"durationMinutes,omitempty"`
	MaxAttempts     exam.Num       `json:"maxAttempts,omitempty"`
	Settings        map[string]any `json:"settings,omitempty"`
	Status          string         `json:"status,omitempty"`
	CreatedAt       string         `json:"createdAt,omitempty"`
}

// AssignedExam is the student's read-only view of an assignment.
type AssignedExam struct {
	Assignment
	State           AssignmentState `json:"state"`
	AttemptsUsed    exam.Num        `json:"attemptsUsed"`
	BestPercentage  exam.Num        `json:"bestPercentage,omitempty"`
	LastSubmittedAt string          `json:"lastSubmittedAt,omitempty"`
}

// CanStart reports whether the start action should be enabled. A zero
// maxAttempts means unlimited.
func (a AssignedExam) CanStart() bool {
	if a.State != StateOpen {
		return false
	}
	max := a.MaxAttempts.Int()
	return max == 0 || a.AttemptsUsed.Int() < max
}

type AssignmentAttempt struct {
	AttemptID        string   `json:"attemptId"`
	AssignmentID     string   `json:"assignmentId"`
	ExamID           string   `json:"examId"`
	Email            string   `json:"email"`
	StartedAt        string   `json:"startedAt"`
	SubmittedAt      string   `json:"submittedAt,omitempty"`
	TimeSpent        exam.Num `json:"timeSpent,omitempty"`
	Score            exam.Num `json:"score,omitempty"`
	TotalQuestions   exam.Num `json:"totalQuestions,omitempty"`
	Percentage       exam.Num `json:"percentage,omitempty"`
	Status           string   `json:"status,omitempty"`
	SubmissionReason string   `json:"submissionReason,omitempty"`
	ResultID         string   `json:"resultId,omitempty"`
}

// StartedAttempt is the decoded startAssignmentAttempt response. Exam is only
// set when the embedded exam carried a question array.
type StartedAttempt struct {
	AttemptID       string
	AssignmentID    string
	ExamID          string
	StartedAt       string
	DurationMinutes int
	MaxAttempts     int
	ExamTitle       string
	Exam            exam.Exam
}

type startAttemptWire struct {
	AttemptID       string          `json:"attemptId"`
	AssignmentID    string          `json:"assignmentId"`
	ExamID          string          `json:"examId"`
	StartedAt       string          `json:"startedAt"`
	DurationMinutes exam.Num        `json:"durationMinutes"`
	Assignment      *assignmentWire `json:"assignment"`
	Exam            json.RawMessage `json:"exam"`
}

// assignmentWire tolerates both camelCase and snake_case sheet headers.
type assignmentWire struct {
	ExamTitle        string   `json:"examTitle"`
	DurationMinutes  exam.Num `json:"durationMinutes"`
	DurationMinutes2 exam.Num `json:"duration_minutes"`
	MaxAttempts      exam.Num `json:"maxAttempts"`
	MaxAttempts2     exam.Num `json:"max_attempts"`
}

type CreatedExam struct {
	ExamID  string `json:"examId"`
	Message string `json:"message,omitempty"`
}

type AssignRequest struct {
	ExamID          string         `json:"examId" validate:"required"`
	ClassName       string         `json:"className" validate:"required"`
	ExamTitle       string         `json:"examTitle,omitempty"`
	Grade           int            `json:"grade,omitempty"`
	AssignedBy      string         `json:"assignedBy,omitempty"`
	OpenAt          string         `json:"openAt,omitempty"`
	DueAt           string         `json:"dueAt,omitempty"`
	DurationMinutes int            `json:"durationMinutes" validate:"gte=0"`
	MaxAttempts     int            `json:"maxAttempts" validate:"gte=0"`
	Settings        map[string]any `json:"settings,omitempty"`
}

type Assigned struct {
	AssignmentID string `json:"assignmentId"`
	ExamID       string `json:"examId"`
	ClassName    string `json:"className"`
}

type ResultSummary struct {
	ResultID         string   `json:"resultId"`
	Email            string   `json:"email"`
	Topic            string   `json:"topic"`
	Grade            exam.Num `json:"grade"`
	Level            exam.Num `json:"level"`
	Score            exam.Num `json:"score"`
	TotalQuestions   exam.Num `json:"totalQuestions"`
	Percentage       exam.Num `json:"percentage"`
	Status           string   `json:"status"`
	TimeSpent        exam.Num `json:"timeSpent"`
	SubmissionReason string   `json:"submissionReason"`
	Timestamp        string   `json:"timestamp"`
}

type ViolationRecord struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Level     exam.Num        `json:"level"`
	Details   json.RawMessage `json:"details"`
	Timestamp string          `json:"timestamp"`
}

type StudentDetail struct {
	User       User              `json:"user"`
	Results    []ResultSummary   `json:"results"`
	Violations []ViolationRecord `json:"violations"`
}

type ResultDetail struct {
	ResultSummary
	Answers []json.RawMessage `json:"answers"`
}
