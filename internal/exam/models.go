package exam

import "strings"

// QuestionType values are the backend's sheet labels.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "Trắc nghiệm"
	TypeTrueFalse      QuestionType = "Đúng/Sai"
	TypeShortAnswer    QuestionType = "Trả lời ngắn"
)

// Difficulty labels used in the "level" column of the question bank.
var Difficulties = []string{"Nhận biết", "Thông hiểu", "Vận dụng", "Vận dụng cao"}

type Question struct {
	ID        string       `json:"exam_id" validate:"omitempty,max=64"`
	Level     string       `json:"level" validate:"required"`
	Type      QuestionType `json:"question_type" validate:"required,qtype"`
	Text      string       `json:"question_text" validate:"required"`
	ImageID   string       `json:"image_id,omitempty"`
	OptionA   string       `json:"option_A"` // MC: choice A; true/false: clause a)
	OptionB   string       `json:"option_B"`
	OptionC   string       `json:"option_C"`
	OptionD   string       `json:"option_D"`
	AnswerKey string       `json:"answer_key" validate:"required"` // "A" | "Đ-S-Đ-S" | "15"
	Solution  string       `json:"solution"`
	Topic     string       `json:"topic" validate:"required"`
	Grade     Num          `json:"grade" validate:"required"`
	QuizLevel Num          `json:"quiz_level,omitempty"`
}

// Options returns the four option/clause texts in slot order.
func (q Question) Options() [4]string {
	return [4]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}

// Kind returns the type label with stray sheet whitespace trimmed.
func (q Question) Kind() QuestionType {
	return QuestionType(strings.TrimSpace(string(q.Type)))
}

type Theory struct {
	ID            string   `json:"id,omitempty"`
	Grade         Num      `json:"grade" validate:"required"`
	Topic         string   `json:"topic" validate:"required"`
	Level         Num      `json:"level" validate:"required"`
	Title         string   `json:"title" validate:"required"`
	Content       string   `json:"content" validate:"required"`
	Examples      string   `json:"examples,omitempty"`
	Tips          string   `json:"tips,omitempty"`
	VideoURL      string   `json:"videoUrl,omitempty" validate:"omitempty,url"`
	RelatedTopics []string `json:"relatedTopics,omitempty"`
}

// Exam is the embedded exam object returned by getExamByLink and
// startAssignmentAttempt.
type Exam struct {
	ExamID    string     `json:"examId,omitempty"`
	Title     string     `json:"title"`
	Grade     Num        `json:"grade"`
	Questions []Question `json:"questions"`
}
