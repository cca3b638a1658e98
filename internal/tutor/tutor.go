// Package tutor is the AI study assistant. Its output is advisory chat text
// and never affects grading or quiz state.
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
)

const FallbackMessage = "Hệ thống AI đang bận hoặc gặp sự cố. Em hãy thử lại sau nhé."

// QuestionContext is the bounded view of the current question the model sees.
type QuestionContext struct {
	Grade         int      `json:"grade"`
	Topic         string   `json:"topic"`
	Level         int      `json:"level"`
	QuestionID    string   `json:"questionId"`
	QuestionText  string   `json:"questionText"`
	QuestionType  string   `json:"questionType"`
	Options       []string `json:"options,omitempty"`
	UserAnswer    string   `json:"userAnswer,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

type Reply struct {
	Message        string `json:"message"`
	HintLevel      int    `json:"hintLevel"`
	IsFullSolution bool   `json:"isFullSolution"`
}

type Tutor struct {
	model Model
	log   logrus.FieldLogger
}

func New(m Model, log logrus.FieldLogger) *Tutor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tutor{model: m, log: log}
}

var levelGuidance = [...]string{
	"Chỉ gợi ý hướng đi, không giải bài.",
	"Gợi ý công thức cần dùng.",
	"Hướng dẫn từng bước, chưa ra đáp số.",
	"Giải chi tiết và ra đáp số.",
}

func systemPrompt(level int, qc *QuestionContext) string {
	if level < 0 || level > MaxHintLevel {
		level = 0
	}
	var b strings.Builder
	b.WriteString("Bạn là Trợ Lý Thầy Phúc. Hỗ trợ học sinh giải toán. Dùng LaTeX $...$ cho công thức.\n")
	if qc != nil {
		if qc.Topic != "" {
			fmt.Fprintf(&b, "Lớp %d, chủ đề \"%s\", level %d.\n", qc.Grade, qc.Topic, qc.Level)
		}
		fmt.Fprintf(&b, "\nBài toán (%s): %s\n", qc.QuestionType, qc.QuestionText)
		for i, o := range qc.Options {
			if strings.TrimSpace(o) != "" {
				fmt.Fprintf(&b, "%c) %s\n", 'A'+i, o)
			}
		}
		if qc.UserAnswer != "" {
			fmt.Fprintf(&b, "Học sinh đã chọn: %s\n", qc.UserAnswer)
		}
		// the key only goes to the model once a full solution is allowed
		if level == MaxHintLevel && qc.CorrectAnswer != "" {
			fmt.Fprintf(&b, "Đáp án đúng: %s\n", qc.CorrectAnswer)
		}
	}
	fmt.Fprintf(&b, "\nLevel hỗ trợ: %s", levelGuidance[level])
	return b.String()
}

// asksForHint matches "gợi ý" or "hint" in the student's message.
func asksForHint(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "gợi ý") || strings.Contains(m, "hint")
}

// Ask answers a student message. The hint level in effect is the one before
// this message; a successful hint request raises it for the next turn. On
// any failure the fallback message is returned.
func (t *Tutor) Ask(ctx context.Context, hints *Hints, msg string, qc *QuestionContext) Reply {
	level := 0
	if hints != nil && qc != nil && qc.QuestionID != "" {
		level = hints.Level(qc.QuestionID)
	}
	prompt := systemPrompt(level, qc) + "\n\nCâu hỏi của học sinh: " + msg

	text, err := t.model.Generate(ctx, prompt, GenConfig{Temperature: 0.7, TopK: 40, TopP: 0.95})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			t.log.WithError(err).Warn("tutor call failed")
		}
		return Reply{Message: FallbackMessage, HintLevel: level}
	}
	if hints != nil && qc != nil && qc.QuestionID != "" && asksForHint(msg) {
		hints.Increment(qc.QuestionID)
	}
	return Reply{Message: text, HintLevel: level, IsFullSolution: level >= MaxHintLevel}
}

// GenerateQuestion drafts a question for the teacher. The draft is not saved.
func (t *Tutor) GenerateQuestion(ctx context.Context, grade int, topic, level string, typ exam.QuestionType, source string) (*exam.Question, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Tạo một câu hỏi toán học Lớp %d, Chủ đề \"%s\", Mức độ \"%s\", Dạng câu hỏi \"%s\".\n", grade, topic, level, typ)
	if strings.TrimSpace(source) != "" {
		fmt.Fprintf(&b, "\n[QUAN TRỌNG] Dựa vào nội dung văn bản sau để tạo câu hỏi:\n\"\"\"%s\"\"\"\n", stripInlineImages(source))
	}
	b.WriteString("\n[YÊU CẦU ĐỊNH DẠNG JSON & LATEX]:\n" +
		"1. Output phải là một JSON Object hợp lệ.\n" +
		"2. TẤT CẢ công thức toán phải viết dưới dạng LaTeX và đặt trong dấu $.\n" +
		"3. Trong chuỗi JSON, ký tự backslash của LaTeX phải được escape.\n")
	switch typ {
	case exam.TypeMultipleChoice:
		b.WriteString(`Yêu cầu output JSON format: {"question_text": "...", "option_A": "...", "option_B": "...", "option_C": "...", "option_D": "...", "answer_key": "A", "solution": "..."}`)
	case exam.TypeTrueFalse:
		b.WriteString(`Yêu cầu output JSON format: {"question_text": "...", "option_A": "Mệnh đề a", "option_B": "Mệnh đề b", "option_C": "Mệnh đề c", "option_D": "Mệnh đề d", "answer_key": "Đ-S-Đ-S", "solution": "..."}`)
	default:
		b.WriteString(`Yêu cầu output JSON format: {"question_text": "...", "answer_key": "Giá trị số", "solution": "..."}`)
	}

	text, err := t.model.Generate(ctx, b.String(), GenConfig{Temperature: 0.7, ResponseMimeType: "application/json"})
	if err != nil {
		return nil, err
	}
	var q exam.Question
	if err := json.Unmarshal([]byte(stripFences(text)), &q); err != nil {
		return nil, fmt.Errorf("tutor: model returned invalid question JSON: %w", err)
	}
	q.Grade = exam.Num(grade)
	q.Topic = topic
	q.Level = level
	q.Type = typ
	return &q, nil
}

// GenerateTheory drafts a theory lesson for the teacher.
func (t *Tutor) GenerateTheory(ctx context.Context, grade int, topic string, level int) (*exam.Theory, error) {
	prompt := fmt.Sprintf(`Tạo một bài giảng lý thuyết Toán học cho:
- Khối lớp: %d
- Chủ đề: %s
- Mức độ: Level %d

Yêu cầu output JSON format:
{"title": "Tiêu đề", "content": "Nội dung lý thuyết (LaTeX $...$)", "examples": "Ví dụ", "tips": "Mẹo"}

Viết bằng tiếng Việt, phù hợp với học sinh lớp %d.`, grade, topic, level, grade)

	text, err := t.model.Generate(ctx, prompt, GenConfig{Temperature: 0.8, MaxOutputTokens: 8192, ResponseMimeType: "application/json"})
	if err != nil {
		return nil, err
	}
	var th exam.Theory
	if err := json.Unmarshal([]byte(stripFences(text)), &th); err != nil {
		return nil, fmt.Errorf("tutor: model returned invalid theory JSON: %w", err)
	}
	if th.Title == "" || th.Content == "" {
		return nil, errors.New("tutor: generated theory is missing title or content")
	}
	th.Grade = exam.Num(grade)
	th.Topic = topic
	th.Level = exam.Num(level)
	return &th, nil
}

// stripFences removes markdown code fences around model JSON.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
