package admin

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
)

// custom validation tags
const (
	qtypeTag    = "qtype"
	notBlankTag = "notblank"
)

func newValidator() *validator.Validate {
	v := validator.New()

	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(qtypeTag, qtypeValidation)
	_ = v.RegisterValidation(notBlankTag, notBlankValidation)
	v.RegisterStructValidation(answerKeyValidation, exam.Question{})
	return v
}

func qtypeValidation(fl validator.FieldLevel) bool {
	switch exam.QuestionType(strings.TrimSpace(fl.Field().String())) {
	case exam.TypeMultipleChoice, exam.TypeTrueFalse, exam.TypeShortAnswer:
		return true
	}
	return false
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// answerKeyValidation checks the key against the question type.
func answerKeyValidation(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(exam.Question)
	if !ok {
		return
	}
	key := strings.TrimSpace(q.AnswerKey)
	switch q.Kind() {
	case exam.TypeMultipleChoice:
		if len(key) != 1 || !strings.Contains("ABCD", key) {
			sl.ReportError(q.AnswerKey, "answer_key", "AnswerKey", "choice", "")
		}
	case exam.TypeTrueFalse:
		parts := strings.Split(key, "-")
		if len(parts) != 4 {
			sl.ReportError(q.AnswerKey, "answer_key", "AnswerKey", "clauses", "")
			return
		}
		for _, p := range parts {
			if p != "Đ" && p != "S" {
				sl.ReportError(q.AnswerKey, "answer_key", "AnswerKey", "clauses", "")
				return
			}
		}
	}
}

// ValidationError carries per-field messages keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, m := range e.Fields {
		parts = append(parts, f+": "+m)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", notBlankTag:
		return "is required"
	case qtypeTag:
		return "must be one of Trắc nghiệm, Đúng/Sai, Trả lời ngắn"
	case "choice":
		return "must be one of A, B, C, D"
	case "clauses":
		return "must look like Đ-S-Đ-S"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt", "gte", "min":
		return "must be at least " + fe.Param()
	case "url":
		return "must be a URL"
	}
	return "failed " + fe.Tag()
}

// check runs struct validation and converts the result.
func (p *Panel) check(v any) error {
	err := p.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: map[string]string{}}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fieldMessage(fe)
	}
	return out
}
