package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

const (
	ModeBatch      = "batch"
	ModePerStudent = "per_student"
)

type GenerateRequest struct {
	Grade      int              `json:"grade" validate:"gt=0"`
	Mode       string           `json:"mode" validate:"oneof=batch per_student"`
	BatchCount int              `json:"batchCount" validate:"gte=0,lte=50"`
	Class      string           `json:"class,omitempty"` // per_student: limit to one class
	Items      []exam.Blueprint `json:"items" validate:"required,min=1,dive"`
}

type GeneratedExam struct {
	Name         string `json:"name"`
	ExamID       string `json:"examId"`
	ExamTitle    string `json:"examTitle"`
	Grade        int    `json:"grade"`
	Link         string `json:"link"`
	StudentName  string `json:"studentName,omitempty"`
	StudentEmail string `json:"studentEmail,omitempty"`
}

// Generate draws exam sets from the question bank and saves each one as an
// instant exam. The structure is checked against the bank first; a failed
// save stops the run and returns what was created so far.
func (p *Panel) Generate(ctx context.Context, req GenerateRequest) ([]GeneratedExam, error) {
	if req.Mode == "" {
		req.Mode = ModeBatch
	}
	if req.Mode == ModeBatch && req.BatchCount <= 0 {
		req.BatchCount = 1
	}
	if err := p.check(req); err != nil {
		return nil, err
	}
	pool, err := p.api.AllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if err := exam.CheckStructure(pool, req.Grade, req.Items); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"items": err.Error()}}
	}

	type target struct {
		name, title string
		student     *sheets.User
	}
	var targets []target
	switch req.Mode {
	case ModeBatch:
		for i := 1; i <= req.BatchCount; i++ {
			targets = append(targets, target{
				name:  fmt.Sprintf("Mã đề %d", 100+i),
				title: fmt.Sprintf("Đề %d - Tổng hợp", 100+i),
			})
		}
	case ModePerStudent:
		students, err := p.api.AllStudents(ctx)
		if err != nil {
			return nil, err
		}
		for i := range students {
			s := students[i]
			if req.Class != "" && !strings.EqualFold(strings.TrimSpace(s.Class), strings.TrimSpace(req.Class)) {
				continue
			}
			targets = append(targets, target{name: "HS: " + s.Name, title: "Đề của: " + s.Name, student: &s})
		}
	}

	out := make([]GeneratedExam, 0, len(targets))
	for _, t := range targets {
		set := p.gen.Draw(pool, req.Grade, req.Items)
		created, err := p.api.CreateInstantExam(ctx, t.title, req.Grade, set)
		if err != nil {
			return out, fmt.Errorf("create %q: %w", t.title, err)
		}
		g := GeneratedExam{
			Name:      t.name,
			ExamID:    created.ExamID,
			ExamTitle: t.title,
			Grade:     req.Grade,
			Link:      p.Link(created.ExamID),
		}
		if t.student != nil {
			g.StudentName, g.StudentEmail = t.student.Name, t.student.Email
		}
		out = append(out, g)
	}
	p.log.WithFields(logrus.Fields{"mode": req.Mode, "count": len(out), "questions": exam.Total(req.Items)}).Info("exams generated")
	return out, nil
}
