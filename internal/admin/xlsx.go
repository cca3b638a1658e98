package admin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
)

const sheet = "Sheet1"

// questionColumns is the import header, matching the backend's sheet columns.
var questionColumns = []string{
	"exam_id", "level", "question_type", "question_text", "image_id",
	"option_A", "option_B", "option_C", "option_D",
	"answer_key", "solution", "topic", "grade", "quiz_level",
}

type ImportResult struct {
	Key       string   `json:"key,omitempty"`
	Processed int      `json:"processed"`
	Saved     int      `json:"saved"`
	Errors    []string `json:"errors"`
}

// ImportQuestions reads one question per row from the first sheet of an
// .xlsx file, keeps a copy in the blob store and saves every valid row. Row
// failures are collected, not fatal.
func (p *Panel) ImportQuestions(ctx context.Context, name string, r io.Reader) (*ImportResult, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 20<<20))
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	res := &ImportResult{Errors: []string{}}
	if p.blobs != nil {
		key := "imports/" + p.now().UTC().Format("20060102-150405") + "-" + path.Base(strings.ReplaceAll(name, "\\", "/"))
		if k, err := p.blobs.Put(key, bytes.NewReader(raw)); err != nil {
			p.log.WithError(err).Warn("import copy not stored")
		} else {
			res.Key = k
		}
	}

	names := f.GetSheetList()
	if len(names) == 0 {
		return res, nil
	}
	rows, err := f.GetRows(names[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) == 0 {
		return res, nil
	}
	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["question_text"]; !ok {
		return nil, &ValidationError{Fields: map[string]string{"header": "missing question_text column"}}
	}

	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		res.Processed++
		q := rowQuestion(row, col)
		if err := p.SaveQuestion(ctx, q); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %v", i+2, err))
			continue
		}
		res.Saved++
	}
	p.log.WithField("saved", res.Saved).WithField("failed", len(res.Errors)).Info("questions imported")
	return res, nil
}

func rowQuestion(row []string, col map[string]int) exam.Question {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(name string) exam.Num {
		v, _ := strconv.ParseFloat(get(name), 64)
		return exam.Num(v)
	}
	return exam.Question{
		ID:        get("exam_id"),
		Level:     get("level"),
		Type:      exam.QuestionType(get("question_type")),
		Text:      get("question_text"),
		ImageID:   get("image_id"),
		OptionA:   get("option_A"),
		OptionB:   get("option_B"),
		OptionC:   get("option_C"),
		OptionD:   get("option_D"),
		AnswerKey: get("answer_key"),
		Solution:  get("solution"),
		Topic:     get("topic"),
		Grade:     num("grade"),
		QuizLevel: num("quiz_level"),
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var resultColumns = []any{
	"Email", "Họ tên", "Lớp", "Chủ đề", "Lớp (khối)", "Level",
	"Điểm", "Số câu", "Phần trăm", "Trạng thái", "Thời gian (s)", "Lý do nộp", "Thời điểm",
}

// ExportResults writes every result of the students in className (all
// students when empty) to an .xlsx report in the blob store and returns its
// key.
func (p *Panel) ExportResults(ctx context.Context, className string) (string, error) {
	if p.blobs == nil {
		return "", ErrNoBlobStore
	}
	students, err := p.api.AllStudents(ctx)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow(sheet, "A1", &resultColumns); err != nil {
		return "", err
	}
	row := 2
	for _, s := range students {
		if className != "" && !strings.EqualFold(strings.TrimSpace(s.Class), strings.TrimSpace(className)) {
			continue
		}
		det, err := p.api.StudentDetail(ctx, s.Email)
		if err != nil {
			return "", fmt.Errorf("student %s: %w", s.Email, err)
		}
		if det == nil {
			continue
		}
		for _, r := range det.Results {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return "", err
			}
			vals := []any{
				s.Email, s.Name, s.Class, r.Topic, r.Grade.Int(), r.Level.Int(),
				r.Score.Float(), r.TotalQuestions.Int(), r.Percentage.Float(), r.Status,
				r.TimeSpent.Int(), r.SubmissionReason, r.Timestamp,
			}
			if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
				return "", err
			}
			row++
		}
	}
	_ = f.SetColWidth(sheet, "A", "C", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", err
	}
	label := strings.TrimSpace(className)
	if label == "" {
		label = "all"
	}
	key := fmt.Sprintf("reports/results-%s-%s.xlsx", path.Base(label), p.now().UTC().Format("20060102-150405"))
	return p.blobs.Put(key, buf)
}
