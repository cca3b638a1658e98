package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quizdesk/internal/admin"
	authmw "github.com/mind-engage/mindengage-quizdesk/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/rbac"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

const maxUpload = 20 << 20

func (s *Server) mountAdmin(r chi.Router) {
	r.Use(rbac.RequireAny(rbac.PermAdminBank, rbac.PermAdminExams, rbac.PermAdminStudents, rbac.PermAdminFiles))
	r.Post("/open", s.openAdmin)

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.PermAdminBank))
		r.Get("/questions", s.listQuestions)
		r.Post("/questions", s.saveQuestion)
		r.Delete("/questions/{id}", s.deleteQuestion)
		r.Post("/questions/draft", s.draftQuestion)
		r.Get("/theories", s.listTheories)
		r.Post("/theories", s.saveTheory)
		r.Delete("/theories/{id}", s.deleteTheory)
		r.Post("/theories/draft", s.draftTheory)
	})

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.PermAdminExams))
		r.Post("/exams/generate", s.generate)
		r.Get("/exams/{examID}/link", s.examLink)
		r.Post("/assignments", s.assign)
		r.Get("/assignments", s.classAssignments)
	})

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.PermAdminStudents))
		r.Get("/students", s.students)
		r.Get("/students/{email}", s.studentDetail)
		r.Get("/results/{resultID}", s.resultDetail)
	})

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.PermAdminFiles))
		r.Post("/import", s.importQuestions)
		r.Post("/export", s.exportResults)
		r.Get("/files", s.listFiles)
		r.Get("/files/*", s.downloadFile)
		r.Get("/events", s.events)
	})
}

func (s *Server) openAdmin(w http.ResponseWriter, _ *http.Request) {
	if err := s.Desk.OpenAdmin(); err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, s.Desk.Status())
}

// ---- bank ----

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.Admin.Questions(r.Context())
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	topic, level := r.URL.Query().Get("topic"), r.URL.Query().Get("level")
	grade, _ := strconv.Atoi(r.URL.Query().Get("grade"))
	out := qs[:0]
	for _, q := range qs {
		if (topic == "" || q.Topic == topic) && (level == "" || q.Level == level) && (grade == 0 || q.Grade.Int() == grade) {
			out = append(out, q)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) saveQuestion(w http.ResponseWriter, r *http.Request) {
	var q exam.Question
	if !decodeJSON(w, r, &q) {
		return
	}
	if err := s.Admin.SaveQuestion(r.Context(), q); err != nil {
		writeError(w, s.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.Admin.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /admin/questions/draft {"grade":10,"topic":"...","level":"...","type":"...","source":"..."}
func (s *Server) draftQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grade  int               `json:"grade"`
		Topic  string            `json:"topic"`
		Level  string            `json:"level"`
		Type   exam.QuestionType `json:"type"`
		Source string            `json:"source"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := s.Admin.DraftQuestion(r.Context(), req.Grade, req.Topic, req.Level, req.Type, req.Source)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) listTheories(w http.ResponseWriter, r *http.Request) {
	ths, err := s.Admin.Theories(r.Context())
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, ths)
}

func (s *Server) saveTheory(w http.ResponseWriter, r *http.Request) {
	var th exam.Theory
	if !decodeJSON(w, r, &th) {
		return
	}
	if err := s.Admin.SaveTheory(r.Context(), th); err != nil {
		writeError(w, s.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteTheory(w http.ResponseWriter, r *http.Request) {
	if err := s.Admin.DeleteTheory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) draftTheory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grade int    `json:"grade"`
		Topic string `json:"topic"`
		Level int    `json:"level"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	th, err := s.Admin.DraftTheory(r.Context(), req.Grade, req.Topic, req.Level)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, th)
}

// ---- exams and assignments ----

// POST /admin/exams/generate. Exams created before a failure are returned
// alongside the error.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req admin.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := s.Admin.Generate(r.Context(), req)
	if err != nil && len(out) == 0 {
		writeError(w, s.log(), err)
		return
	}
	body := map[string]any{"exams": out}
	if err != nil {
		s.log().WithError(err).Warn("exam generation stopped early")
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) examLink(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"link": s.Admin.Link(chi.URLParam(r, "examID"))})
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	var req sheets.AssignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AssignedBy == "" {
		req.AssignedBy = authmw.SubjectFromContext(r.Context())
	}
	out, err := s.Admin.Assign(r.Context(), req)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GET /admin/assignments?className=6A1&grade=6
func (s *Server) classAssignments(w http.ResponseWriter, r *http.Request) {
	grade, _ := strconv.Atoi(r.URL.Query().Get("grade"))
	list, err := s.Admin.Assignments(r.Context(), r.URL.Query().Get("className"), grade)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ---- students ----

func (s *Server) students(w http.ResponseWriter, r *http.Request) {
	list, err := s.Admin.Students(r.Context())
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	if class := r.URL.Query().Get("class"); class != "" {
		out := list[:0]
		for _, u := range list {
			if u.Class == class {
				out = append(out, u)
			}
		}
		list = out
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) studentDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.Admin.StudentDetail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) resultDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.Admin.ResultDetail(r.Context(), chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---- files ----

// POST /admin/import, multipart field "file".
func (s *Server) importQuestions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "file required"})
		return
	}
	defer f.Close()
	res, err := s.Admin.ImportQuestions(r.Context(), hdr.Filename, f)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /admin/export?className=6A1 writes a results workbook and returns its
// key, download path and local file URL.
func (s *Server) exportResults(w http.ResponseWriter, r *http.Request) {
	key, err := s.Admin.ExportResults(r.Context(), r.URL.Query().Get("className"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	out := map[string]string{"key": key, "download": "/admin/files/" + key}
	if s.Blobs != nil {
		if u, err := s.Blobs.URL(key); err == nil {
			out["url"] = u
		}
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	if s.Blobs == nil {
		writeError(w, s.log(), admin.ErrNoBlobStore)
		return
	}
	objs, err := s.Blobs.List(r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, objs)
}

// GET /admin/files/* returns the blob at whatever follows /files/.
func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	if s.Blobs == nil {
		writeError(w, s.log(), admin.ErrNoBlobStore)
		return
	}
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	rc, err := s.Blobs.Get(key)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	defer rc.Close()
	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	_, _ = io.Copy(w, rc)
}

// GET /admin/events?after=0&limit=100
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.Events.List(r.Context(), after, limit)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
