package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// POST /practice/grade {"grade": 6}
func (s *Server) selectGrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grade int `json:"grade"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Grade <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "grade must be positive"})
		return
	}
	ts, err := s.Desk.SelectGrade(r.Context(), req.Grade)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grade": req.Grade, "topics": ts})
}

func (s *Server) topics(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Desk.Topics(r.Context())
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

// POST /practice/topic {"topic": "..."} returns the refreshed progress map.
func (s *Server) selectTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	pm, err := s.Desk.SelectTopic(r.Context(), req.Topic)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topic": req.Topic, "progress": pm})
}

func (s *Server) startLevel(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil || level < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad level"})
		return
	}
	snap, err := s.Desk.StartLevel(r.Context(), level)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) instantExam(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Desk.InstantExam(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) assigned(w http.ResponseWriter, r *http.Request) {
	list, err := s.Desk.Assigned(r.Context())
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) startAssignment(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Desk.StartAssignment(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) assignmentDetail(w http.ResponseWriter, r *http.Request) {
	raw, err := s.Desk.AssignmentDetail(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	if len(raw) == 0 || string(raw) == "null" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "assignment not found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) assignmentAttempts(w http.ResponseWriter, r *http.Request) {
	list, err := s.Desk.AssignmentAttempts(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	list, err := s.Desk.Leaderboard(r.Context())
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /theory?grade=6&topic=...&level=1
func (s *Server) theory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	grade, _ := strconv.Atoi(q.Get("grade"))
	level, _ := strconv.Atoi(q.Get("level"))
	th, err := s.Desk.TheoryReview(r.Context(), grade, q.Get("topic"), level)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	if th == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no theory for this level"})
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.Desk.Chat(r.Context(), req.Message))
}
