package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-quizdesk/internal/rbac"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
)

// POST /auth/login {"email": "...", "password": "..."}
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "email and password required"})
		return
	}
	u, err := s.Desk.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	role := tokenRole(u.Role)
	tok, err := s.Auth.IssueJWT(u.Email, role)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"role":         role,
		"user":         u,
		"state":        s.Desk.Status(),
	})
}

func tokenRole(r sheets.Role) string {
	switch r {
	case sheets.RoleTeacher:
		return rbac.RoleTeacher
	case sheets.RoleAdmin:
		return rbac.RoleAdmin
	}
	return rbac.RoleStudent
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.Desk.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Desk.Status())
}

// POST /boot {"examId": "...", "assignmentId": "..."} carries the URL
// parameters the UI was opened with.
func (s *Server) boot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExamID       string `json:"examId"`
		AssignmentID string `json:"assignmentId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Desk.Boot(r.Context(), req.ExamID, req.AssignmentID); err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, s.Desk.Status())
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	if err := s.Desk.Home(); err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, s.Desk.Status())
}
