package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
)

const maxAnswerBody = 16 << 10

func (s *Server) quizSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Desk.Quiz().Snapshot())
}

func readAnswer(w http.ResponseWriter, r *http.Request) (quiz.Answer, bool) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxAnswerBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad body"})
		return nil, false
	}
	a, err := quiz.DecodeAnswer(b)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return nil, false
	}
	return a, true
}

// PUT /quiz/answers/{index} {"kind":"mc","choice":"B"}
func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad index"})
		return
	}
	a, ok := readAnswer(w, r)
	if !ok {
		return
	}
	if err := s.Desk.Quiz().SetAnswer(idx, a); err != nil {
		writeError(w, s.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) answerCurrent(w http.ResponseWriter, r *http.Request) {
	a, ok := readAnswer(w, r)
	if !ok {
		return
	}
	if err := s.Desk.Quiz().SetCurrentAnswer(a); err != nil {
		writeError(w, s.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) navigate(dir int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		idx, err := s.Desk.Quiz().Navigate(dir)
		if err != nil {
			writeError(w, s.log(), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"currentIndex": idx})
	}
}

func (s *Server) jump(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad index"})
		return
	}
	idx, err = s.Desk.Quiz().Jump(idx)
	if err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"currentIndex": idx})
}

// POST /quiz/finish. A failed submission still returns the local result,
// with the failure in submitError.
func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	res, err := s.Desk.Finish(r.Context())
	if res == nil {
		if err == nil {
			err = quiz.ErrNotActive
		}
		writeError(w, s.log(), err)
		return
	}
	out := map[string]any{"result": res}
	if err != nil {
		s.log().WithError(err).Warn("quiz submission failed")
		out["submitError"] = "Không thể nộp bài lên máy chủ. Kết quả được chấm tại máy."
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /quiz/visibility {"hidden": true}
func (s *Server) visibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hidden bool `json:"hidden"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	count, finished := s.Desk.Visibility(r.Context(), req.Hidden)
	writeJSON(w, http.StatusOK, map[string]any{"tabSwitchCount": count, "finished": finished})
}

func (s *Server) exit(w http.ResponseWriter, _ *http.Request) {
	if err := s.Desk.ExitResult(); err != nil {
		writeError(w, s.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, s.Desk.Status())
}
