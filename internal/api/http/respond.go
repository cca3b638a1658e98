package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/admin"
	"github.com/mind-engage/mindengage-quizdesk/internal/assignment"
	"github.com/mind-engage/mindengage-quizdesk/internal/desk"
	"github.com/mind-engage/mindengage-quizdesk/internal/exam"
	"github.com/mind-engage/mindengage-quizdesk/internal/gateway"
	"github.com/mind-engage/mindengage-quizdesk/internal/progress"
	"github.com/mind-engage/mindengage-quizdesk/internal/quiz"
	"github.com/mind-engage/mindengage-quizdesk/internal/sheets"
	"github.com/mind-engage/mindengage-quizdesk/internal/storage"
	"github.com/mind-engage/mindengage-quizdesk/internal/tutor"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json"})
		return false
	}
	return true
}

// writeError maps domain errors to statuses. Backend messages are shown to
// the user as-is; transport details are not.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		ve *admin.ValidationError
		le *progress.LockedError
		re *gateway.RemoteError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: ve.Fields})
	case errors.As(err, &le):
		writeJSON(w, http.StatusForbidden, errorBody{Error: le.Error()})
	case errors.As(err, &re):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: re.Message})
	case errors.Is(err, sheets.ErrMalformedExam), errors.Is(err, gateway.ErrMalformed):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Đề thi không hợp lệ hoặc không tồn tại."})
	case errors.Is(err, gateway.ErrTransport):
		log.WithError(err).Warn("backend unreachable")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Không thể kết nối máy chủ. Vui lòng thử lại."})
	case errors.Is(err, desk.ErrNotSignedIn), errors.Is(err, assignment.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	case errors.Is(err, desk.ErrNotStaff):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, desk.ErrQuizLive), errors.Is(err, quiz.ErrNotActive), errors.Is(err, assignment.ErrStale):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, desk.ErrEmptyBank), errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, desk.ErrNoTopic), errors.Is(err, desk.ErrEmptyExamRef),
		errors.Is(err, quiz.ErrIndex), errors.Is(err, quiz.ErrBadAnswer), errors.Is(err, quiz.ErrNoQuestions),
		errors.Is(err, admin.ErrMissingID), errors.Is(err, exam.ErrEmptyStructure), errors.Is(err, storage.ErrBadKey):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, admin.ErrNoTutor), errors.Is(err, admin.ErrNoBlobStore), errors.Is(err, tutor.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
