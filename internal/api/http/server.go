// Package http is the JSON API the browser UI talks to. Handlers are thin:
// they decode, call the desk or the admin panel, and map errors.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/admin"
	"github.com/mind-engage/mindengage-quizdesk/internal/auth"
	authmw "github.com/mind-engage/mindengage-quizdesk/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quizdesk/internal/desk"
	"github.com/mind-engage/mindengage-quizdesk/internal/rbac"
	"github.com/mind-engage/mindengage-quizdesk/internal/storage"
	syncx "github.com/mind-engage/mindengage-quizdesk/internal/sync"
)

// EventLister reads the local event journal.
type EventLister interface {
	List(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

type Server struct {
	Desk        *desk.Desk
	Admin       *admin.Panel
	Auth        *authmw.AuthService
	Blobs       storage.BlobStore // nil disables file routes
	Events      EventLister       // nil disables the journal route
	EnableGuest bool
	Log         logrus.FieldLogger
}

func (s *Server) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Mount registers every route on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/auth/login", s.login)
	r.Post("/auth/guest", auth.GuestLoginHandler(s.Auth, s.EnableGuest))

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(s.Auth))

		pr.Get("/state", s.state)
		pr.Post("/auth/logout", s.logout)
		pr.Post("/home", s.home)

		pr.With(rbac.Require(rbac.PermQuizTake)).Post("/boot", s.boot)

		pr.Route("/practice", func(pr chi.Router) {
			pr.Use(rbac.Require(rbac.PermTopicPractice))
			pr.Post("/grade", s.selectGrade)
			pr.Get("/topics", s.topics)
			pr.Post("/topic", s.selectTopic)
			pr.Post("/levels/{level}/start", s.startLevel)
		})

		pr.With(rbac.Require(rbac.PermExamInstant)).Post("/exams/{examID}/start", s.instantExam)

		pr.Route("/assignments", func(pr chi.Router) {
			pr.Use(rbac.Require(rbac.PermAssignment))
			pr.Get("/", s.assigned)
			pr.Get("/{assignmentID}", s.assignmentDetail)
			pr.Post("/{assignmentID}/start", s.startAssignment)
			pr.Get("/{assignmentID}/attempts", s.assignmentAttempts)
		})

		pr.Route("/quiz", func(pr chi.Router) {
			pr.Use(rbac.Require(rbac.PermQuizTake))
			pr.Get("/", s.quizSnapshot)
			pr.Put("/answer", s.answerCurrent)
			pr.Put("/answers/{index}", s.answer)
			pr.Post("/next", s.navigate(1))
			pr.Post("/previous", s.navigate(-1))
			pr.Post("/jump/{index}", s.jump)
			pr.Post("/finish", s.finish)
			pr.Post("/visibility", s.visibility)
			pr.Post("/exit", s.exit)
		})

		pr.With(rbac.Require(rbac.PermLeaderboard)).Get("/leaderboard", s.leaderboard)
		pr.With(rbac.Require(rbac.PermTheoryView)).Get("/theory", s.theory)
		pr.With(rbac.Require(rbac.PermTutorChat)).Post("/tutor/chat", s.chat)

		pr.Route("/admin", s.mountAdmin)
	})
}
