package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	authmw "github.com/mind-engage/mindengage-quizdesk/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quizdesk/internal/rbac"
)

const (
	GuestCookie    = "qd_guest_id"
	guestPrefix    = "guest|"
	guestCookieTTL = 30 * 24 * time.Hour
)

// IsGuest reports whether sub was issued by GuestLoginHandler.
func IsGuest(sub string) bool { return strings.HasPrefix(sub, guestPrefix) }

// GuestLoginHandler issues a guest token. A browser that already holds a
// guest cookie keeps its id.
func GuestLoginHandler(a *authmw.AuthService, enabled bool) http.HandlerFunc {
	type out struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
		Role        string `json:"role"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			http.Error(w, "guest access disabled", http.StatusForbidden)
			return
		}

		var id string
		if c, err := r.Cookie(GuestCookie); err == nil && IsGuest(c.Value) {
			id = c.Value
		} else {
			id = guestPrefix + uuid.NewString()
		}

		tok, err := a.IssueJWT(id, rbac.RoleGuest)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     GuestCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(guestCookieTTL),
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out{
			AccessToken: tok,
			Username:    "guest-" + id[len(id)-6:],
			Role:        rbac.RoleGuest,
		})
	}
}
