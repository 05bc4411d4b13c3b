package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/consult"
	"github.com/Muhammadazeem-eng/acne-detect/internal/identity"
	"github.com/Muhammadazeem-eng/acne-detect/internal/profile"
	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
	"github.com/Muhammadazeem-eng/acne-detect/internal/storage"
)

// Deps holds everything the HTTP API needs.
type Deps struct {
	Identity     *identity.Manager
	Profile      *profile.Manager
	Orchestrator *consult.Orchestrator
	Sessions     *session.Registry
	Store        *storage.Store
	AILimiter    *rate.Limiter // optional; nil disables rate limiting
}

// NewHandler returns the acne-detect HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(deps.Sessions))

		r.Get("/session", handleSessionState)
		r.Get("/security-questions", handleSecurityQuestions)
		r.Post("/signup", handleSignUp(deps))
		r.Post("/login", handleLogin(deps))
		r.Post("/logout", handleLogout(deps))
		r.Post("/recover", handleRecover(deps))
		r.Post("/contact", handleContact(deps))

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)

			r.Get("/profile", handleGetProfile(deps))
			r.Put("/profile", handlePutProfile(deps))
			r.Get("/chat/history", handleChatHistory)
			r.Get("/interactions", handleListInteractions(deps))
			r.Post("/interactions/{id}/feedback", handleFeedback(deps))

			r.With(RateLimit(deps.AILimiter)).Post("/analyze", handleAnalyze(deps))
			r.With(RateLimit(deps.AILimiter)).Post("/chat", handleChat(deps))
		})
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			if err := deps.Store.Ping(); err != nil {
				httpError(w, http.StatusServiceUnavailable, apperr.CodeUnknown, "database unavailable")
				return
			}
		}
		writeOK(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, sessionFrom(r.Context()).State())
}

func handleSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, identity.SecurityQuestions)
}

func handleSignUp(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identity.SignUpRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := deps.Identity.SignUp(r.Context(), req); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusCreated, map[string]string{"message": "Signup successful! Please log in."})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		sess := sessionFrom(r.Context())
		if err := deps.Identity.Login(r.Context(), sess, req.Username, req.Password); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, sess.State())
	}
}

func handleLogout(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		deps.Identity.Logout(sess)
		writeOK(w, http.StatusOK, sess.State())
	}
}

type recoverRequest struct {
	Email          string `json:"email"`
	SecurityAnswer string `json:"security_answer"`
}

func handleRecover(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recoverRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		password, err := deps.Identity.RecoverPassword(r.Context(), req.Email, req.SecurityAnswer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]string{"password": password})
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := deps.Profile.Get(sessionFrom(r.Context()))
		if !ok {
			writeOK(w, http.StatusOK, nil)
			return
		}
		writeOK(w, http.StatusOK, p)
	}
}

func handlePutProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p profile.Profile
		if err := decodeJSON(w, r, &p); err != nil {
			writeError(w, err)
			return
		}
		saved, err := deps.Profile.Save(sessionFrom(r.Context()), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, saved)
	}
}

type contactRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

func handleContact(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contactRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		req.Message = strings.TrimSpace(req.Message)
		if req.Email == "" || req.Message == "" {
			writeError(w, apperr.MissingField("please fill out both fields"))
			return
		}

		sess := sessionFrom(r.Context())
		id, err := saveContact(deps.Store, req.Email, req.Message, sess.Username())
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusCreated, map[string]string{
			"id":      id,
			"message": "Thank you for contacting us! We will get back to you soon.",
		})
	}
}
