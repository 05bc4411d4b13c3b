// Package identity implements signup, login and password recovery on top
// of the credential store.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/credentials"
)

// SecurityQuestions is the fixed set of recovery questions offered at signup.
var SecurityQuestions = []string{
	"What is your pet's name?",
	"What is your mother's maiden name?",
	"What is your favorite book?",
}

// SignUpRequest carries the signup form.
type SignUpRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

// SessionAuth is the part of a session the identity flows mutate.
// Implemented by session.Session.
type SessionAuth interface {
	Authenticate(username string)
	Logout()
}

// Manager runs the identity flows. It is safe for concurrent use.
type Manager struct {
	store  credentials.Store
	logger *slog.Logger

	// mu makes the signup uniqueness check and append atomic.
	mu sync.RWMutex
}

// NewManager creates a Manager backed by store.
func NewManager(store credentials.Store) *Manager {
	return &Manager{store: store, logger: slog.Default()}
}

// SignUp registers a new user. It never authenticates the caller.
// Line endings in every field are normalized before storing.
func (m *Manager) SignUp(ctx context.Context, req SignUpRequest) error {
	if req.Username == "" || req.Email == "" || req.Password == "" ||
		req.SecurityQuestion == "" || req.SecurityAnswer == "" {
		return apperr.MissingField("all fields are required")
	}
	if !slices.Contains(SecurityQuestions, req.SecurityQuestion) {
		return apperr.Validation("unknown security question")
	}

	rec := credentials.Record{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	}.Normalized()

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	for _, r := range records {
		if r.Username == rec.Username {
			return apperr.New(apperr.CodeDuplicateUser, "username already exists")
		}
	}

	if err := m.store.Append(rec); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	m.logger.Info("user signed up", "username", rec.Username)
	return nil
}

// Login authenticates sess as username when a record matches both
// username and password exactly, after line-ending normalization.
func (m *Manager) Login(ctx context.Context, sess SessionAuth, username, password string) error {
	if username == "" || password == "" {
		return apperr.MissingField("username and password are required")
	}
	username = credentials.NormalizeNewlines(username)
	password = credentials.NormalizeNewlines(password)

	m.mu.RLock()
	records, err := m.store.Load()
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	for _, r := range records {
		if r.Username == username && r.Password == password {
			sess.Authenticate(username)
			m.logger.Info("user logged in", "username", username)
			return nil
		}
	}
	return apperr.New(apperr.CodeInvalidCredentials, "invalid username or password")
}

// RecoverPassword returns the stored password of the first record, in
// insertion order, whose email and security answer both match exactly.
func (m *Manager) RecoverPassword(ctx context.Context, email, answer string) (string, error) {
	fail := apperr.New(apperr.CodeRecoveryFailed, "no account matches that email and security answer")
	if email == "" || answer == "" {
		return "", fail
	}
	email = credentials.NormalizeNewlines(email)
	answer = credentials.NormalizeNewlines(answer)

	m.mu.RLock()
	records, err := m.store.Load()
	m.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	for _, r := range records {
		if r.Email == email && r.SecurityAnswer == answer {
			m.logger.Info("password recovered", "username", r.Username)
			return r.Password, nil
		}
	}
	return "", fail
}

// Logout drops the authentication of sess. It is idempotent.
func (m *Manager) Logout(sess SessionAuth) {
	sess.Logout()
}
