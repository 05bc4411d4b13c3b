// Package session holds the ephemeral per-visitor state: authentication,
// the saved profile and the consultation history.
package session

import (
	"sync"
	"time"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/profile"
)

// Role identifies the author of an Exchange.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Exchange is one turn of the consultation history.
type Exchange struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is a point-in-time snapshot of a Session.
type State struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Pending       bool   `json:"pending"`
	HistoryLen    int    `json:"history_len"`
	HasProfile    bool   `json:"has_profile"`
}

// Session is the state of one visitor. The zero value is not usable; create
// sessions with New or through a Registry.
type Session struct {
	id string

	// op is held for the duration of one AI operation (image analysis or chat
	// turn). Login and logout only touch the auth fields and never take it.
	op sync.Mutex

	mu            sync.Mutex
	authenticated bool
	username      string
	profile       *profile.Profile
	history       []Exchange
	pending       bool
	lastSeen      time.Time
}

// New returns an anonymous session with the given id.
func New(id string) *Session {
	return &Session{id: id, lastSeen: time.Now()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Begin reserves the session for one operation. It fails with SESSION_BUSY
// when another operation is still running. The returned func releases the
// reservation and must be called exactly once.
func (s *Session) Begin() (end func(), err error) {
	if !s.op.TryLock() {
		return nil, apperr.New(apperr.CodeSessionBusy, "another request is still in progress")
	}
	var once sync.Once
	return func() { once.Do(s.op.Unlock) }, nil
}

// SetPending marks whether an AI call is in flight.
func (s *Session) SetPending(v bool) {
	s.mu.Lock()
	s.pending = v
	s.mu.Unlock()
}

// Authenticate marks the session as logged in as username.
func (s *Session) Authenticate(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.username = username
}

// Logout clears the authentication flags. Profile and history are kept.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.username = ""
}

// Authenticated reports whether the session is logged in.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Username returns the active username, or "" when anonymous.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Profile implements profile.Holder.
func (s *Session) Profile() (profile.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return profile.Profile{}, false
	}
	return *s.profile, true
}

// SetProfile implements profile.Holder.
func (s *Session) SetProfile(p profile.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &p
}

// Append adds e to the end of the history.
func (s *Session) Append(e Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
}

// History returns a copy of the conversation in chronological order.
func (s *Session) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:            s.id,
		Authenticated: s.authenticated,
		Username:      s.username,
		Pending:       s.pending,
		HistoryLen:    len(s.history),
		HasProfile:    s.profile != nil,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return 0
	}
	return now.Sub(s.lastSeen)
}
