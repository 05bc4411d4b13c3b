package session

import (
	"context"
	"testing"
	"time"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/profile"
)

func TestNew_Anonymous(t *testing.T) {
	s := New("abc")

	st := s.State()
	if st.ID != "abc" || st.Authenticated || st.Username != "" || st.Pending || st.HistoryLen != 0 || st.HasProfile {
		t.Errorf("State() = %+v, want fresh anonymous session", st)
	}
	if _, ok := s.Profile(); ok {
		t.Error("Profile() ok = true on new session")
	}
}

func TestAuthenticateAndLogout(t *testing.T) {
	s := New("abc")
	s.SetProfile(profile.Profile{Basic: profile.BasicInfo{FirstName: "Alice"}})
	s.Append(Exchange{Role: RoleUser, Content: "hi"})

	s.Authenticate("alice")
	if !s.Authenticated() || s.Username() != "alice" {
		t.Fatalf("after Authenticate: authenticated=%v username=%q", s.Authenticated(), s.Username())
	}

	s.Logout()
	if s.Authenticated() || s.Username() != "" {
		t.Errorf("after Logout: authenticated=%v username=%q", s.Authenticated(), s.Username())
	}
	if _, ok := s.Profile(); !ok {
		t.Error("Logout dropped the profile")
	}
	if len(s.History()) != 1 {
		t.Error("Logout dropped the history")
	}

	// Idempotent.
	s.Logout()
	if s.Authenticated() {
		t.Error("second Logout re-authenticated")
	}
}

func TestHistory_AppendOrderAndCopy(t *testing.T) {
	s := New("abc")
	s.Append(Exchange{Role: RoleUser, Content: "one"})
	s.Append(Exchange{Role: RoleAssistant, Content: "two"})

	h := s.History()
	if len(h) != 2 || h[0].Content != "one" || h[1].Content != "two" {
		t.Fatalf("History() = %+v", h)
	}

	h[0].Content = "mutated"
	if s.History()[0].Content != "one" {
		t.Error("History() returned shared backing array")
	}
}

func TestBegin_Busy(t *testing.T) {
	s := New("abc")

	end, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := s.Begin(); !apperr.IsCode(err, apperr.CodeSessionBusy) {
		t.Fatalf("second Begin err = %v, want SESSION_BUSY", err)
	}

	end()
	end() // safe to call twice

	end2, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin after end: %v", err)
	}
	end2()
}

func TestSetPending(t *testing.T) {
	s := New("abc")
	s.SetPending(true)
	if !s.State().Pending {
		t.Error("Pending = false after SetPending(true)")
	}
	s.SetPending(false)
	if s.State().Pending {
		t.Error("Pending = true after SetPending(false)")
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry()

	s1, created := r.GetOrCreate("")
	if !created || s1.ID() == "" {
		t.Fatalf("GetOrCreate(\"\") = %v, created=%v", s1.ID(), created)
	}

	s2, created := r.GetOrCreate(s1.ID())
	if created || s2 != s1 {
		t.Errorf("GetOrCreate(existing) returned new session")
	}

	s3, created := r.GetOrCreate("unknown-id")
	if !created || s3.ID() == "unknown-id" {
		t.Errorf("GetOrCreate(unknown) = %q created=%v, want fresh random id", s3.ID(), created)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.now = func() time.Time { return now }

	idle := r.Create()
	busy := r.Create()
	busy.SetPending(true)
	fresh := r.Create()

	now = now.Add(2 * time.Hour)
	r.Get(fresh.ID())

	if n := r.Sweep(time.Hour); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, ok := r.Get(idle.ID()); ok {
		t.Error("idle session survived sweep")
	}
	if _, ok := r.Get(busy.ID()); !ok {
		t.Error("pending session was swept")
	}
	if _, ok := r.Get(fresh.ID()); !ok {
		t.Error("recently seen session was swept")
	}
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
