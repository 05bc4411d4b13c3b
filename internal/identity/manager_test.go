package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/credentials"
	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
)

// --- Mock store ---

type mockStore struct {
	mu      sync.Mutex
	records []credentials.Record
	loadErr error
}

func (m *mockStore) Load() ([]credentials.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]credentials.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *mockStore) Append(r credentials.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

const petQuestion = "What is your pet's name?"

func alice() SignUpRequest {
	return SignUpRequest{
		Username:         "alice",
		Email:            "a@x.com",
		Password:         "pw1",
		SecurityQuestion: petQuestion,
		SecurityAnswer:   "Rex",
	}
}

// --- Tests ---

func TestSignUp_DuplicateScenario(t *testing.T) {
	store := &mockStore{}
	mgr := NewManager(store)
	ctx := context.Background()

	if err := mgr.SignUp(ctx, alice()); err != nil {
		t.Fatalf("first SignUp: %v", err)
	}

	again := alice()
	again.Email = "other@x.com"
	err := mgr.SignUp(ctx, again)
	if !apperr.IsCode(err, apperr.CodeDuplicateUser) {
		t.Fatalf("second SignUp err = %v, want DUPLICATE_USER", err)
	}
	if store.count() != 1 {
		t.Errorf("record count = %d, want 1", store.count())
	}
}

func TestSignUp_AppendsVerbatimWithoutLogin(t *testing.T) {
	store := &mockStore{}
	mgr := NewManager(store)

	req := SignUpRequest{
		Username:         "Bob ",
		Email:            "B@X.com",
		Password:         " p,w ",
		SecurityQuestion: "What is your favorite book?",
		SecurityAnswer:   "War and Peace",
	}
	if err := mgr.SignUp(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	want := credentials.Record{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	}
	if len(store.records) != 1 || store.records[0] != want {
		t.Errorf("records = %+v, want [%+v]", store.records, want)
	}
}

func TestSignUp_DoesNotAuthenticate(t *testing.T) {
	mgr := NewManager(&mockStore{})
	sess := session.New("s1")

	if err := mgr.SignUp(context.Background(), alice()); err != nil {
		t.Fatal(err)
	}
	if sess.Authenticated() {
		t.Error("session authenticated after signup")
	}
}

func TestSignUp_MissingField(t *testing.T) {
	mutations := map[string]func(*SignUpRequest){
		"username": func(r *SignUpRequest) { r.Username = "" },
		"email":    func(r *SignUpRequest) { r.Email = "" },
		"password": func(r *SignUpRequest) { r.Password = "" },
		"question": func(r *SignUpRequest) { r.SecurityQuestion = "" },
		"answer":   func(r *SignUpRequest) { r.SecurityAnswer = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			store := &mockStore{}
			req := alice()
			mutate(&req)

			err := NewManager(store).SignUp(context.Background(), req)
			if !apperr.IsCode(err, apperr.CodeMissingField) {
				t.Fatalf("err = %v, want MISSING_FIELD", err)
			}
			if store.count() != 0 {
				t.Error("record appended despite missing field")
			}
		})
	}
}

func TestSignUp_UnknownQuestion(t *testing.T) {
	req := alice()
	req.SecurityQuestion = "pet"

	err := NewManager(&mockStore{}).SignUp(context.Background(), req)
	if !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("err = %v, want VALIDATION", err)
	}
}

func TestSignUp_StoreError(t *testing.T) {
	boom := errors.New("disk on fire")
	err := NewManager(&mockStore{loadErr: boom}).SignUp(context.Background(), alice())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestSignUp_ConcurrentSameUsername(t *testing.T) {
	store := &mockStore{}
	mgr := NewManager(store)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- mgr.SignUp(context.Background(), alice())
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !apperr.IsCode(err, apperr.CodeDuplicateUser):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || store.count() != 1 {
		t.Errorf("successes = %d, records = %d, want 1 and 1", ok, store.count())
	}
}

func TestLogin_Scenario(t *testing.T) {
	mgr := NewManager(&mockStore{})
	ctx := context.Background()
	if err := mgr.SignUp(ctx, alice()); err != nil {
		t.Fatal(err)
	}
	sess := session.New("s1")

	err := mgr.Login(ctx, sess, "alice", "wrong")
	if !apperr.IsCode(err, apperr.CodeInvalidCredentials) {
		t.Fatalf("Login(wrong) err = %v, want INVALID_CREDENTIALS", err)
	}
	if sess.Authenticated() {
		t.Fatal("session authenticated after failed login")
	}

	if err := mgr.Login(ctx, sess, "alice", "pw1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !sess.Authenticated() || sess.Username() != "alice" {
		t.Errorf("authenticated=%v username=%q, want true, alice", sess.Authenticated(), sess.Username())
	}
}

func TestLogin_ExactMatchOnly(t *testing.T) {
	store := &mockStore{records: []credentials.Record{
		{Username: "alice", Password: "pw1"},
		{Username: "bob", Password: "pw2"},
	}}
	mgr := NewManager(store)

	tests := []struct {
		user, pass string
		ok         bool
	}{
		{"alice", "pw1", true},
		{"bob", "pw2", true},
		{"Alice", "pw1", false},
		{"alice", "PW1", false},
		{"alice ", "pw1", false},
		{"alice", "pw2", false},
		{"carol", "pw1", false},
	}
	for _, tt := range tests {
		sess := session.New("s")
		err := mgr.Login(context.Background(), sess, tt.user, tt.pass)
		if tt.ok {
			if err != nil {
				t.Errorf("Login(%q,%q) = %v, want success", tt.user, tt.pass, err)
			}
			continue
		}
		if !apperr.IsCode(err, apperr.CodeInvalidCredentials) {
			t.Errorf("Login(%q,%q) = %v, want INVALID_CREDENTIALS", tt.user, tt.pass, err)
		}
	}
}

func TestLogin_MissingField(t *testing.T) {
	mgr := NewManager(&mockStore{})
	for _, tc := range [][2]string{{"", "pw"}, {"alice", ""}} {
		err := mgr.Login(context.Background(), session.New("s"), tc[0], tc[1])
		if !apperr.IsCode(err, apperr.CodeMissingField) {
			t.Errorf("Login(%q,%q) = %v, want MISSING_FIELD", tc[0], tc[1], err)
		}
	}
}

func TestRecoverPassword(t *testing.T) {
	store := &mockStore{records: []credentials.Record{
		{Username: "alice", Email: "a@x.com", Password: "pw1", SecurityAnswer: "Rex"},
		{Username: "alice2", Email: "a@x.com", Password: "pw-second", SecurityAnswer: "Rex"},
		{Username: "bob", Email: "b@x.com", Password: "pw2", SecurityAnswer: "Dune"},
	}}
	mgr := NewManager(store)
	ctx := context.Background()

	got, err := mgr.RecoverPassword(ctx, "a@x.com", "Rex")
	if err != nil {
		t.Fatalf("RecoverPassword: %v", err)
	}
	if got != "pw1" {
		t.Errorf("RecoverPassword = %q, want first match pw1", got)
	}

	if got, _ := mgr.RecoverPassword(ctx, "b@x.com", "Dune"); got != "pw2" {
		t.Errorf("RecoverPassword(bob) = %q, want pw2", got)
	}

	for _, tc := range [][2]string{{"a@x.com", "rex"}, {"b@x.com", "Rex"}, {"", ""}, {"nobody@x.com", "Rex"}} {
		if _, err := mgr.RecoverPassword(ctx, tc[0], tc[1]); !apperr.IsCode(err, apperr.CodeRecoveryFailed) {
			t.Errorf("RecoverPassword(%q,%q) err = %v, want RECOVERY_FAILED", tc[0], tc[1], err)
		}
	}
}

func TestLogout_Idempotent(t *testing.T) {
	mgr := NewManager(&mockStore{records: []credentials.Record{{Username: "alice", Password: "pw1"}}})
	sess := session.New("s")
	if err := mgr.Login(context.Background(), sess, "alice", "pw1"); err != nil {
		t.Fatal(err)
	}

	mgr.Logout(sess)
	mgr.Logout(sess)
	if sess.Authenticated() || sess.Username() != "" {
		t.Errorf("authenticated=%v username=%q after logout", sess.Authenticated(), sess.Username())
	}
}

func TestWithCSVStore(t *testing.T) {
	store := credentials.Open(t.TempDir())
	mgr := NewManager(store)
	ctx := context.Background()

	if err := mgr.SignUp(ctx, alice()); err != nil {
		t.Fatal(err)
	}

	// A fresh manager over the same file sees the record.
	mgr2 := NewManager(credentials.NewCSVStore(store.Path()))
	if err := mgr2.SignUp(ctx, alice()); !apperr.IsCode(err, apperr.CodeDuplicateUser) {
		t.Fatalf("SignUp over reopened store err = %v, want DUPLICATE_USER", err)
	}
	sess := session.New("s")
	if err := mgr2.Login(ctx, sess, "alice", "pw1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestCRLFInputsRoundTripThroughCSVStore(t *testing.T) {
	mgr := NewManager(credentials.Open(t.TempDir()))
	ctx := context.Background()

	req := alice()
	req.Password = "line1\r\nline2"
	req.SecurityAnswer = "Rex\r\nJr"
	if err := mgr.SignUp(ctx, req); err != nil {
		t.Fatal(err)
	}

	sess := session.New("s")
	if err := mgr.Login(ctx, sess, req.Username, req.Password); err != nil {
		t.Fatalf("Login with signup password: %v", err)
	}
	if !sess.Authenticated() {
		t.Error("session not authenticated after login")
	}

	got, err := mgr.RecoverPassword(ctx, req.Email, req.SecurityAnswer)
	if err != nil {
		t.Fatalf("RecoverPassword with signup answer: %v", err)
	}
	if got != "line1\nline2" {
		t.Errorf("RecoverPassword = %q, want %q", got, "line1\nline2")
	}

	// The recovered password logs in as well.
	if err := mgr.Login(ctx, session.New("s2"), req.Username, got); err != nil {
		t.Errorf("Login with recovered password: %v", err)
	}
}

func TestLogin_DuringPendingOperation(t *testing.T) {
	mgr := NewManager(&mockStore{records: []credentials.Record{{Username: "alice", Password: "pw1"}}})
	sess := session.New("s")

	end, err := sess.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer end()

	if err := mgr.Login(context.Background(), sess, "alice", "pw1"); err != nil {
		t.Fatalf("Login while an operation is pending: %v", err)
	}
	mgr.Logout(sess)
	if sess.Authenticated() {
		t.Error("still authenticated after logout")
	}
}
