package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction kinds.
const (
	KindAnalysis = "analysis"
	KindChat     = "chat"
)

// Interaction statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Interaction is one audited call to the completion service.
type Interaction struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Username      string    `json:"username"`
	Kind          string    `json:"kind"`
	Input         string    `json:"input"`
	Model         string    `json:"model"`
	Response      string    `json:"response"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	LatencyMS     int64     `json:"latency_ms"`
	FeedbackScore int       `json:"feedback_score"`
	FeedbackNotes string    `json:"feedback_notes,omitempty"`
}

// ContactMessage is a message submitted through the contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Username  string    `json:"username,omitempty"`
}
