// Package consult builds completion requests for image analysis and
// dermatology chat and keeps the session's conversation history.
package consult

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/proxy"
	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
	"github.com/Muhammadazeem-eng/acne-detect/internal/storage"
)

// Completer is the completion service the orchestrator talks to.
// Implemented by proxy.Client.
type Completer interface {
	Complete(ctx context.Context, req proxy.ChatRequest) (*proxy.ChatResponse, error)
}

// Recorder stores the audit trail of completion calls.
// Implemented by storage.Store.
type Recorder interface {
	SaveInteraction(i storage.Interaction) error
}

// Options tune the requests sent to the completion service.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultOptions returns the chat sampling settings used in production.
func DefaultOptions() Options {
	return Options{
		Model:       proxy.DefaultModel,
		Temperature: 0.5,
		MaxTokens:   400,
	}
}

// Orchestrator runs image analyses and chat turns against a Completer.
type Orchestrator struct {
	client   Completer
	opts     Options
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator. An empty model, a temperature
// outside (0, 2] or a non-positive token limit falls back to DefaultOptions.
func NewOrchestrator(client Completer, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.Temperature <= 0 || opts.Temperature > 2 {
		opts.Temperature = def.Temperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	return &Orchestrator{
		client: client,
		opts:   opts,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetRecorder enables the interaction log. A nil recorder disables it.
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.recorder = r
}

// Model returns the model name requests are sent to.
func (o *Orchestrator) Model() string { return o.opts.Model }

// AnalyzeImage sends a JPEG or PNG image for acne analysis and returns the
// model's answer unmodified. Failures are not retried.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, sess *session.Session, img []byte) (string, error) {
	if !sess.Authenticated() {
		return "", apperr.New(apperr.CodeUnauthenticated, "please log in to analyze images")
	}
	mime, err := detectImage(img)
	if err != nil {
		return "", err
	}

	end, err := sess.Begin()
	if err != nil {
		return "", err
	}
	defer end()
	sess.SetPending(true)
	defer sess.SetPending(false)

	req := proxy.ChatRequest{
		Model:    o.opts.Model,
		Messages: BuildAnalysisPrompt(dataURI(mime, img)),
	}

	start := o.now()
	text, err := o.complete(ctx, req)
	o.record(sess.Username(), storage.KindAnalysis, fmt.Sprintf("%s, %d bytes", mime, len(img)), text, start, err)
	if err != nil {
		o.logger.Warn("image analysis failed", "username", sess.Username(), "error", err)
		return "", apperr.Wrap(apperr.CodeAnalysisService, "image analysis failed, please try again", err)
	}
	return text, nil
}

// Chat appends utterance to the session history, asks the dermatologist
// and appends the reply. The user turn is appended before the call, so a
// failed call leaves it in history without an answer. Any non-empty
// utterance is sent as typed.
func (o *Orchestrator) Chat(ctx context.Context, sess *session.Session, utterance string) (string, error) {
	if utterance == "" {
		return "", apperr.MissingField("a question is required")
	}
	if !sess.Authenticated() {
		return "", apperr.New(apperr.CodeUnauthenticated, "please log in to chat with the dermatologist")
	}

	end, err := sess.Begin()
	if err != nil {
		return "", err
	}
	defer end()

	sess.Append(session.Exchange{Role: session.RoleUser, Content: utterance})
	sess.SetPending(true)
	defer sess.SetPending(false)

	temp := o.opts.Temperature
	maxTokens := o.opts.MaxTokens
	req := proxy.ChatRequest{
		Model:       o.opts.Model,
		Messages:    BuildChatPrompt(sess.History()),
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}

	start := o.now()
	reply, err := o.complete(ctx, req)
	o.record(sess.Username(), storage.KindChat, utterance, reply, start, err)
	if err != nil {
		o.logger.Warn("consultation failed", "username", sess.Username(), "error", err)
		return "", apperr.Wrap(apperr.CodeConsultationService, "the AI dermatologist is unavailable, please try again", err)
	}

	sess.Append(session.Exchange{Role: session.RoleAssistant, Content: reply})
	return reply, nil
}

func (o *Orchestrator) complete(ctx context.Context, req proxy.ChatRequest) (string, error) {
	resp, err := o.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text()
}

// record writes one interaction to the log. Recording failures are logged
// and never fail the consultation.
func (o *Orchestrator) record(username, kind, input, response string, start time.Time, callErr error) {
	if o.recorder == nil {
		return
	}
	i := storage.Interaction{
		ID:        uuid.New().String(),
		CreatedAt: start.UTC(),
		Username:  username,
		Kind:      kind,
		Input:     input,
		Model:     o.opts.Model,
		Response:  response,
		Status:    storage.StatusCompleted,
		LatencyMS: o.now().Sub(start).Milliseconds(),
	}
	if callErr != nil {
		i.Status = storage.StatusFailed
		i.Error = callErr.Error()
	}
	if err := o.recorder.SaveInteraction(i); err != nil {
		o.logger.Error("recording interaction", "kind", kind, "error", err)
	}
}
