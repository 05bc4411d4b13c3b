package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/consult"
	"github.com/Muhammadazeem-eng/acne-detect/internal/storage"
)

// multipartOverhead is the slack allowed on top of the image for form
// boundaries and headers.
const multipartOverhead = 1 << 20

const (
	defaultInteractionLimit = 20
	maxInteractionLimit     = 100
)

func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, err := readImage(w, r)
		if err != nil {
			writeError(w, err)
			return
		}

		result, err := deps.Orchestrator.AnalyzeImage(r.Context(), sessionFrom(r.Context()), img)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]string{"result": result})
	}
}

// readImage accepts either a multipart form with an "image" file field or
// a raw request body.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, consult.MaxImageBytes+multipartOverhead)
	defer r.Body.Close()

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(consult.MaxImageBytes); err != nil {
			return nil, imageReadError(err)
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, apperr.MissingField("please upload an image")
		}
		defer f.Close()
		src = f
	}

	data, err := io.ReadAll(io.LimitReader(src, consult.MaxImageBytes+1))
	if err != nil {
		return nil, imageReadError(err)
	}
	return data, nil
}

func imageReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("image is larger than 10 MB")
	}
	return apperr.Wrap(apperr.CodeValidation, "could not read the uploaded image", err)
}

type chatRequest struct {
	Message string `json:"message"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		reply, err := deps.Orchestrator.Chat(r.Context(), sessionFrom(r.Context()), req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

func handleChatHistory(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, sessionFrom(r.Context()).History())
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultInteractionLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, apperr.Validation("limit must be a positive integer"))
				return
			}
			limit = min(n, maxInteractionLimit)
		}

		items, err := deps.Store.ListInteractions(sessionFrom(r.Context()).Username(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, items)
	}
}

type feedbackRequest struct {
	Score int    `json:"score"`
	Notes string `json:"notes"`
}

func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req feedbackRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Score < -1 || req.Score > 1 {
			writeError(w, apperr.Validation("score must be -1, 0 or 1"))
			return
		}

		err := deps.Store.UpdateFeedback(id, sessionFrom(r.Context()).Username(), req.Score, req.Notes)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, apperr.New(apperr.CodeNotFound, "interaction not found"))
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		ix, err := deps.Store.GetInteraction(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, http.StatusOK, ix)
	}
}

func saveContact(store *storage.Store, email, message, username string) (string, error) {
	m := storage.ContactMessage{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Email:     email,
		Message:   message,
		Username:  username,
	}
	if err := store.SaveContactMessage(m); err != nil {
		return "", err
	}
	return m.ID, nil
}
