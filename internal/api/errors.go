package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ErrorBody is the error half of every response envelope.
type ErrorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// Envelope wraps every response: {"ok":true,"data":...} on success and
// {"ok":false,"error":{"code","message"}} on failure.
type Envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

func writeOK(w http.ResponseWriter, status int, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		httpError(w, http.StatusInternalServerError, apperr.CodeUnknown, "encoding response: %v", err)
		return
	}
	writeEnvelope(w, status, Envelope{OK: true, Data: b})
}

// writeError turns any error into an envelope. Domain errors keep their
// code and message; everything else is reported as UNKNOWN without details.
func writeError(w http.ResponseWriter, err error) {
	code := apperr.GetCode(err)
	if code == apperr.CodeUnknown {
		slog.Error("unhandled error", "error", err)
	}
	writeEnvelope(w, code.HTTPStatus(), Envelope{
		Error: &ErrorBody{Code: code, Message: apperr.Message(err)},
	})
}

func httpError(w http.ResponseWriter, status int, code apperr.Code, format string, args ...any) {
	writeEnvelope(w, status, Envelope{
		Error: &ErrorBody{Code: code, Message: fmt.Sprintf(format, args...)},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// decodeJSON reads a bounded JSON body into v. Malformed input is a
// VALIDATION error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body too large")
		}
		return apperr.Wrap(apperr.CodeValidation, "invalid request body", err)
	}
	return nil
}
