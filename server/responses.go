package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-identity-service/credentials"
	apperrors "github.com/jrsteele09/go-identity-service/internal/errors"
	"github.com/rs/zerolog"
)

const (
	contentTypeJSON = "application/json"
	maxBodyBytes    = 1 << 20
)

// errorResponse is the body of every non-2xx JSON response
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// requestError is a client mistake whose message is safe to echo back.
type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func (e *requestError) Unwrap() error { return apperrors.ErrInvalidRequest }

var (
	unauthorizedResponse  = errorResponse{Error: "unauthorized", Message: "Unauthorized"}
	conflictResponse      = errorResponse{Error: "conflict", Message: "Username already exists"}
	internalErrorResponse = errorResponse{Error: "internal_error", Message: "Internal server error"}
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, unauthorizedResponse)
}

// writeError maps a service error onto its HTTP status. Every credential or
// token failure, including a user that no longer exists, is a bare 401.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrUnauthorized),
		apperrors.Is(err, apperrors.ErrInvalidCredentials),
		apperrors.Is(err, apperrors.ErrInvalidToken),
		apperrors.Is(err, apperrors.ErrTokenRevoked),
		apperrors.Is(err, apperrors.ErrNotFound):
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("request unauthorized")
		writeUnauthorized(w)
	case apperrors.Is(err, apperrors.ErrConflict):
		writeJSON(w, http.StatusConflict, conflictResponse)
	case apperrors.Is(err, apperrors.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: invalidMessage(err)})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, internalErrorResponse)
	}
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// Failures are *requestError values.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &requestError{message: "malformed JSON body"}
	}
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if apperrors.As(err, &fieldErrs) {
			return &requestError{message: describeFieldErrors(fieldErrs)}
		}
		return &requestError{message: "invalid body"}
	}
	return nil
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		var msg string
		switch e.Tag() {
		case "required":
			msg = "is required"
		case "max":
			msg = "must be at most " + e.Param() + " characters"
		case "min":
			msg = "must be at least " + e.Param() + " characters"
		default:
			msg = "is invalid"
		}
		messages = append(messages, e.Field()+" "+msg)
	}
	return strings.Join(messages, "; ")
}

func invalidMessage(err error) string {
	var reqErr *requestError
	switch {
	case apperrors.As(err, &reqErr):
		return reqErr.message
	case apperrors.Is(err, credentials.ErrSecretTooLong):
		return "password must be at most 72 bytes"
	default:
		return "Invalid request"
	}
}
