package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptvault/internal/apperr"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the wire shape of every failure.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// statusFor maps a failure kind to its HTTP status and wire code.
func statusFor(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case apperr.KindForbidden:
		return http.StatusForbidden, "FORBIDDEN"
	case apperr.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case apperr.KindInvalidState, apperr.KindValidation:
		return http.StatusBadRequest, "BAD_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(apperr.KindOf(err))

	message := "internal error"
	var typed *apperr.Error
	if status != http.StatusInternalServerError && errors.As(err, &typed) {
		message = typed.Message
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(r.Context()),
	}})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("malformed JSON body: %v", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	return n, nil
}

// queryStringPtr returns the query parameter, or nil when absent or empty.
func queryStringPtr(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}

// queryList collects repeated and comma-separated values of a parameter.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
