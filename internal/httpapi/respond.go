package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ent0n29/companion/internal/policy"
)

type errorResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// decodeBody reads a size-limited JSON body into out. An empty body leaves
// out zeroed, so field validation reports what is missing. It writes the
// error response itself and reports whether the handler should go on.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, policy.MaxBodyBytes)
	err := decodeJSON(r, out)
	if err == nil || errors.Is(err, errEmptyBody) {
		return true
	}

	var (
		tooLarge *http.MaxBytesError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "Request entity too large")
	case errors.As(err, &typeErr):
		respondError(w, http.StatusBadRequest, "Invalid field types. All fields must be strings.")
	default:
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
	}
	return false
}

// respondFailure maps err onto the error taxonomy: validation problems are
// the client's fault, anything else is reported as a server error without
// leaking details.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *policy.ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, verr.Message)
		return
	}
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Success: false, StatusCode: status, Message: message})
}
