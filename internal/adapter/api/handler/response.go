package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/V4T54L/tenancy-engine/internal/domain"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrMissingBaseIndex):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrLeaseClosed),
		errors.Is(err, domain.ErrDuplicatePerson),
		errors.Is(err, domain.ErrLastPrimaryTenant),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrUnitOccupied):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithLease also sets the ETag clients echo back in If-Match.
func respondWithLease(w http.ResponseWriter, logger *slog.Logger, code int, version int64, payload any) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
	respondWithJSON(w, logger, code, payload)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		respondWithJSON(w, logger, StatusFor(err), ErrorResponse{Error: de.Kind.Error(), Message: de.Message, Fields: de.Fields})
		return
	}
	if errors.Is(err, errPayloadTooLarge) {
		respondWithJSON(w, logger, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "PayloadTooLarge", Message: "payload too large"})
		return
	}
	logger.Error("request failed", "error", err)
	respondWithJSON(w, logger, http.StatusInternalServerError, ErrorResponse{Error: "Internal", Message: "internal server error"})
}

func badRequest(field, problem string) error {
	v := domain.ValidationErrors{}
	v.Add(field, problem)
	err := v.Err().(*domain.Error)
	err.Message = "invalid request"
	return err
}

// decodeJSON reads one JSON document of at most maxBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return errPayloadTooLarge
		case errors.Is(err, io.EOF):
			return badRequest("body", "is required")
		default:
			return badRequest("body", "malformed JSON: "+err.Error())
		}
	}
	return nil
}

var errPayloadTooLarge = errors.New("payload too large")

// expectedVersion reads the optional If-Match header. Both "3" and W/"3" are
// accepted.
func expectedVersion(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return nil, badRequest("If-Match", "must be a lease version")
	}
	return &v, nil
}
