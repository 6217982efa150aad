package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/obs"
	"tour-planning-service/internal/ports"
	"tour-planning-service/internal/services"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// maxBodyBytes bounds request bodies; road networks are the largest payload.
const maxBodyBytes = 32 << 20

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode failed",
			zap.String("req_id", obs.RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object into v and validates it.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// statusFor maps planner errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnknownDemand), errors.Is(err, services.ErrUnknownRequest),
		errors.Is(err, ports.ErrTourNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoTour), errors.Is(err, services.ErrNoNetwork):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInfeasible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs unexpected failures and hides their details from clients.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error(op+" failed", zap.String("req_id", obs.RequestID(r.Context())), zap.Error(err))
		writeError(w, r, status, "internal server error")
		return
	}
	writeError(w, r, status, err.Error())
}
