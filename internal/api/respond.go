package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"gitlab.com/yelinaung/fx-calc/internal/calculator"
	"gitlab.com/yelinaung/fx-calc/internal/exchange"
	"gitlab.com/yelinaung/fx-calc/internal/logger"
	"gitlab.com/yelinaung/fx-calc/internal/repository"
)

const (
	userIDHeader    = "X-User-ID"
	maxUserIDLength = 128
	maxBodyBytes    = 1 << 20
)

var (
	errUnauthorized = errors.New("missing user identity")
	errBadRequest   = errors.New("bad request")
	errUnavailable  = errors.New("history storage unavailable")
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, errorResponse{Error: msg})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// writeError maps err to a status. Only validation messages reach the
// client verbatim; everything else is logged and replaced.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *calculator.ValidationError
		fieldErrs     validator.ValidationErrors
		conversionErr *exchange.ConversionError
		apiErr        *exchange.APIError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &fieldErrs):
		respondError(w, http.StatusBadRequest, describeFieldErrors(fieldErrs))
	case errors.Is(err, errBadRequest):
		respondError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), errBadRequest.Error()+": "))
	case errors.Is(err, errUnauthorized):
		respondError(w, http.StatusUnauthorized, "X-User-ID header is required")
	case errors.Is(err, exchange.ErrUnsupportedCurrency):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrCalculationNotFound):
		respondError(w, http.StatusNotFound, "Calculation not found")
	case errors.Is(err, errUnavailable):
		respondError(w, http.StatusServiceUnavailable, "Calculation history is unavailable")
	case errors.As(err, &conversionErr), errors.As(err, &apiErr):
		logger.Log.Error().Err(err).Str("path", r.URL.Path).Msg("Exchange rate request failed")
		respondError(w, http.StatusBadGateway, "Exchange rate service is unavailable")
	default:
		logger.Log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(parts, "; ")
}

// decodeAndValidate reads a JSON body into v and runs struct validation.
func (s *Server) decodeAndValidate(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return badRequest("Invalid JSON body")
	}
	return s.validate.Struct(v)
}

// userID returns the caller identity set by the upstream auth proxy.
func userID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	if id == "" {
		return "", errUnauthorized
	}
	if len(id) > maxUserIDLength {
		return "", badRequest("X-User-ID header is too long")
	}
	return id, nil
}
