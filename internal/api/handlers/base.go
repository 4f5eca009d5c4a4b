package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/receipted/receipted-backend/internal/api/dto"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct{}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteDomainError maps a domain error to the matching HTTP response.
func (b *Base) WriteDomainError(w http.ResponseWriter, err error) {
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError(notFound.Error()))
		return
	}

	var alreadyMatched *storage.AlreadyMatchedError
	if errors.As(err, &alreadyMatched) {
		b.WriteError(w, http.StatusConflict, dto.AlreadyMatchedError(alreadyMatched.Error()))
		return
	}

	var validation *storage.ValidationError
	if errors.As(err, &validation) {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError(validation.Error()))
		return
	}

	b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
