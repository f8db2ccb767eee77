package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/retrouvtout/backend/internal/apperr"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("error encoding response: %v", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// appError maps a service error to an HTTP response.
func appError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch ae.Code {
	case apperr.CodeNotFound:
		jsonError(w, http.StatusNotFound, ae.Message)
	case apperr.CodeValidation:
		jsonError(w, http.StatusBadRequest, ae.Message)
	case apperr.CodeAuthorization:
		jsonError(w, http.StatusForbidden, ae.Message)
	case apperr.CodeConflict:
		jsonError(w, http.StatusConflict, ae.Message)
	default:
		log.Printf("internal error: %v", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
