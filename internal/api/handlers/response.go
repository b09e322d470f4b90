package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/auth-server/internal/domain"
	"github.com/sirupsen/logrus"
)

type MessageResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	switch domain.KindOf(err) {
	case domain.ErrConflict:
		return http.StatusConflict
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrTooManyRequests:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// WriteError renders err as {"message": ...}. Internal causes are logged, never sent.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Validation failed", Errors: verr.Fields})
		return
	}

	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeMessage(w, status, domain.MessageOf(err))
}
