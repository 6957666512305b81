package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/opsync/pkg/api"
)

// WriteJSON пишет ответ в формате JSON с указанным статусом
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteError пишет api.ErrorResponse. message может быть пустым.
func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, errText, message string) {
	WriteJSON(w, logger, status, api.ErrorResponse{
		Error:   errText,
		Message: message,
	})
}
