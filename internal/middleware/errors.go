package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/portalo/portalo/internal/handler/dto"
)

// writeErrorJSON writes the standard error envelope.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: dto.ErrorBody{Code: code, Message: message}})
}
