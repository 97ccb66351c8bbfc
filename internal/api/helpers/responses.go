package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Envelope is the uniform response shape of every endpoint. Success
// responses carry Data; error responses carry Details.
type Envelope struct {
	Success   bool   `json:"success"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	env.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("response_encode_failed", "error", err)
	}
}

// RespondSuccess writes a success envelope around data.
func RespondSuccess(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{
		Success: true,
		Code:    status,
		Message: "Success",
		Data:    data,
	})
}

// RespondError writes an error envelope. details may be nil.
func RespondError(w http.ResponseWriter, status int, message string, details any) {
	writeEnvelope(w, status, Envelope{
		Success: false,
		Code:    status,
		Message: message,
		Details: details,
	})
}
