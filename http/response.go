package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arroweffect/imgapi"
)

// DeleteResponse is the JSON body of every POST /delete response.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Deleted string `json:"deleted,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PurgeResponse is the JSON body of a successful POST /purge.
type PurgeResponse struct {
	Success    bool            `json:"success"`
	Purged     string          `json:"purged"`
	Cloudflare json.RawMessage `json:"cloudflare"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// WriteText writes a plain-text response
func WriteText(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(message))
}

// WriteDeleteError writes {"success":false,"error":message}.
func WriteDeleteError(w http.ResponseWriter, code int, message string) {
	if err := WriteJSON(w, code, DeleteResponse{Error: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func writeTextUnauthorized(w http.ResponseWriter) {
	WriteText(w, http.StatusUnauthorized, "Unauthorized")
}

func writeJSONUnauthorized(w http.ResponseWriter) {
	WriteDeleteError(w, http.StatusUnauthorized, "Unauthorized")
}

// writeUpstreamError relays the upstream error payload as a 500. Errors
// without a payload are serialized as a JSON string.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var upstream *imgapi.UpstreamError
	if errors.As(err, &upstream) && json.Valid(upstream.Detail) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(upstream.Detail)
		return
	}

	message := "Internal server error"
	if upstream != nil {
		message = upstream.Error()
	}
	if encErr := WriteJSON(w, http.StatusInternalServerError, message); encErr != nil {
		slog.Error("failed to encode error response", "error", encErr)
	}
}
