package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// RespondJSON writes a JSON response with the given status code. Marshaling
// happens before headers are sent so an encoding failure cannot produce a
// partial response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"failed to encode response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// RespondResult writes the uniform boundary envelope. The HTTP status is
// always 200: failures travel inside the envelope as {success:false,error},
// never as transport-level errors, so the UI shell has one shape to handle.
func RespondResult(w http.ResponseWriter, result domain.Result) {
	RespondJSON(w, http.StatusOK, result)
}
