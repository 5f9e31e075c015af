package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the API error envelope {"error":{"code","message"}} and
// records code for the access log. Handlers in internal/api use the same shape.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
