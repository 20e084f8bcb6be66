package handler

import "net/http"

// HandleHealth is a liveness probe. It does not touch the database.
//
// HTTP: GET /health → 200 {"ok": true}
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
