package handlers

import (
	"net/http"
)

// Health is the liveness probe. It carries no dependency checks: the service
// holds no external state beyond the local filesystem.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
