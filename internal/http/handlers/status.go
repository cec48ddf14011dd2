package handlers

import (
	"net/http"
)

// Status is a debug endpoint reporting what the service is tracking.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	active, completed := a.Coordinator.Counts()
	a.json(w, http.StatusOK, map[string]any{
		"active_jobs":    active,
		"completed_jobs": completed,
		"storage_path":   a.Store.BasePath(),
	})
}
