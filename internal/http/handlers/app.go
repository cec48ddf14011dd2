package handlers

import (
	"encoding/json"
	"net/http"

	"plyconv/internal/convert"
	"plyconv/internal/infra"
	"plyconv/internal/storage"
)

// App bundles the dependencies shared by the HTTP handlers.
type App struct {
	Coordinator    *convert.Coordinator
	Store          *storage.FileStore
	Logger         infra.Logger
	MaxUploadBytes int64
}

func NewApp(coord *convert.Coordinator, store *storage.FileStore, logger infra.Logger, maxUploadBytes int64) *App {
	return &App{
		Coordinator:    coord,
		Store:          store,
		Logger:         logger,
		MaxUploadBytes: maxUploadBytes,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
