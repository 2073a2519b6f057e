package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	var inFlight int64
	if a.Runner != nil {
		inFlight = a.Runner.InFlight()
	}
	a.json(w, http.StatusOK, map[string]any{"status": "ok", "in_flight": inFlight})
}
