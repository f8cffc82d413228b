// Package api assembles the HTTP routing surface.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"tanchat/pkg/api/handlers"
	"tanchat/pkg/config"
	"tanchat/pkg/dispatch"
	"tanchat/pkg/repair"
)

// Handler returns the full /v1 router plus the health probe.
func Handler(cfg *config.Config, d *dispatch.Dispatcher, sweeper *repair.Sweeper) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterMessages(v1, d)
	handlers.RegisterAdmin(v1, cfg, sweeper)
	return r
}
