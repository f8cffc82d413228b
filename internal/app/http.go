package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"tanchat/pkg/api"
	"tanchat/pkg/banner"
)

// buildMux mounts the API router plus the operational endpoints.
func (a *App) buildMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", api.Handler(a.cfg, a.dispatcher, a.sweeper))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	return mux
}

func (a *App) printBanner() {
	banner.Print(a.addr, a.cfg.Storage.DBPath, a.cfg.Provider.Model, a.sources, a.version)
}
