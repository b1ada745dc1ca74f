package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/tecu23/arena-server/docs" // registers the swagger spec
)

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(app.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/health", app.handleHealth)
	r.Get("/ws", app.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/games", func(r chi.Router) {
		r.With(app.authenticate).Post("/", app.handleCreateGame)
		r.Get("/status/active", app.handleActiveGames)
		r.Get("/{id}", app.handleGetGame)
	})

	return r
}
