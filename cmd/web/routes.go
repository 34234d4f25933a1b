package main

import (
	"net/http"

	"github.com/defenselab/pcapwatch/pkg/config"
	"github.com/defenselab/pcapwatch/pkg/handlers"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

func routes(app *config.AppConfig) http.Handler {
	mux := chi.NewRouter()
	if app.InProduction {
		mux.Use(middleware.Recoverer)
	}
	mux.Use(middleware.Heartbeat("/ping"))

	mux.Get("/pcap/health", handlers.Repo.Health)
	mux.Post("/pcap/analyze", handlers.Repo.Analyze)

	mux.Get("/analyses/recent", handlers.Repo.RecentAnalyses)
	mux.Get("/analyses/file", handlers.Repo.AnalysisByFile)
	mux.Get("/threats/recent", handlers.Repo.RecentThreats)
	mux.Get("/threats/high", handlers.Repo.HighThreats)
	mux.Get("/stats", handlers.Repo.Stats)
	mux.Get("/events", handlers.Repo.EventStream)

	return mux
}
