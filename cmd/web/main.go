package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defenselab/pcapwatch/detect"
	"github.com/defenselab/pcapwatch/engine"
	"github.com/defenselab/pcapwatch/pkg/config"
	"github.com/defenselab/pcapwatch/pkg/handlers"
	"github.com/defenselab/pcapwatch/reputation"
	"github.com/defenselab/pcapwatch/sse"
	"github.com/defenselab/pcapwatch/store"
)

// main is the main function
func main() {
	cfg, err := config.Load()
	config.Handle(err, "loading configuration", true)

	docs, err := store.NewDocuments(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		fmt.Printf("WARN: document store unavailable, skipping persistence: %v\n", err)
		docs = nil
	}
	defer docs.Close()

	settings, err := store.OpenSettings(cfg.BadgerPath)
	config.Handle(err, "opening settings store", false)
	defer settings.Close()

	eng := engine.New(engine.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxPackets:     cfg.MaxPackets,
		Workers:        int64(cfg.AnalysisWorkers),
		Detectors: []detect.Detector{
			detect.NewSynFlood(),
			detect.NewPortScan(),
			detect.NewVolumeAnomaly(),
		},
		Reputation: reputation.NewClient(cfg.AbuseIPDBKey),
	})
	if capability := eng.Capability(); !capability.Available {
		fmt.Printf("WARN: capture parsing unavailable, running degraded: %v\n", capability.Reason)
	}

	events := sse.NewBroadcaster()
	repo := handlers.NewRepo(cfg, eng, docs, settings, events)
	handlers.NewHandlers(repo)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: routes(cfg),
		// uploads can be large; keep read generous, idle tight
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("Starting pcapwatch on http://localhost%v\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			config.Handle(err, "starting server", true)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.Handle(err, "shutting down server", false)
	}
}
