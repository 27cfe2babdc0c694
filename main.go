// main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AI-Template-SDK/senso-insights/internal/bootstrap"
	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/logging"
	"github.com/AI-Template-SDK/senso-insights/workflows"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("dev.env"); err != nil {
			log.Printf("Note: No .env or dev.env file loaded: %v", err)
		} else {
			log.Printf("Loaded dev.env file for local development")
		}
	} else {
		log.Printf("Loaded .env file")
	}

	cfg := config.Load()
	logger := logging.New(cfg)

	logger.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Str("assistant", cfg.Analysis.AssistantProvider).
		Bool("authority_configured", cfg.Authority.APIKey != "").
		Bool("firecrawl_configured", cfg.Firecrawl.APIKey != "").
		Msg("starting senso insights")

	if cfg.IsDevelopment() {
		os.Unsetenv("INNGEST_SIGNING_KEY")
		cfg.InngestSigningKey = ""
		logger.Info().Msg("running in development mode - signing key verification disabled")
	}

	ctx := context.Background()
	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pipeline")
	}
	defer app.Close()

	client, err := inngestgo.NewClient(
		inngestgo.ClientOpts{
			AppID:    "senso-insights",
			EventKey: inngestgo.StrPtr(cfg.InngestEventKey),
			Env:      inngestgo.StrPtr(cfg.Environment),
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create inngest client")
	}

	analysisProcessor := workflows.NewAnalysisProcessor(app.Pipeline, logger)
	analysisProcessor.SetClient(client)
	analysisProcessor.AnalyzeResponses()
	analysisProcessor.RecoverCitations()
	analysisProcessor.DailyCitationRecovery()

	enrichmentProcessor := workflows.NewEnrichmentProcessor(app.Pipeline, logger)
	enrichmentProcessor.SetClient(client)
	enrichmentProcessor.EnrichAuthority()
	enrichmentProcessor.EnrichContent()
	enrichmentProcessor.EnrichOnRequest()
	enrichmentProcessor.AnalyzeCitationContent()
	logger.Info().Msg("all processors initialized and functions registered")

	mux := http.NewServeMux()
	mux.Handle("/api/inngest", client.Serve())
	mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))

	// Root endpoint for ALB health check
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"service":"senso-insights","status":"running"}`))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/queues/stats", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		status, err := app.Pipeline.Status(ctx)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			logger.Error().Err(err).Msg("failed to build queue stats")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(status)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("port", cfg.Port).Msg("starting senso insights service")
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
