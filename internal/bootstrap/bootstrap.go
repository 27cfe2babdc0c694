// internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/typesense/typesense-go/v2/typesense"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/database"
	"github.com/AI-Template-SDK/senso-insights/services"
	"github.com/AI-Template-SDK/senso-insights/workflows"
)

// App is everything the server and the CLI share
type App struct {
	DB       *database.Client
	Pipeline *services.Pipeline
	Reporter *workflows.SlackReporter
	Registry *prometheus.Registry
	closers  []func()
}

// Close releases the pool and any search clients
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build connects to postgres, applies the schema and wires the pipeline
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &App{DB: db, Registry: prometheus.NewRegistry()}
	app.closers = append(app.closers, func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		app.Close()
		return nil, err
	}
	logger.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("database ready")

	indexer, err := buildIndexer(ctx, cfg, app, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Reporter = workflows.NewSlackReporter(cfg.SlackWebhookURL, logger)
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipeline, err := services.NewPipeline(cfg, services.NewRepositoryManager(db), services.PipelineDeps{
		Assistant:  services.NewLanguageAssistant(cfg, services.NewCostService(), logger),
		Indexer:    indexer,
		Reporter:   app.Reporter,
		Registerer: app.Registry,
	}, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Pipeline = pipeline
	return app, nil
}

// buildIndexer returns nil when content indexing is switched off
func buildIndexer(ctx context.Context, cfg *config.Config, app *App, logger zerolog.Logger) (services.CitationIndexer, error) {
	if !cfg.IndexContent {
		logger.Info().Msg("citation content indexing disabled")
		return nil, nil
	}

	var qdrantClient *qdrant.Client
	if cfg.Qdrant.Host != "" {
		client, err := qdrant.NewClient(&qdrant.Config{Host: cfg.Qdrant.Host, Port: cfg.Qdrant.Port})
		if err != nil {
			return nil, fmt.Errorf("failed to create qdrant client: %w", err)
		}
		app.closers = append(app.closers, func() { client.Close() })
		qdrantClient = client
	}

	var typesenseClient *typesense.Client
	if cfg.Typesense.Host != "" {
		typesenseClient = typesense.NewClient(
			typesense.WithServer(fmt.Sprintf("http://%s:%d", cfg.Typesense.Host, cfg.Typesense.Port)),
			typesense.WithAPIKey(cfg.Typesense.APIKey),
		)
	}

	if err := services.EnsureCitationIndexes(ctx, cfg, qdrantClient, typesenseClient); err != nil {
		return nil, err
	}
	logger.Info().
		Bool("qdrant", qdrantClient != nil).
		Bool("typesense", typesenseClient != nil).
		Msg("citation indexes ready")
	return services.NewCitationIndexService(cfg, qdrantClient, typesenseClient, logger), nil
}
