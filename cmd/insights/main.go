// Command insights runs pipeline stages by hand against the configured database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-insights/internal/bootstrap"
	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/logging"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/services"
)

var (
	verbose bool
	cfg     *config.Config
	logger  zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "insights",
	Short:        "Run senso insights pipeline stages",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			if err := godotenv.Load("dev.env"); err != nil {
				log.Printf("Note: No .env or dev.env file loaded: %v", err)
			}
		}
		cfg = config.Load()
		if verbose {
			cfg.LogLevel = "debug"
		}
		logger = logging.New(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	analyzeCmd.Flags().Int64Var(&startID, "start", 0, "First response id (inclusive)")
	analyzeCmd.Flags().Int64Var(&endID, "end", 0, "Last response id (inclusive)")
	analyzeCmd.Flags().StringVar(&companyFlag, "company", "", "Company id recorded on the batch")
	analyzeCmd.MarkFlagRequired("start")
	analyzeCmd.MarkFlagRequired("end")

	recoverCmd.Flags().StringVar(&batchFlag, "batch", "", "Recover analyses of one batch")
	recoverCmd.Flags().StringVar(&companyFlag, "company", "", "Recover analyses of one company")
	recoverCmd.Flags().IntVar(&recoverLimit, "limit", 0, "Maximum analyses to recover (0 for no limit)")
	recoverCmd.MarkFlagsMutuallyExclusive("batch", "company")

	enrichCmd.AddCommand(enrichAuthorityCmd, enrichContentCmd)
	rootCmd.AddCommand(analyzeCmd, recoverCmd, enrichCmd, contentCmd, statsCmd)
}

// --- analyze command ---

var (
	startID     int64
	endID       int64
	companyFlag string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a response id range and store rankings, sentiment and citations",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := optionalUUID(companyFlag)
		if err != nil {
			return fmt.Errorf("invalid --company: %w", err)
		}
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			summary, err := app.Pipeline.Orchestrator.Run(ctx, services.AnalysisRequest{
				StartID:   startID,
				EndID:     endID,
				CompanyID: companyID,
			})
			printSummary("analysis", summary)
			return err
		})
	},
}

// --- recover command ---

var (
	batchFlag    string
	recoverLimit int
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Replay citation processing for analyses that never completed it",
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, err := optionalUUID(batchFlag)
		if err != nil {
			return fmt.Errorf("invalid --batch: %w", err)
		}
		companyID, err := optionalUUID(companyFlag)
		if err != nil {
			return fmt.Errorf("invalid --company: %w", err)
		}
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			var summary *models.BatchSummary
			switch {
			case batchID != nil:
				summary, err = app.Pipeline.Recovery.RecoverBatch(ctx, *batchID)
			case companyID != nil:
				summary, err = app.Pipeline.Recovery.RecoverCompany(ctx, *companyID)
			default:
				summary, err = app.Pipeline.Recovery.RecoverAll(ctx, recoverLimit)
			}
			printSummary("recovery", summary)
			return err
		})
	},
}

// --- enrich commands ---

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run one pass of an enrichment queue",
}

var enrichAuthorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Fetch domain and page authority for original citations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			summary, err := app.Pipeline.Authority.Process(ctx)
			printSummary("authority", summary)
			return err
		})
	},
}

var enrichContentCmd = &cobra.Command{
	Use:   "content",
	Short: "Scrape page content for original citations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			summary, err := app.Pipeline.Content.Process(ctx)
			printSummary("content", summary)
			return err
		})
	},
}

// --- content command ---

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Compute content metrics for scraped citations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			summary, err := app.Pipeline.ContentAnalysis.Process(ctx)
			printSummary("content analysis", summary)
			return err
		})
	},
}

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the enrichment backlog as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			status, err := app.Pipeline.Status(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		})
	},
}

func withApp(ctx context.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func printSummary(stage string, summary *models.BatchSummary) {
	if summary == nil {
		return
	}
	fmt.Printf("\n%s complete:\n", stage)
	if summary.BatchID != uuid.Nil {
		fmt.Printf("  Batch: %s\n", summary.BatchID)
	}
	if summary.Pages > 0 {
		fmt.Printf("  Pages: %d\n", summary.Pages)
	}
	fmt.Printf("  Succeeded: %d\n", summary.Succeeded)
	fmt.Printf("  Failed: %d\n", summary.Failed)
	fmt.Printf("  Skipped: %d\n", summary.Skipped)
	if summary.Recovered > 0 {
		fmt.Printf("  Recovered: %d\n", summary.Recovered)
	}
	for _, item := range summary.Items {
		if item.Status == models.ItemSuccess {
			continue
		}
		fmt.Printf("  - %s %s: %s\n", item.Status, itemLabel(item), item.Reason)
	}
}

func itemLabel(item models.ItemResult) string {
	if item.CitationID != nil {
		return item.CitationID.String()
	}
	return fmt.Sprintf("response %d", item.ResponseID)
}
