// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
}

type TypesenseConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
}

// AuthorityConfig points at the bulk URL-metrics API used by the authority queue
type AuthorityConfig struct {
	BaseURL string
	APIKey  string
}

// FirecrawlConfig points at the scraping API used by the content queue.
// An empty APIKey switches the content queue to the direct readability fetcher.
type FirecrawlConfig struct {
	BaseURL string
	APIKey  string
}

// QueueConfig holds the batching and retry policy shared by the enrichment queues
type QueueConfig struct {
	AuthorityBatchSize   int
	ContentBatchSize     int
	FetchLimit           int
	SubBatchDelay        time.Duration
	MaxRetries           int
	MaxAttempts          int
	RequestTimeout       time.Duration
	BackoffInitial       time.Duration
	BackoffMaxElapsed    time.Duration
	ContentAnalysisLimit int
}

// AnalysisConfig holds the batch orchestrator settings
type AnalysisConfig struct {
	PageSize            int
	Concurrency         int
	CitationReuseWindow time.Duration
	RankingWeightsFile  string
	AssistantProvider   string // "openai", "anthropic" or "none"
	AssistantModel      string
}

type Config struct {
	Port                      string
	Environment               string
	LogLevel                  string
	InngestEventKey           string
	InngestSigningKey         string
	OpenAIAPIKey              string
	AnthropicAPIKey           string
	AzureOpenAIEndpoint       string
	AzureOpenAIKey            string
	AzureOpenAIDeploymentName string
	SlackWebhookURL           string
	DatabaseURL               string
	Database                  DatabaseConfig
	Qdrant                    QdrantConfig
	Typesense                 TypesenseConfig
	Authority                 AuthorityConfig
	Firecrawl                 FirecrawlConfig
	Queues                    QueueConfig
	Analysis                  AnalysisConfig
	IndexContent              bool
}

// DatabaseConfig mirrors the connection settings shared with the API service
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

func Load() *Config {
	config := &Config{
		Port:                      getEnv("PORT", "8000"),
		Environment:               getEnv("ENVIRONMENT", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		InngestEventKey:           os.Getenv("INNGEST_EVENT_KEY"),
		InngestSigningKey:         os.Getenv("INNGEST_SIGNING_KEY"),
		OpenAIAPIKey:              os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:           os.Getenv("ANTHROPIC_API_KEY"),
		AzureOpenAIEndpoint:       os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIKey:            os.Getenv("AZURE_OPENAI_KEY"),
		AzureOpenAIDeploymentName: os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"),
		SlackWebhookURL:           os.Getenv("SLACK_WEBHOOK_URL"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		IndexContent:              getEnvBool("INDEX_CITATION_CONTENT", false),
	}

	// Parse database configuration
	dbConfig, err := parseDatabaseConfig()
	if err != nil {
		// If DATABASE_URL parsing fails, try individual env vars as fallback
		dbConfig = DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "senso2"),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		}
	}
	config.Database = dbConfig

	config.Qdrant = QdrantConfig{
		Host:       getEnv("QDRANT_HOST", "qdrant"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnv("QDRANT_COLLECTION", "citation_content"),
	}
	config.Typesense = TypesenseConfig{
		Host:       getEnv("TYPESENSE_HOST", "typesense"),
		Port:       getEnvInt("TYPESENSE_PORT", 8108),
		APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
		Collection: getEnv("TYPESENSE_COLLECTION", "citation_chunks"),
	}
	config.Authority = AuthorityConfig{
		BaseURL: getEnv("AUTHORITY_API_URL", "https://api.authoritymetrics.io"),
		APIKey:  os.Getenv("AUTHORITY_API_KEY"),
	}
	config.Firecrawl = FirecrawlConfig{
		BaseURL: getEnv("FIRECRAWL_API_URL", "https://api.firecrawl.dev"),
		APIKey:  os.Getenv("FIRECRAWL_API_KEY"),
	}
	config.Queues = QueueConfig{
		AuthorityBatchSize:   getEnvInt("AUTHORITY_BATCH_SIZE", 50),
		ContentBatchSize:     getEnvInt("CONTENT_BATCH_SIZE", 5),
		FetchLimit:           getEnvInt("ENRICHMENT_FETCH_LIMIT", 500),
		SubBatchDelay:        getEnvDuration("ENRICHMENT_SUB_BATCH_DELAY", 2*time.Second),
		MaxRetries:           getEnvInt("ENRICHMENT_MAX_RETRIES", 3),
		MaxAttempts:          getEnvInt("ENRICHMENT_MAX_ATTEMPTS", 5),
		RequestTimeout:       getEnvDuration("ENRICHMENT_REQUEST_TIMEOUT", 60*time.Second),
		BackoffInitial:       getEnvDuration("ENRICHMENT_BACKOFF_INITIAL", 500*time.Millisecond),
		BackoffMaxElapsed:    getEnvDuration("ENRICHMENT_BACKOFF_MAX_ELAPSED", 2*time.Minute),
		ContentAnalysisLimit: getEnvInt("CONTENT_ANALYSIS_LIMIT", 200),
	}
	config.Analysis = AnalysisConfig{
		PageSize:            getEnvInt("ANALYSIS_PAGE_SIZE", 50),
		Concurrency:         getEnvInt("ANALYSIS_CONCURRENCY", 5),
		CitationReuseWindow: getEnvDuration("CITATION_REUSE_WINDOW", 120*24*time.Hour),
		RankingWeightsFile:  os.Getenv("RANKING_WEIGHTS_FILE"),
		AssistantProvider:   strings.ToLower(getEnv("RANKING_ASSISTANT_PROVIDER", "openai")),
	}
	defaultModel := "gpt-4.1"
	if config.Analysis.AssistantProvider == "anthropic" {
		defaultModel = "claude-sonnet-4-20250514"
	}
	config.Analysis.AssistantModel = getEnv("RANKING_ASSISTANT_MODEL", defaultModel)

	return config
}

// IsDevelopment reports whether the service runs in a local environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == ""
}

func parseDatabaseConfig() (DatabaseConfig, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL not set")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if len(parsedURL.Path) < 2 {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL has no database name")
	}

	config := DatabaseConfig{
		Host:            parsedURL.Hostname(),
		Port:            5432, // default
		User:            parsedURL.User.Username(),
		Name:            parsedURL.Path[1:], // remove leading slash
		SSLMode:         getEnv("DB_SSLMODE", "require"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
	}

	if password, ok := parsedURL.User.Password(); ok {
		config.Password = password
	}

	if parsedURL.Port() != "" {
		if port, err := strconv.Atoi(parsedURL.Port()); err == nil {
			config.Port = port
		}
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") and plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
