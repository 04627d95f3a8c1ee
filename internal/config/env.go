package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	AwsEndpoint  string // optional, for MinIO or localstack
	BucketName   string

	EmbedProvider   string // gemini | openai
	AIAPIKey        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	EmbedModel      string
	EmbedBatchSize  int
	EmbedConcurrent int
	EmbedMaxRetries int
	EmbedTimeout    time.Duration

	ChunkMaxChars     int
	ChunkOverlapChars int

	IngestWorkers   int
	IngestQueueSize int

	RenderEnabled bool
	RenderBinary  string
	RenderTimeout time.Duration

	UserAgent        string
	FetchTimeout     time.Duration
	MaxBodyBytes     int64
	CrawlConcurrency int

	QualityLowThreshold  float64
	QualityHighThreshold float64

	JWTSecret string
	Port      string
	LogDebug  bool
}

// LoadConfig loads the environment variables (and .env when present) and validates them.
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		AwsEndpoint:  getEnv("AWS_ENDPOINT", ""),
		BucketName:   getEnv("BUCKET_NAME", "ragcrawl-docs"),

		EmbedProvider:   strings.ToLower(getEnv("EMBED_PROVIDER", "gemini")),
		AIAPIKey:        getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedConcurrent: getEnvInt("EMBED_CONCURRENCY", 2),
		EmbedMaxRetries: getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedTimeout:    getEnvDuration("EMBED_TIMEOUT", 5*time.Minute),

		ChunkMaxChars:     getEnvInt("CHUNK_MAX_CHARS", 1000),
		ChunkOverlapChars: getEnvInt("CHUNK_OVERLAP_CHARS", 200),

		IngestWorkers:   getEnvInt("INGEST_WORKERS", 4),
		IngestQueueSize: getEnvInt("INGEST_QUEUE_SIZE", 64),

		RenderEnabled: getEnvBool("RENDER_ENABLED", false),
		RenderBinary:  getEnv("RENDER_BINARY", "node"),
		RenderTimeout: getEnvDuration("RENDER_TIMEOUT", 30*time.Second),

		UserAgent:        getEnv("CRAWL_USER_AGENT", "ragcrawl/1.0 (+https://github.com/markdave123-py/ragcrawl)"),
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 20*time.Second),
		MaxBodyBytes:     int64(getEnvInt("FETCH_MAX_BODY_BYTES", 10<<20)),
		CrawlConcurrency: getEnvInt("CRAWL_CONCURRENCY", 1),

		QualityLowThreshold:  getEnvFloat("QUALITY_LOW_THRESHOLD", 0.3),
		QualityHighThreshold: getEnvFloat("QUALITY_HIGH_THRESHOLD", 0.7),

		JWTSecret: getEnv("JWT_SECRET", ""),
		Port:      getEnv("PORT", "8080"),
		LogDebug:  getEnvBool("LOG_DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the process relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	switch c.EmbedProvider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER %q must be gemini or openai", c.EmbedProvider))
	}
	if c.EmbedBatchSize <= 0 {
		errs = append(errs, errors.New("EMBED_BATCH_SIZE must be positive"))
	}
	if c.EmbedMaxRetries <= 0 {
		errs = append(errs, errors.New("EMBED_MAX_RETRIES must be positive"))
	}
	if c.ChunkMaxChars <= 0 {
		errs = append(errs, errors.New("CHUNK_MAX_CHARS must be positive"))
	}
	if c.ChunkOverlapChars < 0 || c.ChunkOverlapChars >= c.ChunkMaxChars {
		errs = append(errs, errors.New("CHUNK_OVERLAP_CHARS must be in [0, CHUNK_MAX_CHARS)"))
	}
	if c.QualityLowThreshold < 0 || c.QualityHighThreshold > 1 || c.QualityLowThreshold > c.QualityHighThreshold {
		errs = append(errs, errors.New("quality thresholds must satisfy 0 <= low <= high <= 1"))
	}
	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
