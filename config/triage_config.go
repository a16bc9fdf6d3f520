package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique consumer name using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "triage"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	EmbeddingModel string
	LLMTimeoutSec  int

	// Circuit breaker around the generative model
	LLMBreakerFailures   int
	LLMBreakerTimeoutSec int

	// Triage
	RetrievalTopK             int
	KnowledgeBasePath         string
	VIPSenders                []string
	ScoringUrgencyKeywords    []string
	ExtractionUrgencyKeywords []string
	EmbeddingCacheTTLMin      int

	// Worker
	WorkerID              string
	WorkerMax             int
	WorkerJobTimeoutSec   int
	ConsumerBatchSize     int
	ConsumerBlockMS       int
	ConsumerMaxRetries    int
	ConsumerRetryDelaySec int

	// CORS
	AllowedOrigins []string
}

// DefaultScoringUrgencyKeywords feed the priority score.
var DefaultScoringUrgencyKeywords = []string{
	"immediately", "urgent", "asap", "cannot", "can't", "critical",
	"now", "blocked", "down", "emergency", "help",
}

// DefaultExtractionUrgencyKeywords are reported by the heuristic extractor.
var DefaultExtractionUrgencyKeywords = []string{
	"immediately", "urgent", "asap", "critical", "now", "blocked", "down",
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		MongoDBURL:  getEnv("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGODB_DATABASE", "triage"),
		RedisURL:    getEnv("REDIS_URL", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 30),

		LLMBreakerFailures:   getEnvInt("LLM_BREAKER_FAILURES", 5),
		LLMBreakerTimeoutSec: getEnvInt("LLM_BREAKER_TIMEOUT_SEC", 30),

		RetrievalTopK:             getEnvInt("RETRIEVAL_TOP_K", 3),
		KnowledgeBasePath:         getEnv("KNOWLEDGE_BASE_PATH", ""),
		VIPSenders:                getEnvSlice("VIP_SENDERS", []string{}),
		ScoringUrgencyKeywords:    getEnvSlice("SCORING_URGENCY_KEYWORDS", DefaultScoringUrgencyKeywords),
		ExtractionUrgencyKeywords: getEnvSlice("EXTRACTION_URGENCY_KEYWORDS", DefaultExtractionUrgencyKeywords),
		EmbeddingCacheTTLMin:      getEnvInt("EMBEDDING_CACHE_TTL_MIN", 24*60),

		WorkerID:              getEnv("WORKER_ID", generateWorkerID()),
		WorkerMax:             getEnvInt("WORKER_MAX", 8),
		WorkerJobTimeoutSec:   getEnvInt("WORKER_JOB_TIMEOUT_SEC", 120),
		ConsumerBatchSize:     getEnvInt("CONSUMER_BATCH_SIZE", 20),
		ConsumerBlockMS:       getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxRetries:    getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerRetryDelaySec: getEnvInt("CONSUMER_RETRY_DELAY_SEC", 5),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if cfg.RetrievalTopK <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", cfg.RetrievalTopK)
	}
	if cfg.WorkerMax <= 0 {
		return nil, fmt.Errorf("WORKER_MAX must be positive, got %d", cfg.WorkerMax)
	}
	return cfg, nil
}

// LLMTimeout is the per-call deadline for generative and embedding requests.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.EmbeddingCacheTTLMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvSlice splits a comma-separated value and drops blank entries.
func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
