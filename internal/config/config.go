package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Keys     APIKeys
	Ai       AIConfig
	Rag      RagConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // "silent", "error", "warn" or "info"
	SlowThreshold   time.Duration
}

type RedisConfig struct {
	URL        string
	SessionTTL time.Duration
}

type APIKeys struct {
	JwtSecret          string
	Jina               string
	HuggingFace        string
	IndexDocumentTopic string
}

type AIConfig struct {
	EmbeddingProvider  string // "ollama" or "jina"
	EmbeddingModel     string
	OllamaBaseURL      string
	LLMProvider        string // "ollama" or "huggingface"
	LLMModel           string
	HuggingFaceBaseURL string
}

// RagConfig holds the engine defaults. Assistants may override the
// retrieval and classification values per assistant.
type RagConfig struct {
	ChunkSize             int
	ChunkOverlap          int
	EmbedBatchSize        int
	EmbedConcurrency      int
	Thresholds            []float64
	TopK                  int
	ContextBudget         int
	ConfidenceFloor       float64
	StrongMatch           float64
	HistoryLimit          int
	ClassificationTimeout time.Duration
	GenerationTimeout     time.Duration
	SessionStore          string // "postgres", "redis" or "memory"
	SessionLockTimeout    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/ws.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			LogLevel:        getEnv("DB_LOG_LEVEL", "warn"),
			SlowThreshold:   getEnvAsDuration("DB_SLOW_THRESHOLD", time.Second),
		},
		Redis: RedisConfig{
			URL:        getEnv("REDIS_URL", ""),
			SessionTTL: getEnvAsDuration("REDIS_SESSION_TTL", 24*time.Hour),
		},
		Keys: APIKeys{
			JwtSecret:          getEnv("JWT_SECRET", ""),
			Jina:               getEnv("JINA_API_KEY", ""),
			HuggingFace:        getEnv("HUGGINGFACE_API_KEY", ""),
			IndexDocumentTopic: getEnv("INDEX_DOCUMENT_TOPIC_NAME", "INDEX_DOCUMENT"),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", ""), // provider default when empty
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
		},
		Rag: RagConfig{
			ChunkSize:             getEnvAsInt("RAG_CHUNK_SIZE", 1500),
			ChunkOverlap:          getEnvAsInt("RAG_CHUNK_OVERLAP", 200),
			EmbedBatchSize:        getEnvAsInt("RAG_EMBED_BATCH_SIZE", 16),
			EmbedConcurrency:      getEnvAsInt("RAG_EMBED_CONCURRENCY", 4),
			Thresholds:            getEnvAsFloatSlice("RAG_THRESHOLDS", []float64{0.7, 0.5, 0.3}),
			TopK:                  getEnvAsInt("RAG_TOP_K", 5),
			ContextBudget:         getEnvAsInt("RAG_CONTEXT_BUDGET", 6000),
			ConfidenceFloor:       getEnvAsFloat("RAG_CONFIDENCE_FLOOR", 0.5),
			StrongMatch:           getEnvAsFloat("RAG_STRONG_MATCH", 0.85),
			HistoryLimit:          getEnvAsInt("RAG_HISTORY_LIMIT", 10),
			ClassificationTimeout: getEnvAsDuration("RAG_CLASSIFICATION_TIMEOUT", 15*time.Second),
			GenerationTimeout:     getEnvAsDuration("RAG_GENERATION_TIMEOUT", 90*time.Second),
			SessionStore:          getEnv("SESSION_STORE", "postgres"),
			SessionLockTimeout:    getEnvAsDuration("SESSION_LOCK_TIMEOUT", 2*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsFloatSlice reads a comma separated list such as "0.7,0.5,0.3".
// Any unparsable entry makes the whole value fall back.
func getEnvAsFloatSlice(key string, fallback []float64) []float64 {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fallback
		}
		values = append(values, v)
	}
	return values
}
