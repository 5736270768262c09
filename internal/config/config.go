package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported provider names for EMBEDDING_PROVIDER and LLM_PROVIDER.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	DataDir      string
	RawDir       string
	ProcessedDir string
	DBPath       string

	LlamaCloudAPIKey       string
	LlamaParseBaseURL      string
	LlamaParsePollInterval time.Duration
	LlamaParseTimeout      time.Duration
	AllowedExtensions      []string
	MaxUploadBytes         int64

	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingModelName string
	EmbeddingDimension int
	EmbeddingRPS       float64
	GoogleAPIKey       string

	LLMProvider     string
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModelName    string
	LLMMaxTokens    int
	AnthropicAPIKey string

	QdrantURL          string
	QdrantCollection   string
	QdrantReadyTimeout time.Duration

	MinCertainty            float64
	RetrievalLimit          int
	ResetCollectionOnIngest bool
	SectionRulesFile        string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the values it parses.
// A .env file in the current directory or up to five parents is loaded first;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	dataDir := getEnv("DATA_DIR", "./data")
	googleKey := getEnv("GOOGLE_API_KEY", "")

	cfg := &Config{
		APIPort:   getEnv("API_PORT", "8000"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		DataDir:      dataDir,
		RawDir:       getEnv("RAW_DIR", filepath.Join(dataDir, "raw")),
		ProcessedDir: getEnv("PROCESSED_DIR", filepath.Join(dataDir, "processed")),
		DBPath:       getEnv("DB_PATH", filepath.Join(dataDir, "vitalsource.db")),

		LlamaCloudAPIKey:  getEnv("LLAMA_CLOUD_API_KEY", ""),
		LlamaParseBaseURL: getEnv("LLAMA_PARSE_BASE_URL", "https://api.cloud.llamaindex.ai"),
		AllowedExtensions: splitList(getEnv("ALLOWED_EXTENSIONS", ".pdf")),

		EmbeddingProvider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderGemini)),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-004"),
		GoogleAPIKey:       googleKey,

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.groq.com/openai"),
		LLMAPIKey:       getEnv("LLM_API_KEY", getEnv("GROQ_API_KEY", "")),
		LLMModelName:    getEnv("LLM_MODEL", "openai/gpt-oss-120b"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "medical_records"),

		SectionRulesFile: getEnv("SECTION_RULES_FILE", ""),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	// EMBEDDING_DIMENSION must match the embedding model output; changing it
	// requires recreating the collection.
	if cfg.EmbeddingDimension, err = getEnvInt("EMBEDDING_DIMENSION", 768); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimension <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION must be greater than 0")
	}
	if cfg.EmbeddingRPS, err = getEnvFloat("EMBEDDING_RPS", 0); err != nil {
		return nil, err
	}
	if cfg.EmbeddingRPS < 0 {
		return nil, fmt.Errorf("EMBEDDING_RPS must not be negative")
	}
	if cfg.LLMMaxTokens, err = getEnvInt("LLM_MAX_TOKENS", 500); err != nil {
		return nil, err
	}
	if cfg.RetrievalLimit, err = getEnvInt("RETRIEVAL_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.RetrievalLimit <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_LIMIT must be greater than 0")
	}
	if cfg.MinCertainty, err = getEnvFloat("MIN_CERTAINTY", 0.60); err != nil {
		return nil, err
	}
	if cfg.MinCertainty < 0 || cfg.MinCertainty > 1 {
		return nil, fmt.Errorf("MIN_CERTAINTY must be between 0 and 1")
	}
	if cfg.ResetCollectionOnIngest, err = getEnvBool("RESET_COLLECTION_ON_INGEST", true); err != nil {
		return nil, err
	}
	maxUploadMB, err := getEnvInt("MAX_UPLOAD_MB", 64)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20

	if cfg.LlamaParsePollInterval, err = getEnvDuration("LLAMA_PARSE_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.LlamaParseTimeout, err = getEnvDuration("LLAMA_PARSE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.QdrantReadyTimeout, err = getEnvDuration("QDRANT_READY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	switch cfg.EmbeddingProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("EMBEDDING_PROVIDER must be gemini or openai, got %q", cfg.EmbeddingProvider)
	}
	switch cfg.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be openai, anthropic or gemini, got %q", cfg.LLMProvider)
	}

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.RawDir, cfg.ProcessedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// ValidateRemote checks that the API keys needed by the selected remote
// providers are present. Offline commands skip it.
func (c *Config) ValidateRemote() error {
	if c.LlamaCloudAPIKey == "" {
		return fmt.Errorf("LLAMA_CLOUD_API_KEY is required")
	}
	if c.EmbeddingProvider == ProviderGemini && c.GoogleAPIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY is required for the gemini embedding provider")
	}
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY (or GROQ_API_KEY) is required for the openai LLM provider")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic LLM provider")
		}
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for the gemini LLM provider")
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 2s or 5m: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error: %w", err)
	}
	return level, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	return out
}
