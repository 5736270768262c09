package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"API_PORT", "LOG_LEVEL", "LOG_FORMAT",
	"DATA_DIR", "RAW_DIR", "PROCESSED_DIR", "DB_PATH",
	"LLAMA_CLOUD_API_KEY", "LLAMA_PARSE_BASE_URL", "LLAMA_PARSE_POLL_INTERVAL", "LLAMA_PARSE_TIMEOUT",
	"ALLOWED_EXTENSIONS", "MAX_UPLOAD_MB",
	"EMBEDDING_PROVIDER", "EMBEDDING_BASE_URL", "EMBEDDING_API_KEY", "EMBEDDING_MODEL_NAME",
	"EMBEDDING_DIMENSION", "EMBEDDING_RPS", "GOOGLE_API_KEY",
	"LLM_PROVIDER", "LLM_BASE_URL", "LLM_API_KEY", "GROQ_API_KEY", "LLM_MODEL", "LLM_MAX_TOKENS",
	"ANTHROPIC_API_KEY",
	"QDRANT_URL", "QDRANT_COLLECTION", "QDRANT_READY_TIMEOUT",
	"MIN_CERTAINTY", "RETRIEVAL_LIMIT", "RESET_COLLECTION_ON_INGEST", "SECTION_RULES_FILE",
}

// isolateEnv clears every variable Load reads and moves into a temp dir
// without a .env file. t.Setenv restores the originals.
func isolateEnv(t *testing.T) string {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	t.Cleanup(func() {
		_ = os.Chdir(originalWd)
	})
	t.Setenv("DATA_DIR", filepath.Join(tmpDir, "data"))
	return tmpDir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name:     "defaults",
			setupEnv: func(t *testing.T) {},
			checkConfig: func(cfg *Config) bool {
				return cfg.APIPort == "8000" &&
					cfg.LogLevel == slog.LevelInfo &&
					cfg.LogFormat == "text" &&
					cfg.EmbeddingProvider == ProviderGemini &&
					cfg.EmbeddingModelName == "text-embedding-004" &&
					cfg.EmbeddingDimension == 768 &&
					cfg.LLMProvider == ProviderOpenAI &&
					cfg.LLMBaseURL == "https://api.groq.com/openai" &&
					cfg.LLMModelName == "openai/gpt-oss-120b" &&
					cfg.LLMMaxTokens == 500 &&
					cfg.QdrantCollection == "medical_records" &&
					cfg.QdrantReadyTimeout == 30*time.Second &&
					cfg.MinCertainty == 0.60 &&
					cfg.RetrievalLimit == 5 &&
					cfg.ResetCollectionOnIngest &&
					len(cfg.AllowedExtensions) == 1 && cfg.AllowedExtensions[0] == ".pdf" &&
					cfg.MaxUploadBytes == 64<<20
			},
		},
		{
			name: "GROQ_API_KEY fills LLM_API_KEY",
			setupEnv: func(t *testing.T) {
				t.Setenv("GROQ_API_KEY", "gsk-test")
			},
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMAPIKey == "gsk-test"
			},
		},
		{
			name: "LLM_API_KEY wins over GROQ_API_KEY",
			setupEnv: func(t *testing.T) {
				t.Setenv("GROQ_API_KEY", "gsk-test")
				t.Setenv("LLM_API_KEY", "explicit")
			},
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMAPIKey == "explicit"
			},
		},
		{
			name: "custom values",
			setupEnv: func(t *testing.T) {
				t.Setenv("LOG_LEVEL", "debug")
				t.Setenv("LOG_FORMAT", "JSON")
				t.Setenv("EMBEDDING_DIMENSION", "1024")
				t.Setenv("MIN_CERTAINTY", "0.75")
				t.Setenv("RESET_COLLECTION_ON_INGEST", "false")
				t.Setenv("ALLOWED_EXTENSIONS", "pdf, .PDFA")
				t.Setenv("LLM_PROVIDER", "Anthropic")
				t.Setenv("LLAMA_PARSE_POLL_INTERVAL", "500ms")
			},
			checkConfig: func(cfg *Config) bool {
				return cfg.LogLevel == slog.LevelDebug &&
					cfg.LogFormat == "json" &&
					cfg.EmbeddingDimension == 1024 &&
					cfg.MinCertainty == 0.75 &&
					!cfg.ResetCollectionOnIngest &&
					len(cfg.AllowedExtensions) == 2 &&
					cfg.AllowedExtensions[0] == ".pdf" &&
					cfg.AllowedExtensions[1] == ".pdfa" &&
					cfg.LLMProvider == ProviderAnthropic &&
					cfg.LlamaParsePollInterval == 500*time.Millisecond
			},
		},
		{
			name:     "invalid EMBEDDING_DIMENSION",
			setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_DIMENSION", "invalid") },
			wantErr:  true,
		},
		{
			name:     "zero EMBEDDING_DIMENSION",
			setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_DIMENSION", "0") },
			wantErr:  true,
		},
		{
			name:     "certainty out of range",
			setupEnv: func(t *testing.T) { t.Setenv("MIN_CERTAINTY", "1.5") },
			wantErr:  true,
		},
		{
			name:     "unknown embedding provider",
			setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_PROVIDER", "weaviate") },
			wantErr:  true,
		},
		{
			name:     "unknown LLM provider",
			setupEnv: func(t *testing.T) { t.Setenv("LLM_PROVIDER", "local") },
			wantErr:  true,
		},
		{
			name:     "bad log level",
			setupEnv: func(t *testing.T) { t.Setenv("LOG_LEVEL", "verbose") },
			wantErr:  true,
		},
		{
			name:     "bad log format",
			setupEnv: func(t *testing.T) { t.Setenv("LOG_FORMAT", "xml") },
			wantErr:  true,
		},
		{
			name:     "bad duration",
			setupEnv: func(t *testing.T) { t.Setenv("QDRANT_READY_TIMEOUT", "soon") },
			wantErr:  true,
		},
		{
			name:     "bad bool",
			setupEnv: func(t *testing.T) { t.Setenv("RESET_COLLECTION_ON_INGEST", "maybe") },
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectories(t *testing.T) {
	tmpDir := isolateEnv(t)
	dataDir := filepath.Join(tmpDir, "nested", "data")
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, dir := range []string{cfg.RawDir, cfg.ProcessedDir, filepath.Dir(cfg.DBPath)} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("Load() should create %s", dir)
		}
	}
	if cfg.RawDir != filepath.Join(dataDir, "raw") {
		t.Errorf("RawDir = %q", cfg.RawDir)
	}
	if cfg.ProcessedDir != filepath.Join(dataDir, "processed") {
		t.Errorf("ProcessedDir = %q", cfg.ProcessedDir)
	}
}

func TestConfig_ValidateRemote(t *testing.T) {
	base := Config{
		LlamaCloudAPIKey:  "llx",
		EmbeddingProvider: ProviderGemini,
		GoogleAPIKey:      "g",
		LLMProvider:       ProviderOpenAI,
		LLMAPIKey:         "gsk",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "all keys present", mutate: func(*Config) {}},
		{name: "missing llama key", mutate: func(c *Config) { c.LlamaCloudAPIKey = "" }, wantErr: true},
		{name: "missing google key for gemini embeddings", mutate: func(c *Config) { c.GoogleAPIKey = "" }, wantErr: true},
		{
			name: "openai embeddings do not need google key",
			mutate: func(c *Config) {
				c.EmbeddingProvider = ProviderOpenAI
				c.GoogleAPIKey = ""
			},
		},
		{name: "missing groq key", mutate: func(c *Config) { c.LLMAPIKey = "" }, wantErr: true},
		{
			name:    "anthropic without key",
			mutate:  func(c *Config) { c.LLMProvider = ProviderAnthropic },
			wantErr: true,
		},
		{
			name: "anthropic with key",
			mutate: func(c *Config) {
				c.LLMProvider = ProviderAnthropic
				c.AnthropicAPIKey = "sk-ant"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.ValidateRemote()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRemote() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue string
		want         string
	}{
		{name: "env var set", value: "set-value", defaultValue: "default", want: "set-value"},
		{name: "empty env var uses default", value: "", defaultValue: "default", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_VAR", tt.value)
			if got := getEnv("TEST_ENV_VAR", tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path", func(t *testing.T) {
		rules, err := LoadRules("")
		if err != nil {
			t.Fatalf("LoadRules() error = %v", err)
		}
		if len(rules.Sections) != 0 || len(rules.NoisePatterns) != 0 {
			t.Errorf("expected empty rules, got %+v", rules)
		}
	})

	t.Run("valid file normalizes keywords", func(t *testing.T) {
		path := filepath.Join(dir, "rules.yaml")
		content := `
sections:
  - section: thyroid
    keywords: [" Thyroid ", TSH]
noise_patterns:
  - 'ACME LABS'
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		rules, err := LoadRules(path)
		if err != nil {
			t.Fatalf("LoadRules() error = %v", err)
		}
		if len(rules.Sections) != 1 || rules.Sections[0].Section != "thyroid" {
			t.Fatalf("unexpected sections: %+v", rules.Sections)
		}
		if rules.Sections[0].Keywords[0] != "thyroid" || rules.Sections[0].Keywords[1] != "tsh" {
			t.Errorf("keywords not normalized: %v", rules.Sections[0].Keywords)
		}
		if len(rules.NoisePatterns) != 1 || rules.NoisePatterns[0] != "ACME LABS" {
			t.Errorf("unexpected noise patterns: %v", rules.NoisePatterns)
		}
	})

	t.Run("section without keywords", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("sections:\n  - section: x\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadRules(path); err == nil {
			t.Error("expected error for section without keywords")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadRules(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
