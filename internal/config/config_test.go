package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{
			Providers: map[string]ProviderConfig{
				"nebius": {APIKey: "test-key", BaseURL: "https://api.example.com/v1/"},
			},
			Vectorizer: VectorizerConfig{Provider: "nebius", Model: "Qwen/Qwen3-Embedding-8B", Dimensions: 1024},
		},
		Classifier: ClassifierConfig{Model: "meta-llama/Llama-3.3-70B-Instruct"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Classifier.Provider != "nebius" {
		t.Errorf("expected classifier provider to default to vectorizer provider, got %q", cfg.Classifier.Provider)
	}
	if cfg.Intent.Model != cfg.Classifier.Model {
		t.Errorf("expected intent model to default to classifier model, got %q", cfg.Intent.Model)
	}
	if cfg.Ingest.OnChunkFailure != OnChunkFailureDeadLetter {
		t.Errorf("expected dead_letter default, got %q", cfg.Ingest.OnChunkFailure)
	}
	if len(cfg.Search.Calibration) != 2 || cfg.Search.Calibration[0].Distance != 0.5 {
		t.Errorf("unexpected default calibration: %+v", cfg.Search.Calibration)
	}
	if cfg.Input.Columns.Title[0] != "Summary" {
		t.Errorf("expected default title columns, got %v", cfg.Input.Columns.Title)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port must be between 1 and 65535, got 70000"},
		{"addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs is required"},
		{"driver", func(c *Config) { c.Database.Driver = "memcached" }, `database.driver must be "redis" or "valkey", got "memcached"`},
		{"model", func(c *Config) { c.Embedding.Vectorizer.Model = "" }, "embedding.vectorizer.model is required"},
		{"provider", func(c *Config) { c.Embedding.Vectorizer.Provider = "missing" }, `embedding.vectorizer.provider "missing" is not defined in embedding.providers`},
		{"client", func(c *Config) { c.Classifier.Client = "grpc" }, `classifier.client must be "openai" or "langchain", got "grpc"`},
		{"classifier model", func(c *Config) { c.Classifier.Model = "" }, "classifier.model is required"},
		{"gate", func(c *Config) { c.Classifier.KeywordGateLength = 5 }, "classifier.keyword_gate_length (5) must not be below classifier.min_text_length (15)"},
		{"policy", func(c *Config) { c.Ingest.OnChunkFailure = "retry" }, `ingest.on_chunk_failure must be "drop" or "dead_letter", got "retry"`},
		{"calibration order", func(c *Config) {
			c.Search.Calibration = []CalibrationAnchor{{Distance: 1, Score: 100}, {Distance: 0.5, Score: 0}}
		}, "search.calibration distances must be strictly increasing at index 1"},
		{"calibration monotone", func(c *Config) {
			c.Search.Calibration = []CalibrationAnchor{{Distance: 0.5, Score: 50}, {Distance: 1, Score: 80}}
		}, "search.calibration scores must not increase with distance at index 1"},
		{"calibration range", func(c *Config) {
			c.Search.Calibration = []CalibrationAnchor{{Distance: 0.5, Score: 120}}
		}, "search.calibration[0].score must be within [0, 100], got 120"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tt.want {
				t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TENDERDEX_TEST_KEY", "secret")

	path := filepath.Join(t.TempDir(), "test.yaml")
	data := `
database:
  addrs: ["${TENDERDEX_TEST_ADDR:-localhost:6379}"]
embedding:
  providers:
    nebius:
      api_key: ${TENDERDEX_TEST_KEY}
  vectorizer:
    provider: nebius
    model: text-embedding-3-small
    dimensions: 1536
classifier:
  model: gpt-4o-mini
ingest:
  on_chunk_failure: drop
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Addrs[0] != "localhost:6379" {
		t.Errorf("expected default addr, got %q", cfg.Database.Addrs[0])
	}
	if cfg.Embedding.Providers["nebius"].APIKey != "secret" {
		t.Errorf("expected expanded api key, got %q", cfg.Embedding.Providers["nebius"].APIKey)
	}
	if cfg.Ingest.OnChunkFailure != OnChunkFailureDrop {
		t.Errorf("expected drop policy, got %q", cfg.Ingest.OnChunkFailure)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("database: {addrs: []}"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("expected local, got %q", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("expected prod, got %q", got)
	}
}
