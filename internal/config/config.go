package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// Chunk failure policies for the ingestion orchestrator.
const (
	OnChunkFailureDrop       = "drop"
	OnChunkFailureDeadLetter = "dead_letter"
)

// Completion client backends.
const (
	ClientOpenAI    = "openai"
	ClientLangChain = "langchain"
)

// Config holds the tenderdex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Intent     IntentConfig     `yaml:"intent"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy"`
	Input      InputConfig      `yaml:"input"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ProviderConfig holds credentials for an OpenAI-compatible API.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding settings. One vectorizer serves an index for its lifetime.
type EmbeddingConfig struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Vectorizer VectorizerConfig          `yaml:"vectorizer"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	BatchSize           int    `yaml:"batch_size"`          // provider limit per request
	QueryCacheTTLSec    int    `yaml:"query_cache_ttl_sec"` // 0 = no expiry
	DisableQueryCache   bool   `yaml:"disable_query_cache"`
}

// ClassifierConfig holds the enrichment classifier settings.
type ClassifierConfig struct {
	Provider          string  `yaml:"provider"` // key into embedding.providers
	Client            string  `yaml:"client"`   // openai, langchain (default: openai)
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	MinTextLength     int     `yaml:"min_text_length"`
	KeywordGateLength int     `yaml:"keyword_gate_length"`
	MaxTags           int     `yaml:"max_tags"`
	CacheContext      bool    `yaml:"cache_context"`
	CacheTTLSec       int     `yaml:"cache_ttl_sec"`
}

// IntentConfig holds query intent analysis settings. Empty model falls back to the classifier model.
type IntentConfig struct {
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// TaxonomyConfig points at the taxonomy file. Empty path uses the built-in taxonomy.
type TaxonomyConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// InputConfig describes the source table.
type InputConfig struct {
	Path      string         `yaml:"path"`
	Delimiter string         `yaml:"delimiter"`
	Columns   tender.Columns `yaml:"columns"`
}

// IngestConfig holds orchestrator and enrichment driver settings.
type IngestConfig struct {
	ChunkSize      int    `yaml:"chunk_size"`
	SubBatchSize   int    `yaml:"sub_batch_size"`
	Concurrency    int    `yaml:"concurrency"`
	WorkDir        string `yaml:"work_dir"`
	OnChunkFailure string `yaml:"on_chunk_failure"` // drop, dead_letter (default)
	DeadLetterPath string `yaml:"dead_letter_path"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Name                 string `yaml:"name"`
	HNSWM                int    `yaml:"hnsw_m"`
	HNSWEFConstruct      int    `yaml:"hnsw_ef_construction"`
	BatchSize            int    `yaml:"batch_size"`
	RemediationBatchSize int    `yaml:"remediation_batch_size"`
}

// CalibrationAnchor maps a raw distance to a score.
type CalibrationAnchor struct {
	Distance float64 `yaml:"distance"`
	Score    float64 `yaml:"score"`
}

// SearchConfig holds search engine settings. Calibration anchors are tuned per embedding model.
type SearchConfig struct {
	DefaultLimit    int                 `yaml:"default_limit"`
	MaxLimit        int                 `yaml:"max_limit"`
	OverfetchFactor int                 `yaml:"overfetch_factor"`
	Calibration     []CalibrationAnchor `yaml:"calibration"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from config/<env>.yaml (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}

	setInt(&c.HTTP.Port, 8080)
	setInt(&c.HTTP.ReadTimeoutSec, 10)
	setInt(&c.HTTP.WriteTimeoutSec, 30)
	setInt(&c.HTTP.ShutdownSec, 10)

	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	setInt(&c.Database.ReadinessTimeout, 10)

	setInt(&c.Embedding.Vectorizer.BatchSize, 100)

	if c.Classifier.Client == "" {
		c.Classifier.Client = ClientOpenAI
	}
	if c.Classifier.Provider == "" {
		c.Classifier.Provider = c.Embedding.Vectorizer.Provider
	}
	if c.Classifier.Temperature <= 0 {
		c.Classifier.Temperature = 0.1
	}
	setInt(&c.Classifier.TimeoutSec, 30)
	setInt(&c.Classifier.Burst, 1)
	setInt(&c.Classifier.MinTextLength, 15)
	setInt(&c.Classifier.KeywordGateLength, 60)
	setInt(&c.Classifier.MaxTags, 3)
	setInt(&c.Classifier.CacheTTLSec, 3600)

	if c.Intent.Model == "" {
		c.Intent.Model = c.Classifier.Model
	}
	setInt(&c.Intent.TimeoutSec, 5)

	if c.Input.Delimiter == "" {
		c.Input.Delimiter = ","
	}
	c.Input.Columns = c.Input.Columns.WithDefaults()

	setInt(&c.Ingest.ChunkSize, 500)
	setInt(&c.Ingest.SubBatchSize, 50)
	setInt(&c.Ingest.Concurrency, 10)
	if c.Ingest.WorkDir == "" {
		c.Ingest.WorkDir = "data/work"
	}
	if c.Ingest.OnChunkFailure == "" {
		c.Ingest.OnChunkFailure = OnChunkFailureDeadLetter
	}
	if c.Ingest.DeadLetterPath == "" {
		c.Ingest.DeadLetterPath = filepath.Join(c.Ingest.WorkDir, "deadletter.db")
	}

	if c.Index.Name == "" {
		c.Index.Name = "tenders"
	}
	setInt(&c.Index.HNSWM, 16)
	setInt(&c.Index.HNSWEFConstruct, 200)
	setInt(&c.Index.BatchSize, 50)
	setInt(&c.Index.RemediationBatchSize, 500)

	setInt(&c.Search.DefaultLimit, 20)
	setInt(&c.Search.MaxLimit, 100)
	setInt(&c.Search.OverfetchFactor, 2)
	if len(c.Search.Calibration) == 0 {
		c.Search.Calibration = []CalibrationAnchor{
			{Distance: 0.5, Score: 100},
			{Distance: 1.15, Score: 0},
		}
	}

	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "tenderdex:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case "", "redis", "valkey":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}

	v := c.Embedding.Vectorizer
	if v.Model == "" {
		return fmt.Errorf("embedding.vectorizer.model is required")
	}
	if _, ok := c.Embedding.Providers[v.Provider]; !ok {
		return fmt.Errorf("embedding.vectorizer.provider %q is not defined in embedding.providers", v.Provider)
	}

	switch c.Classifier.Client {
	case "", ClientOpenAI, ClientLangChain:
	default:
		return fmt.Errorf("classifier.client must be %q or %q, got %q", ClientOpenAI, ClientLangChain, c.Classifier.Client)
	}
	if c.Classifier.Model == "" {
		return fmt.Errorf("classifier.model is required")
	}
	if _, ok := c.Embedding.Providers[c.Classifier.Provider]; !ok {
		return fmt.Errorf("classifier.provider %q is not defined in embedding.providers", c.Classifier.Provider)
	}
	if c.Classifier.KeywordGateLength < c.Classifier.MinTextLength {
		return fmt.Errorf("classifier.keyword_gate_length (%d) must not be below classifier.min_text_length (%d)",
			c.Classifier.KeywordGateLength, c.Classifier.MinTextLength)
	}

	switch c.Ingest.OnChunkFailure {
	case "", OnChunkFailureDrop, OnChunkFailureDeadLetter:
	default:
		return fmt.Errorf("ingest.on_chunk_failure must be %q or %q, got %q",
			OnChunkFailureDrop, OnChunkFailureDeadLetter, c.Ingest.OnChunkFailure)
	}

	return validateCalibration(c.Search.Calibration)
}

func validateCalibration(anchors []CalibrationAnchor) error {
	for i, a := range anchors {
		if a.Score < 0 || a.Score > 100 {
			return fmt.Errorf("search.calibration[%d].score must be within [0, 100], got %g", i, a.Score)
		}
		if i == 0 {
			continue
		}
		prev := anchors[i-1]
		if a.Distance <= prev.Distance {
			return fmt.Errorf("search.calibration distances must be strictly increasing at index %d", i)
		}
		if a.Score > prev.Score {
			return fmt.Errorf("search.calibration scores must not increase with distance at index %d", i)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for tests and `go run` from a subdirectory.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
