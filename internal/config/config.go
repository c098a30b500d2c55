package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete concept-rag configuration.
// It mirrors the component table in SPEC_FULL.md section 2.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
	Resilience  ResilienceConfig  `yaml:"resilience" json:"resilience"`
	Ingestion   IngestionConfig   `yaml:"ingestion" json:"ingestion"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
}

// PathsConfig configures the document library root and exclusions.
type PathsConfig struct {
	// DataDir is where the catalog/chunk/concept store and HNSW sidecar
	// files live. Defaults to ~/.concept_rag/data.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Library is the directory scanned for PDFs/EPUBs.
	Library string   `yaml:"library" json:"library"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig configures the hybrid ranking engine (spec.md section 4.1).
type SearchConfig struct {
	// CatalogWeights applies to whole-document catalog search.
	CatalogWeights ScoreWeights `yaml:"catalog_weights" json:"catalog_weights"`
	// ChunkWeights applies to chunk-within-source and broad chunk search.
	ChunkWeights ScoreWeights `yaml:"chunk_weights" json:"chunk_weights"`

	// BM25K1 and BM25B are the BM25 term-frequency saturation and length
	// normalization parameters. spec.md mandates 1.5 / 0.75 exactly.
	BM25K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B  float64 `yaml:"bm25_b" json:"bm25_b"`

	// RRFConstant is the secondary Reciprocal Rank Fusion smoothing constant.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// CandidateOverfetch is the multiplier applied to the requested limit
	// when generating the candidate pool before composite scoring.
	CandidateOverfetch int `yaml:"candidate_overfetch" json:"candidate_overfetch"`

	MaxResults int `yaml:"max_results" json:"max_results"`
}

// ScoreWeights is a weighted composite of the five scoring components.
// Validate requires CatalogWeights to sum to 1.0 (within 0.01) and does not
// check ChunkWeights; the default chunk profile sets Title to 0.
type ScoreWeights struct {
	Vector           float64 `yaml:"vector" json:"vector"`
	BM25             float64 `yaml:"bm25" json:"bm25"`
	Title            float64 `yaml:"title" json:"title"`
	ConceptAlignment float64 `yaml:"concept_alignment" json:"concept_alignment"`
	Thesaurus        float64 `yaml:"thesaurus" json:"thesaurus"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the embedding HTTP endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// LLMConfig configures the concept-extraction LLM client, an
// OpenAI-compatible endpoint (OpenRouter by default).
type LLMConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
	// APIKeyEnv names the environment variable holding the API key.
	// spec.md section 6 names OPENROUTER_API_KEY.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// ResilienceConfig configures the circuit breaker / bulkhead / timeout /
// retry composition wrapping every outbound call (spec.md section 4.5).
type ResilienceConfig struct {
	LLM       EndpointResilience `yaml:"llm" json:"llm"`
	Embedding EndpointResilience `yaml:"embedding" json:"embedding"`
	Store     EndpointResilience `yaml:"store" json:"store"`

	// RateLimitTokensPerSec is the shared token-bucket rate applied to all
	// LLM and embedding calls, per API key.
	RateLimitTokensPerSec float64 `yaml:"rate_limit_tokens_per_sec" json:"rate_limit_tokens_per_sec"`
	RateLimitBurst        int     `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// EndpointResilience is the per-endpoint circuit breaker/bulkhead/timeout
// configuration for one outbound collaborator (LLM, embedding, store).
type EndpointResilience struct {
	BulkheadSlots        int           `yaml:"bulkhead_slots" json:"bulkhead_slots"`
	Timeout              time.Duration `yaml:"timeout" json:"timeout"`
	FailureThreshold     int           `yaml:"failure_threshold" json:"failure_threshold"`
	HalfOpenAfter        time.Duration `yaml:"half_open_after" json:"half_open_after"`
	RetryMaxAttempts     int           `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryBaseDelay       time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryMaxDelay        time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`
}

// IngestionConfig configures the document-ingestion pipeline.
type IngestionConfig struct {
	Workers           int     `yaml:"workers" json:"workers"`
	ChunkSize         int     `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int     `yaml:"chunk_overlap" json:"chunk_overlap"`
	OCRPageThreshold  float64 `yaml:"ocr_page_threshold" json:"ocr_page_threshold"`
	CheckpointPath    string  `yaml:"checkpoint_path" json:"checkpoint_path"`
}

// CacheConfig configures the multi-level LRU cache layer (spec.md section 4.4).
type CacheConfig struct {
	ResultCacheSize int           `yaml:"result_cache_size" json:"result_cache_size"`
	ResultCacheTTL  time.Duration `yaml:"result_cache_ttl" json:"result_cache_ttl"`
	EmbeddingCacheSize int        `yaml:"embedding_cache_size" json:"embedding_cache_size"`
}

// PerformanceConfig configures general resource tuning.
type PerformanceConfig struct {
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// defaultExcludePatterns are always excluded from library scans.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/.DS_Store",
	"**/Thumbs.db",
}

// NewConfig returns a Config populated with the defaults from spec.md.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
			Library: "",
			Exclude: defaultExcludePatterns,
		},
		Search: SearchConfig{
			CatalogWeights: ScoreWeights{
				Vector:           0.25,
				BM25:             0.25,
				Title:            0.20,
				ConceptAlignment: 0.20,
				Thesaurus:        0.10,
			},
			ChunkWeights: ScoreWeights{
				Vector:           0.40,
				BM25:             0.25,
				Title:            0,
				ConceptAlignment: 0.20,
				Thesaurus:        0.15,
			},
			BM25K1:             1.5,
			BM25B:              0.75,
			RRFConstant:        60,
			CandidateOverfetch: 3,
			MaxResults:         20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 384,
			BatchSize:  32,
			OllamaHost: "",
		},
		LLM: LLMConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			Model:     "openai/gpt-4o-mini",
			APIKeyEnv: "OPENROUTER_API_KEY",
		},
		Resilience: ResilienceConfig{
			LLM: EndpointResilience{
				BulkheadSlots:    10,
				Timeout:          60 * time.Second,
				FailureThreshold: 5,
				HalfOpenAfter:    30 * time.Second,
				RetryMaxAttempts: 3,
				RetryBaseDelay:   1 * time.Second,
				RetryMaxDelay:    30 * time.Second,
			},
			Embedding: EndpointResilience{
				BulkheadSlots:    20,
				Timeout:          10 * time.Second,
				FailureThreshold: 5,
				HalfOpenAfter:    30 * time.Second,
				RetryMaxAttempts: 3,
				RetryBaseDelay:   1 * time.Second,
				RetryMaxDelay:    30 * time.Second,
			},
			Store: EndpointResilience{
				BulkheadSlots:    50,
				Timeout:          5 * time.Second,
				FailureThreshold: 5,
				HalfOpenAfter:    30 * time.Second,
				RetryMaxAttempts: 3,
				RetryBaseDelay:   1 * time.Second,
				RetryMaxDelay:    30 * time.Second,
			},
			RateLimitTokensPerSec: 5,
			RateLimitBurst:        10,
		},
		Ingestion: IngestionConfig{
			Workers:          1,
			ChunkSize:        1000,
			ChunkOverlap:     200,
			OCRPageThreshold: 0.1,
			CheckpointPath:   "",
		},
		Cache: CacheConfig{
			ResultCacheSize:    1000,
			ResultCacheTTL:     5 * time.Minute,
			EmbeddingCacheSize: 10000,
		},
		Performance: PerformanceConfig{
			SQLiteCacheMB: 64,
		},
	}
}

// defaultDataDir returns ~/.concept_rag/data, falling back to a temp dir.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".concept_rag", "data")
	}
	return filepath.Join(home, ".concept_rag", "data")
}

// GetUserConfigPath follows XDG Base Directory convention:
//   - $XDG_CONFIG_HOME/concept-rag/config.yaml (if set)
//   - ~/.config/concept-rag/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "concept-rag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "concept-rag", "config.yaml")
	}
	return filepath.Join(home, ".config", "concept-rag", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the library rooted at dir, in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/concept-rag/config.yaml)
//  3. Project config (.concept-rag.yaml in dir)
//  4. Environment variables (CONCEPTRAG_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".concept-rag.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".concept-rag.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.Library != "" {
		c.Paths.Library = other.Paths.Library
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	mergeWeights(&c.Search.CatalogWeights, other.Search.CatalogWeights)
	mergeWeights(&c.Search.ChunkWeights, other.Search.ChunkWeights)
	if other.Search.BM25K1 != 0 {
		c.Search.BM25K1 = other.Search.BM25K1
	}
	if other.Search.BM25B != 0 {
		c.Search.BM25B = other.Search.BM25B
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.CandidateOverfetch != 0 {
		c.Search.CandidateOverfetch = other.Search.CandidateOverfetch
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}

	if other.LLM.BaseURL != "" {
		c.LLM.BaseURL = other.LLM.BaseURL
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.APIKeyEnv != "" {
		c.LLM.APIKeyEnv = other.LLM.APIKeyEnv
	}

	mergeEndpoint(&c.Resilience.LLM, other.Resilience.LLM)
	mergeEndpoint(&c.Resilience.Embedding, other.Resilience.Embedding)
	mergeEndpoint(&c.Resilience.Store, other.Resilience.Store)
	if other.Resilience.RateLimitTokensPerSec != 0 {
		c.Resilience.RateLimitTokensPerSec = other.Resilience.RateLimitTokensPerSec
	}
	if other.Resilience.RateLimitBurst != 0 {
		c.Resilience.RateLimitBurst = other.Resilience.RateLimitBurst
	}

	if other.Ingestion.Workers != 0 {
		c.Ingestion.Workers = other.Ingestion.Workers
	}
	if other.Ingestion.ChunkSize != 0 {
		c.Ingestion.ChunkSize = other.Ingestion.ChunkSize
	}
	if other.Ingestion.ChunkOverlap != 0 {
		c.Ingestion.ChunkOverlap = other.Ingestion.ChunkOverlap
	}
	if other.Ingestion.OCRPageThreshold != 0 {
		c.Ingestion.OCRPageThreshold = other.Ingestion.OCRPageThreshold
	}
	if other.Ingestion.CheckpointPath != "" {
		c.Ingestion.CheckpointPath = other.Ingestion.CheckpointPath
	}

	if other.Cache.ResultCacheSize != 0 {
		c.Cache.ResultCacheSize = other.Cache.ResultCacheSize
	}
	if other.Cache.ResultCacheTTL != 0 {
		c.Cache.ResultCacheTTL = other.Cache.ResultCacheTTL
	}
	if other.Cache.EmbeddingCacheSize != 0 {
		c.Cache.EmbeddingCacheSize = other.Cache.EmbeddingCacheSize
	}

	if other.Performance.SQLiteCacheMB != 0 {
		c.Performance.SQLiteCacheMB = other.Performance.SQLiteCacheMB
	}
}

func mergeWeights(dst *ScoreWeights, src ScoreWeights) {
	if src.Vector != 0 {
		dst.Vector = src.Vector
	}
	if src.BM25 != 0 {
		dst.BM25 = src.BM25
	}
	if src.Title != 0 {
		dst.Title = src.Title
	}
	if src.ConceptAlignment != 0 {
		dst.ConceptAlignment = src.ConceptAlignment
	}
	if src.Thesaurus != 0 {
		dst.Thesaurus = src.Thesaurus
	}
}

func mergeEndpoint(dst *EndpointResilience, src EndpointResilience) {
	if src.BulkheadSlots != 0 {
		dst.BulkheadSlots = src.BulkheadSlots
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.FailureThreshold != 0 {
		dst.FailureThreshold = src.FailureThreshold
	}
	if src.HalfOpenAfter != 0 {
		dst.HalfOpenAfter = src.HalfOpenAfter
	}
	if src.RetryMaxAttempts != 0 {
		dst.RetryMaxAttempts = src.RetryMaxAttempts
	}
	if src.RetryBaseDelay != 0 {
		dst.RetryBaseDelay = src.RetryBaseDelay
	}
	if src.RetryMaxDelay != 0 {
		dst.RetryMaxDelay = src.RetryMaxDelay
	}
}

// applyEnvOverrides applies CONCEPTRAG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONCEPTRAG_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("CONCEPTRAG_LIBRARY"); v != "" {
		c.Paths.Library = v
	}
	if v := os.Getenv("CONCEPTRAG_BM25_K1"); v != "" {
		if f, err := parseFloat64(v); err == nil && f > 0 {
			c.Search.BM25K1 = f
		}
	}
	if v := os.Getenv("CONCEPTRAG_BM25_B"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.BM25B = f
		}
	}
	if v := os.Getenv("CONCEPTRAG_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("CONCEPTRAG_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CONCEPTRAG_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CONCEPTRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CONCEPTRAG_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("CONCEPTRAG_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CONCEPTRAG_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingestion.Workers = n
		}
	}
	if v := os.Getenv("CONCEPTRAG_RATE_LIMIT_TOKENS_PER_SEC"); v != "" {
		if f, err := parseFloat64(v); err == nil && f > 0 {
			c.Resilience.RateLimitTokensPerSec = f
		}
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Search.BM25K1 <= 0 {
		return fmt.Errorf("search.bm25_k1 must be positive, got %f", c.Search.BM25K1)
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return fmt.Errorf("search.bm25_b must be between 0 and 1, got %f", c.Search.BM25B)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.CandidateOverfetch < 1 {
		return fmt.Errorf("search.candidate_overfetch must be at least 1, got %d", c.Search.CandidateOverfetch)
	}

	sum := c.Search.CatalogWeights.Vector + c.Search.CatalogWeights.BM25 +
		c.Search.CatalogWeights.Title + c.Search.CatalogWeights.ConceptAlignment +
		c.Search.CatalogWeights.Thesaurus
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.catalog_weights must sum to 1.0, got %.2f", sum)
	}

	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Ingestion.Workers < 1 {
		return fmt.Errorf("ingestion.workers must be at least 1, got %d", c.Ingestion.Workers)
	}
	if c.Ingestion.ChunkSize <= 0 {
		return fmt.Errorf("ingestion.chunk_size must be positive, got %d", c.Ingestion.ChunkSize)
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunk_overlap must be in [0, chunk_size), got %d", c.Ingestion.ChunkOverlap)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file, if any.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// APIKey resolves the LLM API key from the environment variable named by
// LLM.APIKeyEnv. Returns an empty string if unset.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

