package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"guideline-rag/internal/models"
)

type Config struct {
	RAG          RAGConfig    `yaml:"rag"`
	EmbedLLM     LLMConfig    `yaml:"embed_llm"`
	InferenceLLM LLMConfig    `yaml:"inference_llm"`
	Server       ServerConfig `yaml:"server"`

	// resolved once by LoadConfig, never read from the environment afterwards
	LLMEnabled bool `yaml:"-"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	IndexBackend string `yaml:"index_backend"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Key         string  `yaml:"key"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	BatchSize   int     `yaml:"batch_size"`
	CacheSize   int     `yaml:"cache_size"`
	Dimension   int     `yaml:"dimension"`
	ModelsDir   string  `yaml:"models_dir"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

const (
	IndexBackendFlat    = "flat"
	IndexBackendChromem = "chromem"

	ProviderLocal   = "local"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderHashing = "hashing"

	defaultAPIKeyEnv = "OPENAI_API_KEY"
	defaultAddr      = ":8080"
)

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
// Values from .env files (if present) are loaded into the environment first.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	loadEnv(envFiles...)

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolveKeys()
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		RAG: RAGConfig{
			ChunkSize:    models.DefaultChunkSize,
			ChunkOverlap: models.DefaultChunkOverlap,
			TopK:         models.DefaultTopK,
			IndexBackend: IndexBackendFlat,
		},
		EmbedLLM: LLMConfig{
			Provider:  ProviderLocal,
			Model:     models.DefaultEmbeddingModel,
			BatchSize: 32,
			CacheSize: 256,
			Dimension: 384,
		},
		InferenceLLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       models.DefaultInferenceModel,
			APIKeyEnv:   defaultAPIKeyEnv,
			Temperature: models.DefaultTemperature,
		},
		Server: ServerConfig{Addr: defaultAddr},
	}
	return cfg
}

// ApplyDefaults fills zero values. Overlap and temperature are left alone since
// zero is a meaningful setting for both.
func ApplyDefaults(cfg *Config) {
	def := Default()
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.RAG.IndexBackend == "" {
		cfg.RAG.IndexBackend = def.RAG.IndexBackend
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = def.EmbedLLM.Provider
	}
	if cfg.EmbedLLM.Model == "" && cfg.EmbedLLM.Provider == ProviderLocal {
		cfg.EmbedLLM.Model = def.EmbedLLM.Model
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = def.EmbedLLM.BatchSize
	}
	if cfg.EmbedLLM.CacheSize == 0 {
		cfg.EmbedLLM.CacheSize = def.EmbedLLM.CacheSize
	}
	if cfg.EmbedLLM.Dimension == 0 {
		cfg.EmbedLLM.Dimension = def.EmbedLLM.Dimension
	}
	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = def.InferenceLLM.Provider
	}
	if cfg.InferenceLLM.Model == "" {
		cfg.InferenceLLM.Model = def.InferenceLLM.Model
	}
	if cfg.InferenceLLM.APIKeyEnv == "" {
		cfg.InferenceLLM.APIKeyEnv = def.InferenceLLM.APIKeyEnv
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
}

// Validate checks the options that would otherwise fail deep in the pipeline.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("config: chunk_overlap %d must be in [0, chunk_size %d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopK < models.MinTopK || c.RAG.TopK > models.MaxTopK {
		return fmt.Errorf("config: top_k %d outside [%d, %d]", c.RAG.TopK, models.MinTopK, models.MaxTopK)
	}
	switch c.RAG.IndexBackend {
	case IndexBackendFlat, IndexBackendChromem:
	default:
		return fmt.Errorf("config: unknown index_backend %q", c.RAG.IndexBackend)
	}
	switch c.EmbedLLM.Provider {
	case ProviderLocal, ProviderOpenAI, ProviderOllama, ProviderHashing:
	default:
		return fmt.Errorf("config: unknown embed_llm provider %q", c.EmbedLLM.Provider)
	}
	if c.EmbedLLM.BatchSize < 0 || c.EmbedLLM.CacheSize < 0 {
		return errors.New("config: embed_llm batch_size and cache_size must not be negative")
	}
	return nil
}

func (c *Config) resolveKeys() {
	if c.InferenceLLM.Key == "" {
		c.InferenceLLM.Key = os.Getenv(c.InferenceLLM.APIKeyEnv)
	}
	if c.EmbedLLM.Key == "" && c.EmbedLLM.Provider == ProviderOpenAI {
		env := c.EmbedLLM.APIKeyEnv
		if env == "" {
			env = defaultAPIKeyEnv
		}
		c.EmbedLLM.Key = os.Getenv(env)
	}
	c.LLMEnabled = strings.TrimSpace(c.InferenceLLM.Key) != ""
}

func loadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// existing environment variables win over the file
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("Error loading env file")
		}
	}
}
