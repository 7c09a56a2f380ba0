package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the threatlens server and CLI.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	GitHub   GitHubConfig
	Scan     ScanConfig
	AI       AIConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	APIKeyHash         string
	RequestsPerMinute  int
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty URL selects the in-process cache.
type RedisConfig struct {
	URL string
}

type CacheConfig struct {
	RecordTTL  time.Duration
	MemorySize int
}

type GitHubConfig struct {
	APIBaseURL      string
	ArchiveBaseURL  string
	Token           string
	Timeout         time.Duration
	MaxArchiveBytes int64

	// MaxUnpackedBytes caps the total size of files extracted from an archive.
	MaxUnpackedBytes int64
}

type ScanConfig struct {
	Concurrency int
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Temperature      float32
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Gemini           GeminiConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

var validProviders = map[string]bool{
	"ollama": true,
	"vllm":   true,
	"openai": true,
	"gemini": true,
}

// Load reads configuration from environment variables (after merging a .env
// file when one exists) and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("THREATLENS_PORT", 8080),
			Env:                envString("THREATLENS_ENV", "development"),
			APIKeyHash:         os.Getenv("THREATLENS_API_KEY_HASH"),
			RequestsPerMinute:  envInt("THREATLENS_RATE_LIMIT_RPM", 60),
			CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", "sqlite://threatlens.db"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Cache: CacheConfig{
			RecordTTL:  envDuration("CACHE_RECORD_TTL", 24*time.Hour),
			MemorySize: envInt("CACHE_MEMORY_SIZE", 4096),
		},
		GitHub: GitHubConfig{
			APIBaseURL:       envString("GITHUB_API_URL", "https://api.github.com/"),
			ArchiveBaseURL:   envString("GITHUB_ARCHIVE_URL", "https://github.com"),
			Token:            os.Getenv("GITHUB_TOKEN"),
			Timeout:          envDuration("GITHUB_TIMEOUT", 60*time.Second),
			MaxArchiveBytes:  int64(envInt("GITHUB_MAX_ARCHIVE_BYTES", 100<<20)),
			MaxUnpackedBytes: int64(envInt("GITHUB_MAX_UNPACKED_BYTES", 500<<20)),
		},
		Scan: ScanConfig{
			Concurrency: envInt("SCAN_CONCURRENCY", 4),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Temperature:      envFloat32("AI_TEMPERATURE", 0.3),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-2.0-flash"),
				BaseURL: os.Getenv("GEMINI_BASE_URL"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	for name, u := range map[string]string{
		"GITHUB_API_URL":     c.GitHub.APIBaseURL,
		"GITHUB_ARCHIVE_URL": c.GitHub.ArchiveBaseURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", name, u)
		}
	}
	if c.GitHub.MaxArchiveBytes <= 0 {
		return fmt.Errorf("GITHUB_MAX_ARCHIVE_BYTES must be positive, got %d", c.GitHub.MaxArchiveBytes)
	}
	if c.GitHub.MaxUnpackedBytes <= 0 {
		return fmt.Errorf("GITHUB_MAX_UNPACKED_BYTES must be positive, got %d", c.GitHub.MaxUnpackedBytes)
	}

	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("SCAN_CONCURRENCY must be at least 1, got %d", c.Scan.Concurrency)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai, gemini; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat32(key string, defaultVal float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return defaultVal
	}
	return float32(f)
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
