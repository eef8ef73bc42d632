package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type StoreBackend string

const (
	StoreAuto     StoreBackend = "auto"
	StoreMongo    StoreBackend = "mongo"
	StorePostgres StoreBackend = "postgres"
	StoreFile     StoreBackend = "file"
	StoreMemory   StoreBackend = "memory"
	StoreNone     StoreBackend = "none"
)

type Config struct {
	Port int `env:"PORT" envDefault:"8000"`

	// Gemini (key-rotated pool)
	GeminiAPIKeys []string `env:"GEMINI_API_KEYS" envSeparator:" "`
	GeminiModel   string   `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// OpenAI-compatible chat backend
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Generation parameters
	MaxOutputTokens int     `env:"MAX_OUTPUT_TOKENS" envDefault:"150"`
	Temperature     float32 `env:"TEMPERATURE" envDefault:"0.7"`

	// Prompts / response shape
	BaseSystemPrompt string `env:"BASE_SYSTEM_PROMPT" envDefault:"You are a helpful AI assistant made by Sanchit. Avoid mentioning Google or OpenAI company names in responses."`
	Attribution      string `env:"ATTRIBUTION" envDefault:"Sanchit"`

	// Storage
	StoreBackend    StoreBackend `env:"STORE_BACKEND" envDefault:"auto"`
	MongoURI        string       `env:"MONGO_URI"`
	MongoDatabase   string       `env:"MONGO_DATABASE" envDefault:"chatbot_db"`
	DatabaseURL     string       `env:"DATABASE_URL"`
	HistoryFilePath string       `env:"HISTORY_FILE_PATH"`
	MemoryFilePath  string       `env:"MEMORY_FILE_PATH" envDefault:"data/memory.json"`

	// Session cache
	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL" envDefault:"1h"`
	SessionSweepSpec string        `env:"SESSION_SWEEP_SPEC" envDefault:"@every 10m"`

	// Static pages served at / and /docs
	StaticDir string `env:"STATIC_DIR"`
}

func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Parse reads the configuration from the process environment.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
