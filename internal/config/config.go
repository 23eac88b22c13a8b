package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by STORYBRAIN_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("STORYBRAIN_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; the process environment still applies.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func positiveDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func ServerPort() int {
	return positiveInt("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// AppEnv is "production" unless set. Any other value selects development logging.
func AppEnv() string {
	return getenv("APP_ENV", "production")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	return getenv("LOG_LEVEL", "info")
}

// APIKey is the bearer token required on /v1 and /ws routes. Empty disables auth.
func APIKey() string {
	return os.Getenv("API_KEY")
}

func MigrationsPath() string {
	return getenv("MIGRATIONS_PATH", "migrations")
}

// MigrateOnStart applies the up migrations before serving when true.
func MigrateOnStart() bool {
	ok, _ := strconv.ParseBool(os.Getenv("MIGRATE_ON_START"))
	return ok
}

// ParserProvider is "http" (default) or "mock".
func ParserProvider() string {
	return getenv("PARSER_PROVIDER", "http")
}

func ParserURL() string {
	return os.Getenv("PARSER_URL")
}

func ParserTimeout() time.Duration {
	return positiveDuration("PARSER_TIMEOUT", 10*time.Second)
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func OpenAIBaseURL() string {
	return os.Getenv("OPENAI_BASE_URL")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured conflict explainer provider.
// Valid values: openai, anthropic, cerebras, mock
func LLMProvider() string {
	return getenv("LLM_PROVIDER", "openai")
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// LLMBaseURL only applies to the openai provider.
func LLMBaseURL() string {
	if LLMProvider() == "openai" {
		return OpenAIBaseURL()
	}
	return os.Getenv("LLM_BASE_URL")
}

// LLMModel is empty unless set, leaving each provider its default model.
func LLMModel() string {
	if m := os.Getenv("LLM_MODEL"); m != "" {
		return m
	}
	if LLMProvider() == "openai" {
		return os.Getenv("OPENAI_CHAT_MODEL")
	}
	return ""
}

// EmbeddingProvider returns the configured embedding provider.
// Valid values: openai, mock, none
func EmbeddingProvider() string {
	return getenv("EMBEDDING_PROVIDER", "openai")
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	if EmbeddingProvider() == "openai" {
		return OpenAIAPIKey()
	}
	return ""
}

func EmbeddingModel() string {
	return os.Getenv("OPENAI_EMBEDDING_MODEL")
}

func Neo4jURI() string {
	return os.Getenv("NEO4J_URI")
}

func Neo4jUser() string {
	return getenv("NEO4J_USER", "neo4j")
}

func Neo4jPassword() string {
	return os.Getenv("NEO4J_PASSWORD")
}

// SessionIdleTTL is how long an unused project graph stays in memory.
func SessionIdleTTL() time.Duration {
	return positiveDuration("SESSION_IDLE_TTL", 30*time.Minute)
}

func InsightInterval() time.Duration {
	return positiveDuration("INSIGHT_INTERVAL", time.Minute)
}

func AlertMaxWords() int {
	return positiveInt("ALERT_MAX_WORDS", 10)
}

// PromptsFile is an optional TOML file overriding the alert prompt.
func PromptsFile() string {
	return os.Getenv("PROMPTS_FILE")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return positiveInt("RATE_LIMIT_BURST", 20)
}
