package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "APP_ENV", "LOG_LEVEL", "PARSER_PROVIDER", "PARSER_TIMEOUT",
		"LLM_PROVIDER", "EMBEDDING_PROVIDER", "SESSION_IDLE_TTL", "INSIGHT_INTERVAL",
		"ALERT_MAX_WORDS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "MIGRATE_ON_START", "NEO4J_USER",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, "production", AppEnv())
	assert.Equal(t, "info", LogLevel())
	assert.Equal(t, "http", ParserProvider())
	assert.Equal(t, 10*time.Second, ParserTimeout())
	assert.Equal(t, "openai", LLMProvider())
	assert.Equal(t, "openai", EmbeddingProvider())
	assert.Equal(t, 30*time.Minute, SessionIdleTTL())
	assert.Equal(t, time.Minute, InsightInterval())
	assert.Equal(t, 10, AlertMaxWords())
	assert.Equal(t, 100.0, RateLimitRPS())
	assert.Equal(t, 20, RateLimitBurst())
	assert.False(t, MigrateOnStart())
	assert.Equal(t, "neo4j", Neo4jUser())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "abc")
	t.Setenv("SESSION_IDLE_TTL", "-5m")
	t.Setenv("ALERT_MAX_WORDS", "0")
	t.Setenv("RATE_LIMIT_RPS", "-1")

	assert.Equal(t, 8080, ServerPort())
	assert.Equal(t, 30*time.Minute, SessionIdleTTL())
	assert.Equal(t, 10, AlertMaxWords())
	assert.Equal(t, 100.0, RateLimitRPS())
}

func TestProviderKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-anthropic")
	t.Setenv("CEREBRAS_API_KEY", "csk")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("OPENAI_CHAT_MODEL", "gpt-4o-mini")
	t.Setenv("LLM_MODEL", "")

	t.Setenv("LLM_PROVIDER", "openai")
	assert.Equal(t, "sk-openai", LLMAPIKey())
	assert.Equal(t, "http://localhost:11434/v1", LLMBaseURL())
	assert.Equal(t, "gpt-4o-mini", LLMModel())

	t.Setenv("LLM_PROVIDER", "anthropic")
	assert.Equal(t, "sk-anthropic", LLMAPIKey())
	assert.Empty(t, LLMModel())

	t.Setenv("LLM_PROVIDER", "cerebras")
	assert.Equal(t, "csk", LLMAPIKey())

	t.Setenv("LLM_PROVIDER", "mock")
	assert.Empty(t, LLMAPIKey())

	t.Setenv("EMBEDDING_PROVIDER", "none")
	assert.Empty(t, EmbeddingAPIKey())
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	assert.Equal(t, "sk-openai", EmbeddingAPIKey())
}

func TestLoadReadsEnvAndSecret(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PARSER_URL=http://parser:8000\nALERT_MAX_WORDS=15\n"), 0o600))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("API_KEY=s3cret\n"), 0o600))

	t.Setenv("STORYBRAIN_ENV", envFile)
	// godotenv never overrides variables that are already set, so clear them
	// through t.Setenv first to get them restored afterwards.
	t.Setenv("PARSER_URL", "")
	t.Setenv("ALERT_MAX_WORDS", "")
	t.Setenv("API_KEY", "")
	os.Unsetenv("PARSER_URL")
	os.Unsetenv("ALERT_MAX_WORDS")
	os.Unsetenv("API_KEY")

	require.NoError(t, Load())
	assert.Equal(t, "http://parser:8000", ParserURL())
	assert.Equal(t, 15, AlertMaxWords())
	assert.Equal(t, "s3cret", APIKey())
}
