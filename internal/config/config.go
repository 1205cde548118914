package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	LogLevel    string
	DatabaseURL string

	LLMProvider string

	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIEmbedModel string

	GeminiAPIKey     string
	GeminiModel      string
	GeminiEmbedModel string

	GrokAPIKey  string
	GrokBaseURL string
	GrokModel   string

	MaxRows      int
	QueryTimeout int // seconds, enforced as a statement timeout

	SchemaTopK int

	NatsURL   string
	NatsToken string

	ExportEndpoint  string
	ExportRegion    string
	ExportBucket    string
	ExportAccessKey string
	ExportSecretKey string
	ExportUseSSL    bool
	ExportPrefix    string

	AuthUsername string
	AuthPassword string
}

func Load() Config {
	return Config{
		Port:        envInt("SIBYL_PORT", 8460),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		DatabaseURL: envStr("DATABASE_URL", ""),

		LLMProvider: envStr("LLM_PROVIDER", "openai"),

		OpenAIAPIKey:     envStr("OPENAI_API_KEY", ""),
		OpenAIModel:      envStr("OPENAI_MODEL", "gpt-4o"),
		OpenAIEmbedModel: envStr("OPENAI_EMBED_MODEL", "text-embedding-3-large"),

		GeminiAPIKey:     envStr("GEMINI_API_KEY", ""),
		GeminiModel:      envStr("GEMINI_MODEL", "gemini-1.5-pro"),
		GeminiEmbedModel: envStr("GEMINI_EMBED_MODEL", "text-embedding-004"),

		GrokAPIKey:  envStr("GROK_API_KEY", ""),
		GrokBaseURL: envStr("GROK_API_URL", "https://api.x.ai/v1"),
		GrokModel:   envStr("GROK_MODEL", "grok-2-latest"),

		MaxRows:      envInt("MAX_ROWS", 500),
		QueryTimeout: envInt("QUERY_TIMEOUT", 10),

		SchemaTopK: envInt("SCHEMA_TOP_K", 5),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		ExportEndpoint:  envStr("EXPORT_S3_ENDPOINT", ""),
		ExportRegion:    envStr("EXPORT_S3_REGION", "us-east-1"),
		ExportBucket:    envStr("EXPORT_S3_BUCKET", ""),
		ExportAccessKey: envStr("EXPORT_S3_ACCESS_KEY", ""),
		ExportSecretKey: envStr("EXPORT_S3_SECRET_KEY", ""),
		ExportUseSSL:    envBool("EXPORT_S3_USE_SSL", false),
		ExportPrefix:    envStr("EXPORT_S3_PREFIX", "exports"),

		AuthUsername: envStr("SIBYL_AUTH_USERNAME", "admin"),
		AuthPassword: envStr("SIBYL_AUTH_PASSWORD", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
