package config

import "os"

// Config holds server configuration.
type Config struct {
	Port          string
	LogLevel      string
	DatabaseURL   string
	LLMServiceURL string
	LLMAPIKey     string
	LLMModel      string
	// ShadowMode runs every agent body against a deterministic stub
	// provider instead of LLMServiceURL, so the pipeline can be exercised
	// end to end without a live model behind it.
	ShadowMode bool
	DataDir    string
	RedisURL   string
	JWTSecret  string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	// DatabaseURL left empty selects lite mode: a local SQLite file under
	// DataDir instead of a Postgres connection.
	dbURL := os.Getenv("DATABASE_URL")

	llmURL := os.Getenv("LLM_SERVICE_URL")
	if llmURL == "" {
		// Default to LM Studio Local
		llmURL = "http://host.docker.internal:1234/v1/chat/completions"
	}

	shadowMode := os.Getenv("SHADOW_MODE") == "true"

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-change-me"
	}

	return &Config{
		Port:          port,
		LogLevel:      logLevel,
		DatabaseURL:   dbURL,
		LLMServiceURL: llmURL,
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		LLMModel:      os.Getenv("LLM_MODEL"),
		ShadowMode:    shadowMode,
		DataDir:       dataDir,
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSecret:     jwtSecret,
	}
}
