package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the process-wide configuration, loaded once at startup.
type Config struct {
	// OpenAI configuration
	APIKey       string
	BaseURL      string // empty means the SDK default
	WhisperModel string
	ChatModel    string
	TTSModel     string
	Voice        string

	// Server configuration
	Addr        string
	StaticDir   string
	AdminSecret string

	UpstreamTimeout time.Duration
	PingInterval    time.Duration
}

// Load reads configuration from a .env file (if present) and the environment.
// The API key is the only hard requirement; everything else has a default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to load .env file")
		}
	}

	cfg := &Config{
		APIKey:          os.Getenv("OPENAI_API_KEY"),
		BaseURL:         getEnv("OPENAI_BASE_URL", ""),
		WhisperModel:    getEnv("WHISPER_MODEL", "whisper-1"),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o-mini"),
		TTSModel:        getEnv("TTS_MODEL", "tts-1"),
		Voice:           getEnv("TTS_VOICE", "alloy"),
		Addr:            getEnv("ADDR", ":3000"),
		StaticDir:       getEnv("STATIC_DIR", "./public"),
		AdminSecret:     getEnv("ADMIN_SECRET", ""),
		UpstreamTimeout: getDurationSeconds("UPSTREAM_TIMEOUT_SECONDS", 60*time.Second),
		PingInterval:    getDurationSeconds("PING_INTERVAL_SECONDS", 25*time.Second),
	}

	if cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY must be set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
