package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv               string
	Port                 string
	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiTextModel      string
	GeminiImageModel     string
	VeoModel             string
	VideoPollInterval    time.Duration
	VideoPollMaxAttempts int
	SceneImageInterval   time.Duration
	SceneImageBurst      int
	SessionTTL           time.Duration
	SessionRateLimit     int
	SessionRateWindow    time.Duration
	DefaultLocale        string
	CORSAllowedOrigins   []string
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// The Gemini key is deliberately not required here: its absence fails the
// individual remote call, not the process.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTextModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImageModel:     getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		VeoModel:             getEnv("VEO_MODEL", "veo-3.1-fast-generate-preview"),
		VideoPollInterval:    time.Second * time.Duration(getEnvInt("VIDEO_POLL_INTERVAL_SECONDS", 5)),
		VideoPollMaxAttempts: getEnvInt("VIDEO_POLL_MAX_ATTEMPTS", 60),
		SceneImageInterval:   time.Millisecond * time.Duration(getEnvInt("SCENE_IMAGE_INTERVAL_MS", 500)),
		SceneImageBurst:      getEnvInt("SCENE_IMAGE_BURST", 2),
		SessionTTL:           time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)),
		SessionRateLimit:     getEnvInt("SESSION_RATE_LIMIT", 30),
		SessionRateWindow:    time.Minute * time.Duration(getEnvInt("SESSION_RATE_WINDOW_MINUTES", 1)),
		DefaultLocale:        getEnv("DEFAULT_LOCALE", "en"),
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
