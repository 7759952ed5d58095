package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env     string
	Port    string
	Mode    string
	BaseURL string

	FrontendURL string

	DatabaseURL   string
	RedisURL      string
	SeedDevData   bool
	LogLevel      string
	LogFormat     string
	AuthRateLimit int

	Auth    AuthConfig
	Stripe  StripeConfig
	OpenAI  OpenAIConfig
	Email   EmailConfig
	Scraper ScraperConfig
	Voice   VoiceConfig
	Usage   UsageConfig
}

// AuthConfig covers cookie sessions, the identity provider and OAuth.
type AuthConfig struct {
	SessionSecret      string
	JWTSecret          string
	Issuer             string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	EncryptionKey      string
	ResetTokenTTL      time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceIDPro    string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type EmailConfig struct {
	Provider       string
	APIKey         string
	Sender         string
	BroadcastDelay time.Duration
}

type ScraperConfig struct {
	APIKey  string
	BaseURL string
}

type VoiceConfig struct {
	APIKey      string
	BaseURL     string
	AssistantID string
}

type UsageConfig struct {
	FreeMonthlyLimit int
}

// Load reads configuration from environment variables
func Load() *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnvWithDefault("ENV", "development"),
		Port:          getEnvWithDefault("PORT", "8080"),
		Mode:          strings.ToLower(getEnvWithDefault("MODE", "server")),
		BaseURL:       strings.TrimRight(getEnvWithDefault("BASE_URL", "http://localhost:8080"), "/"),
		FrontendURL:   strings.TrimRight(getEnvWithDefault("FRONTEND_URL", "http://localhost:3000"), "/"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		SeedDevData:   getEnvAsBool("SEED_DEV_DATA", false),
		LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvWithDefault("LOG_FORMAT", "json"),
		AuthRateLimit: getEnvAsInt("AUTH_RATE_LIMIT", 10),
		Auth: AuthConfig{
			SessionSecret:      os.Getenv("SESSION_SECRET"),
			JWTSecret:          os.Getenv("AUTH_JWT_SECRET"),
			Issuer:             os.Getenv("AUTH_ISSUER"),
			GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			GoogleCallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
			EncryptionKey:      os.Getenv("ENCRYPTION_KEY"),
			ResetTokenTTL:      getEnvAsDuration("RESET_TOKEN_TTL", time.Hour),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceIDPro:    os.Getenv("STRIPE_PRICE_ID_PRO"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Email: EmailConfig{
			Provider:       strings.ToLower(getEnvWithDefault("EMAIL_PROVIDER", "resend")),
			APIKey:         os.Getenv("EMAIL_API_KEY"),
			Sender:         getEnvWithDefault("EMAIL_SENDER", "LinkedGrow <hello@linkedgrow.app>"),
			BroadcastDelay: getEnvAsDuration("BROADCAST_DELAY", 600*time.Millisecond),
		},
		Scraper: ScraperConfig{
			APIKey:  os.Getenv("SCRAPER_API_KEY"),
			BaseURL: getEnvWithDefault("SCRAPER_BASE_URL", "https://api.scrapingdog.com"),
		},
		Voice: VoiceConfig{
			APIKey:      os.Getenv("VOICE_API_KEY"),
			BaseURL:     getEnvWithDefault("VOICE_BASE_URL", "https://api.vapi.ai"),
			AssistantID: os.Getenv("VOICE_ASSISTANT_ID"),
		},
		Usage: UsageConfig{
			FreeMonthlyLimit: getEnvAsInt("FREE_MONTHLY_LIMIT", 5),
		},
	}

	// Warn if using default session secret (insecure for production)
	if cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		log.Println("WARNING: Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	return cfg
}

// IsProduction reports whether the service runs with production cookie settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
