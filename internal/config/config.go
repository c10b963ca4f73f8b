package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MatchPolicyAmbiguousOnMultiple = "ambiguous-on-multiple"
	MatchPolicyStrictCPFExact      = "strict-cpf-exact"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Memed patient-management API
	MemedToken   string
	MemedBaseURL string
	MemedTimeout time.Duration

	// Inbound ?token= check shared by every /api route
	AuthAPIToken string

	// Reconciliation
	MatchPolicy              string
	FormShareResponseBaseURL string

	// Notifications
	NtfyURL             string
	NotifyEmailProvider string
	NotifyEmailTo       string
	NotifyEmailFrom     string
	NotifyEmailFromName string
	SendGridAPIKey      string

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Submission dedupe
	DedupeEnabled bool
	DedupeTTL     time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// AWS (SES email sink)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SESConfigurationSet string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MemedToken:   strings.TrimSpace(getEnv("MEMED_TOKEN", "")),
		MemedBaseURL: getEnv("MEMED_BASE_URL", "https://gateway.memed.com.br"),
		MemedTimeout: getEnvAsDuration("MEMED_TIMEOUT", 30*time.Second),

		AuthAPIToken: strings.TrimSpace(getEnv("AUTH_API_TOKEN", "")),

		MatchPolicy:              strings.ToLower(strings.TrimSpace(getEnv("MATCH_POLICY", MatchPolicyAmbiguousOnMultiple))),
		FormShareResponseBaseURL: getEnv("FORMSHARE_RESPONSE_BASE_URL", "https://formshare.ai/forms/r"),

		NtfyURL:             getEnv("NTFY_URL", "https://ntfy.sh/drmente-prod"),
		NotifyEmailProvider: strings.ToLower(strings.TrimSpace(getEnv("NOTIFY_EMAIL_PROVIDER", ""))),
		NotifyEmailTo:       getEnv("NOTIFY_EMAIL_TO", ""),
		NotifyEmailFrom:     getEnv("NOTIFY_EMAIL_FROM", ""),
		NotifyEmailFromName: getEnv("NOTIFY_EMAIL_FROM_NAME", "Dr. Mente"),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		DedupeEnabled: getEnvAsBool("DEDUPE_ENABLED", false),
		DedupeTTL:     getEnvAsDuration("DEDUPE_TTL", 24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),
	}
}

// Validate rejects settings that cannot be wired. Missing tokens are not
// errors here: the handlers answer 500 for them per request.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	switch c.MatchPolicy {
	case MatchPolicyAmbiguousOnMultiple, MatchPolicyStrictCPFExact:
	default:
		return fmt.Errorf("config: unknown MATCH_POLICY %q", c.MatchPolicy)
	}
	switch c.NotifyEmailProvider {
	case "":
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			return errors.New("config: SENDGRID_API_KEY is required for the sendgrid email provider")
		}
	case "ses":
	default:
		return fmt.Errorf("config: unknown NOTIFY_EMAIL_PROVIDER %q", c.NotifyEmailProvider)
	}
	if c.NotifyEmailProvider != "" && (c.NotifyEmailTo == "" || c.NotifyEmailFrom == "") {
		return errors.New("config: NOTIFY_EMAIL_TO and NOTIFY_EMAIL_FROM are required when an email provider is set")
	}
	if c.DedupeEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("config: REDIS_ADDR is required when DEDUPE_ENABLED is set")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
