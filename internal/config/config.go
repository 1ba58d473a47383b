package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// DomainURL is the public base URL magic links and verify URLs point at.
	DomainURL string

	// ServerSecret feeds the scrypt key derivation for magic-link payloads.
	ServerSecret string
	// SessionSecret signs the session cookie (HS256).
	SessionSecret string

	// OperatorEmail is the distinguished admin identity. Sign-ins with this
	// email get the admin role and the rate limiter's privileged boost.
	OperatorEmail string

	// SessionExpiryDays is the server-side session record lifetime.
	SessionExpiryDays int

	// FlyRegion is the region this instance runs in; PrimaryRegion is the
	// only region whose database accepts writes.
	FlyRegion     string
	PrimaryRegion string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Sessions      string
	Verifications string
	Calls         string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		DomainURL: getEnv("DOMAIN_URL", "http://localhost:3000"),

		ServerSecret:  getEnv("MAGIC_LINK_SECRET", "dev-magic-link-secret"),
		SessionSecret: getEnv("SESSION_SECRET", "dev-session-secret"),

		OperatorEmail: getEnv("OPERATOR_EMAIL", ""),

		SessionExpiryDays: getEnvInt("SESSION_EXPIRY_DAYS", 30),

		FlyRegion:     getEnv("FLY_REGION", ""),
		PrimaryRegion: getEnv("PRIMARY_REGION", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:      getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Verifications: getEnv("DYNAMO_TABLE_VERIFICATIONS", "verifications"),
			Calls:         getEnv("DYNAMO_TABLE_CALLS", "call_recordings"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "site-call-recordings"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Production reports whether this process serves real traffic. Rate limits
// are only enforced at face value in production.
func (c *Config) Production() bool { return c.AppEnv == "production" }

// PrimaryInstance reports whether this instance runs in the primary region
// (or in a single-region deployment with no region configured at all).
func (c *Config) PrimaryInstance() bool {
	return c.PrimaryRegion == "" || c.FlyRegion == c.PrimaryRegion
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
