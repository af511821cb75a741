package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SNSRegion string

	// JWTSecret signs access/refresh tokens; CSRFSecret seeds CSRF token
	// derivation. Both are required in production — Load fails closed
	// rather than falling back to a weak default.
	JWTSecret     string
	CSRFSecret    string
	TokenIssuer   string
	TokenAudience string

	// OTP abuse thresholds. Policy knobs, not invariants.
	OTPPerPhonePerHour int
	OTPPerIPPerHour    int
	OTPGlobalPerHour   int
	OTPFanOutLimit     int

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OTPs       string
	AdminUsers string
}

// IsProduction reports whether the service runs with production hardening
// (Secure cookies, mandatory secrets).
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads all configuration from environment variables. In production it
// returns an error when any signing secret is absent.
func Load() (*Config, error) {
	cfg := &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			OTPs:       getEnv("DYNAMO_TABLE_OTPS", "otp_verifications"),
			AdminUsers: getEnv("DYNAMO_TABLE_ADMIN_USERS", "admin_users"),
		},

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		CSRFSecret:    getEnv("CSRF_SECRET", ""),
		TokenIssuer:   getEnv("TOKEN_ISSUER", "zeroshin-verify"),
		TokenAudience: getEnv("TOKEN_AUDIENCE", "zeroshin-app"),

		OTPPerPhonePerHour: getEnvInt("OTP_PER_PHONE_PER_HOUR", 3),
		OTPPerIPPerHour:    getEnvInt("OTP_PER_IP_PER_HOUR", 10),
		OTPGlobalPerHour:   getEnvInt("OTP_GLOBAL_PER_HOUR", 100),
		OTPFanOutLimit:     getEnvInt("OTP_FAN_OUT_LIMIT", 5),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}

	if cfg.IsProduction() {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if cfg.CSRFSecret == "" {
			return nil, fmt.Errorf("CSRF_SECRET is required in production")
		}
	}
	return cfg, nil
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
