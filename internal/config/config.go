package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	PublicBaseURL    string
	AuthCookieSecure bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SubmitRatePerSecond float64
	SubmitBurst         int

	Email EmailConfig
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Enabled reports whether an SMTP relay is configured.
func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:             getenv("APP_SERVICE", "flowmarket"),
		AppVersion:          getenv("APP_VERSION", "0.1.0"),
		Environment:         environment,
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL:       strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AuthCookieSecure:    authCookieSecure,
		OTLPEndpoint:        getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:              getenv("DATABASE_TYPE", "sqlite"),
		DBHost:              getenv("DATABASE_HOST", "localhost"),
		DBPort:              getenv("DATABASE_PORT", "5432"),
		DBName:              getenv("DATABASE_NAME", "flowmarket"),
		DBUser:              getenv("DATABASE_USER", "postgres"),
		DBPassword:          getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:           getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:       getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:       getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:   getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:   getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RedisAddr:           strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		SubmitRatePerSecond: getenvFloat("REGISTRATION_SUBMIT_RATE", 0.2),
		SubmitBurst:         getenvInt("REGISTRATION_SUBMIT_BURST", 5),
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "FlowMarket <no-reply@flowmarket.local>"),
		},
	}
}

// IsProduction reports whether the app runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
