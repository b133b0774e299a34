package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	EventSubject     string
	JWTSecret        string
	JWTExpiry        time.Duration
	JWTIssuer        string
	BcryptCost       int
	SummaryCacheTTL  time.Duration
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	CORSAllowOrigins string
	AdminName        string
	AdminEmail       string
	AdminPassword    string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SENA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SENA Attendance API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "5000")
	v.SetDefault("jwt.expire", "720h")
	v.SetDefault("jwt.issuer", "sena-attendance-api")
	v.SetDefault("bcrypt.cost", 10)
	v.SetDefault("summary.cache_ttl", "5m")
	v.SetDefault("events.subject", "sena.events")
	v.SetDefault("login.rate_limit", 10)
	v.SetDefault("login.rate_window", "1m")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("admin.name", "Administrador SENA")

	jwtExpiry, err := parseDuration(v, "jwt.expire")
	if err != nil {
		return Config{}, err
	}
	summaryTTL, err := parseDuration(v, "summary.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	loginWindow, err := parseDuration(v, "login.rate_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		EventSubject:     v.GetString("events.subject"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTExpiry:        jwtExpiry,
		JWTIssuer:        v.GetString("jwt.issuer"),
		BcryptCost:       v.GetInt("bcrypt.cost"),
		SummaryCacheTTL:  summaryTTL,
		LoginRateLimit:   v.GetInt("login.rate_limit"),
		LoginRateWindow:  loginWindow,
		CORSAllowOrigins: v.GetString("cors.allow_origins"),
		AdminName:        v.GetString("admin.name"),
		AdminEmail:       strings.TrimSpace(v.GetString("admin.email")),
		AdminPassword:    v.GetString("admin.password"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}
