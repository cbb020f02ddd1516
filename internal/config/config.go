package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the chat service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventChannel           string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int
	MessageRateLimit       int
	MessageRateWindow      time.Duration
	StatsCacheTTL          time.Duration
	SeedEnabled            bool
	SeedToken              string
	AllowOrigins           string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Chat API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.channel", "chat:events")
	v.SetDefault("cloudinary.folder", "chat/attachments")
	v.SetDefault("upload.max_size_mb", 25)
	v.SetDefault("message.rate_limit", 30)
	v.SetDefault("message.rate_window", "10s")
	v.SetDefault("stats.cache_ttl", "30s")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("cors.allow_origins", "*")

	windowString := v.GetString("message.rate_window")
	if windowString == "" {
		windowString = "10s"
	}

	window, err := time.ParseDuration(windowString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid message rate window: %w", err)
	}

	statsTTLString := v.GetString("stats.cache_ttl")
	if statsTTLString == "" {
		statsTTLString = "30s"
	}

	statsTTL, err := time.ParseDuration(statsTTLString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventChannel:           v.GetString("event.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		MessageRateLimit:       v.GetInt("message.rate_limit"),
		MessageRateWindow:      window,
		StatsCacheTTL:          statsTTL,
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
		AllowOrigins:           v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 25
	}

	if cfg.MessageRateLimit <= 0 {
		cfg.MessageRateLimit = 30
	}

	return cfg, nil
}
