package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vigilapp/vigil/internal/archive"
)

// Config is the full process configuration, read from the environment with
// an optional .env overlay for development.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string

	JWTSecret string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string

	StripeWebhookSecret string

	// Cron expressions, evaluated in UTC.
	GenerateSpec string
	SweepSpec    string
	ArchiveSpec  string

	Archive archive.Config
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getenv("VIGIL_PORT", "8080"),
		DBPath:              getenv("VIGIL_DB_PATH", "vigil.db"),
		LogLevel:            getenv("VIGIL_LOG_LEVEL", "info"),
		JWTSecret:           os.Getenv("VIGIL_JWT_SECRET"),
		VAPIDPublicKey:      os.Getenv("VIGIL_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:     os.Getenv("VIGIL_VAPID_PRIVATE_KEY"),
		PushSubscriber:      getenv("VIGIL_PUSH_SUBSCRIBER", "mailto:ops@vigilapp.io"),
		StripeWebhookSecret: os.Getenv("VIGIL_STRIPE_WEBHOOK_SECRET"),
		GenerateSpec:        getenv("VIGIL_GENERATE_CRON", "5 0 * * *"),
		SweepSpec:           getenv("VIGIL_SWEEP_CRON", "*/5 * * * *"),
		ArchiveSpec:         getenv("VIGIL_ARCHIVE_CRON", "30 2 * * *"),
		Archive: archive.Config{
			Passphrase: os.Getenv("VIGIL_ARCHIVE_PASSPHRASE"),
			S3: archive.S3Config{
				Endpoint:  os.Getenv("VIGIL_S3_ENDPOINT"),
				Bucket:    os.Getenv("VIGIL_S3_BUCKET"),
				Region:    getenv("VIGIL_S3_REGION", "auto"),
				AccessKey: os.Getenv("VIGIL_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("VIGIL_S3_SECRET_KEY"),
			},
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("VIGIL_JWT_SECRET is required")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
