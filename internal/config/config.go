package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"push-relay/internal/infrastructure/db"
	"push-relay/internal/infrastructure/fcm"
	"push-relay/internal/infrastructure/logging"
)

type Config struct {
	Port            string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	Log      logging.Config
	Firebase fcm.Config

	StaleAfter    time.Duration
	SweepInterval time.Duration

	ProviderTimeout    time.Duration
	ProviderBatchSize  int
	ProviderRatePerSec float64

	NotificationLogSize int

	DatabaseURL string
	DB          db.PoolConfig

	RedisURL     string
	RedisChannel string
}

func Default() Config {
	return Config{
		Port:                "3000",
		ShutdownTimeout:     10 * time.Second,
		CORSOrigins:         []string{"*"},
		Log:                 logging.Config{Level: "info", Format: "console"},
		Firebase:            fcm.Config{AndroidChannelID: "default"},
		StaleAfter:          time.Hour,
		SweepInterval:       time.Hour,
		ProviderTimeout:     10 * time.Second,
		ProviderBatchSize:   fcm.MaxMulticastTokens,
		ProviderRatePerSec:  20,
		NotificationLogSize: 1000,
		DB:                  db.DefaultPoolConfig(),
	}
}

// Load reads .env when present and then the process environment.
// It reports whether a .env file was loaded.
func Load() (Config, bool, error) {
	loaded := true
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, false, err
		}
		loaded = false
	}
	return FromEnv(), loaded, nil
}

// FromEnv applies environment overrides to Default. Unparseable values keep the default.
func FromEnv() Config {
	cfg := Default()

	if v := env("PORT"); v != "" {
		cfg.Port = v
	}
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if v := env("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	cfg.Firebase.CredentialsPath = env("FIREBASE_CREDENTIALS_PATH")
	cfg.Firebase.CredentialsJSON = env("FIREBASE_CREDENTIALS_JSON")
	if cfg.Firebase.CredentialsJSON == "" {
		cfg.Firebase.CredentialsJSON = env("FIREBASE_SERVICE_ACCOUNT")
	}
	cfg.Firebase.ProjectID = env("FIREBASE_PROJECT_ID")
	if v := env("FCM_ANDROID_CHANNEL"); v != "" {
		cfg.Firebase.AndroidChannelID = v
	}

	cfg.StaleAfter = envDuration("STALE_AFTER", cfg.StaleAfter)
	cfg.SweepInterval = envDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.ProviderTimeout = envDuration("PROVIDER_TIMEOUT", cfg.ProviderTimeout)

	if v := env("PROVIDER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ProviderBatchSize = n
		}
	}
	if cfg.ProviderBatchSize < 1 || cfg.ProviderBatchSize > fcm.MaxMulticastTokens {
		cfg.ProviderBatchSize = fcm.MaxMulticastTokens
	}

	if v := env("PROVIDER_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.ProviderRatePerSec = f
		}
	}

	if v := env("NOTIFICATION_LOG_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NotificationLogSize = n
		}
	}

	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.DB = db.PoolConfigFromEnv()

	cfg.RedisURL = env("REDIS_URL")
	cfg.RedisChannel = env("REDIS_CHANNEL")

	return cfg
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envDuration(key string, def time.Duration) time.Duration {
	v := env(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
