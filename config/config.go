package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	ServerPort int
	LogLevel   string

	Database DatabaseConfig
	Storage  StorageConfig
	Redis    RedisConfig
	MQ       MQConfig
	Engine   EngineConfig
	Platform PlatformConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// StorageConfig selects and configures the object-storage backend.
type StorageConfig struct {
	// Provider is "minio" or "gcs".
	Provider string
	Minio    MinioConfig
	GCS      GCSConfig
	// SignedURLTTL bounds the lifetime of download URLs handed to clients.
	SignedURLTTL time.Duration
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

// RedisConfig configures the optional shared entitlement cache. When Addr
// is empty an in-process TTL cache is used instead.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQConfig selects and configures the notification broker.
type MQConfig struct {
	// Provider is "rabbitmq", "pubsub" or "" to disable publishing.
	Provider string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL          string
	QueueDurable bool
}

type PubSubConfig struct {
	ProjectID       string
	CredentialsFile string
}

// EngineConfig configures the external generation engine client.
type EngineConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// UseMock swaps in an in-process fake engine for development.
	UseMock bool
}

// PlatformConfig configures access to the marketplace platform: token
// verification plus the bundle/pass grant ids checked per tier.
type PlatformConfig struct {
	BaseURL     string
	APIKey      string
	TokenSecret string
	Timeout     time.Duration

	// BundleIDs maps tier name (BASE/MID/TOP) to the platform bundle
	// grant id for that tier. Missing entries are skipped.
	BundleIDs map[string]string

	// PassIDs maps tier name to the platform pass grant id.
	PassIDs map[string]string

	// EntitlementTTL bounds staleness of cached entitlement results.
	EntitlementTTL time.Duration
}

// AuthConfig configures the fallback identity cookie.
type AuthConfig struct {
	CookieName   string
	CookieSecret string
	CookieTTL    time.Duration
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "musician"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "musician_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		Storage: StorageConfig{
			Provider: getEnv("STORAGE_PROVIDER", "minio"),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "musician-assets"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
			SignedURLTTL: getEnvDuration("SIGNED_URL_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		MQ: MQConfig{
			Provider: getEnv("MQ_PROVIDER", ""),
			RabbitMQ: RabbitMQConfig{
				URL:          getEnv("RABBITMQ_URL", ""),
				QueueDurable: getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			},
			PubSub: PubSubConfig{
				ProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile: getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			},
		},
		Engine: EngineConfig{
			BaseURL: getEnv("ENGINE_BASE_URL", "https://api.elevenlabs.io/v1/music"),
			APIKey:  getEnv("ENGINE_API_KEY", ""),
			Timeout: getEnvDuration("ENGINE_TIMEOUT", 30*time.Second),
			UseMock: getEnvBool("ENGINE_USE_MOCK", false),
		},
		Platform: PlatformConfig{
			BaseURL:        getEnv("PLATFORM_BASE_URL", ""),
			APIKey:         getEnv("PLATFORM_API_KEY", ""),
			TokenSecret:    getEnv("PLATFORM_TOKEN_SECRET", ""),
			Timeout:        getEnvDuration("PLATFORM_TIMEOUT", 10*time.Second),
			BundleIDs:      getEnvTierMap("PLATFORM_BUNDLE_ID"),
			PassIDs:        getEnvTierMap("PLATFORM_PASS_ID"),
			EntitlementTTL: getEnvDuration("ENTITLEMENT_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			CookieName:   getEnv("AUTH_COOKIE_NAME", "musician_uid"),
			CookieSecret: getEnv("AUTH_COOKIE_SECRET", ""),
			CookieTTL:    getEnvDuration("AUTH_COOKIE_TTL", 30*24*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvTierMap reads <prefix>_BASE, <prefix>_MID and <prefix>_TOP into a
// tier-keyed map, skipping unset entries.
func getEnvTierMap(prefix string) map[string]string {
	out := make(map[string]string)
	for _, tier := range []string{"BASE", "MID", "TOP"} {
		if value := strings.TrimSpace(os.Getenv(prefix + "_" + tier)); value != "" {
			out[tier] = value
		}
	}
	return out
}
