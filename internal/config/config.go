package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPPort = "8080"
	defaultMongoURI = "mongodb://localhost:27017"
)

// AppConfig captures environment variables shared by the API service and the
// reconciliation worker.
type AppConfig struct {
	ServiceName   string
	HTTPPort      string
	MongoURI      string
	MongoDatabase string

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	IconDir       string
	IconFormats   []string
	MaxIconSizeMB float64
	MaxIconWidth  int
	MaxIconHeight int

	ReconcileInterval time.Duration
}

var (
	once sync.Once
	cfg  *AppConfig
)

// Load reads environment variables, optionally from .env files.
func Load() *AppConfig {
	once.Do(func() {
		loadEnvFiles()

		cfg = &AppConfig{
			ServiceName:       getEnv("SERVICE_NAME", "formgen"),
			HTTPPort:          getEnv("HTTP_PORT", defaultHTTPPort),
			MongoURI:          getEnv("MONGO_URI", defaultMongoURI),
			MongoDatabase:     getEnv("MONGO_DATABASE", "formgen"),
			KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
			KafkaTopic:        getEnv("KAFKA_TOPIC", "formgen-events"),
			KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "formgen-reconcilers"),
			IconDir:           getEnv("ICON_DIR", "./icons"),
			IconFormats:       splitList(getEnv("ICON_FORMATS", ".png,.jpg,.jpeg,.svg")),
			MaxIconSizeMB:     getFloat("MAX_ICON_SIZE_MB", 2),
			MaxIconWidth:      getInt("MAX_ICON_WIDTH", 512),
			MaxIconHeight:     getInt("MAX_ICON_HEIGHT", 512),
			ReconcileInterval: getDuration("RECONCILE_INTERVAL", 5*time.Minute),
		}
	})

	return cfg
}

// MustGet returns the loaded configuration or exits the process.
func MustGet() *AppConfig {
	if cfg == nil {
		log.Fatal("config not loaded")
	}
	return cfg
}

// KafkaBrokerList splits the configured broker string into addresses.
func (cfg *AppConfig) KafkaBrokerList() []string {
	if cfg == nil {
		return nil
	}
	return splitList(cfg.KafkaBrokers)
}

// IsEnvSet reports whether an environment variable was explicitly provided.
func IsEnvSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %v", key, raw, fallback)
		return fallback
	}
	return value
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %v", key, raw, fallback)
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %v", key, raw, fallback)
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func loadEnvFiles() {
	files := []string{".env"}
	if extra := os.Getenv("FORMGEN_ENV_FILES"); extra != "" {
		files = append(files, strings.Split(extra, ",")...)
	}

	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			log.Printf("config: failed to load %s: %v", file, err)
		}
	}
}
