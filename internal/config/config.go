package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// SettingsReloadSchedule is the cron spec used to re-read engine overrides from the database.
	SettingsReloadSchedule string
	// SeedFile is the fixture file read by cmd/seed.
	SeedFile string

	Engine EngineSettings
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	engine := EngineSettings{
		AutomaticIntervalBuckets: getEnvInt("AUTOMATIC_INTERVAL_BUCKETS", 80),
		MaxBuckets:               getEnvInt("MAX_BUCKETS", 1000),
		CombinedConcurrency:      getEnvInt("COMBINED_CONCURRENCY", 4),
		QueryTimeout:             getEnvDuration("QUERY_TIMEOUT", 30*time.Second),
		RawDefaultLimit:          getEnvInt("RAW_DEFAULT_LIMIT", 20),
		RawMaxLimit:              getEnvInt("RAW_MAX_LIMIT", 10000),
		Timezone:                 getEnv("TIMEZONE", "UTC"),
	}
	if err := engine.Normalize(); err != nil {
		return nil, err
	}

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		JWTSecret:              getEnv("JWT_SECRET", "secret"),
		MongoURI:               getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:                 getEnv("DB_NAME", "go-reports"),
		SkipAuth:               getEnv("SKIP_AUTH", "false") == "true",
		Environment:            getEnv("ENVIRONMENT", "development"),
		AppId:                  getEnv("APP_ID", "go-reports"),
		SettingsReloadSchedule: getEnv("SETTINGS_RELOAD_SCHEDULE", "@every 1m"),
		SeedFile:               getEnv("SEED_FILE", "fixtures/seed.yaml"),
		Engine:                 engine,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}
