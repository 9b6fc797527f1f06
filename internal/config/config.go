package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	RedisURL      string
	ChairToken    string
	CORSOrigin    string
	MigrationsDir string
	ResReposDir   string
	TickInterval  time.Duration
	// Archive (optional) - closed sessions are recorded here
	ArchiveDatabaseURL string
	// Meilisearch (optional) - archived motion/resolution search
	MeiliURL       string
	MeiliMasterKey string
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8788"),
		RedisURL:      getenv("REDIS_URL", "redis://localhost:6379/0"),
		ChairToken:    getenv("GAVEL_CHAIR_TOKEN", "gavel-dev-chair"),
		CORSOrigin:    getenv("GAVEL_CORS_ORIGIN", "*"),
		MigrationsDir: getenv("GAVEL_MIGRATIONS_DIR", "./db/migrations"),
		ResReposDir:   getenv("GAVEL_RESOLUTION_REPOS_DIR", "./data/resolutions"),
		TickInterval:  time.Duration(getenvInt("GAVEL_TICK_MS", 1000)) * time.Millisecond,
		// Archive - empty by default, session archiving disabled if not configured
		ArchiveDatabaseURL: getenv("GAVEL_ARCHIVE_DATABASE_URL", ""),
		MeiliURL:           getenv("MEILI_URL", ""),
		MeiliMasterKey:     getenv("MEILI_MASTER_KEY", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
