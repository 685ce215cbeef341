package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	RelayURL string

	CellResolution            int
	CollectionIntervalSeconds int
	AutoPublish               bool

	MinBreadcrumbsPerEpoch int
	EpochBlockSize         int

	MinBreadcrumbsForHandle    int
	MinTrustForHandle          float64
	MinAccountAgeDaysForHandle int
	MinUniqueCellsForHandle    int
	PolicyPath                 string

	TrustScoreTTLSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                   addr,
		PostgresDSN:                os.Getenv("POSTGRES_DSN"),
		LogLevel:                   envDefault("LOG_LEVEL", "info"),
		RelayURL:                   os.Getenv("RELAY_URL"),
		CellResolution:             envIntDefault("CELL_RESOLUTION", 7),
		CollectionIntervalSeconds:  envIntDefault("COLLECTION_INTERVAL_SECONDS", 300),
		AutoPublish:                envBoolDefault("AUTO_PUBLISH", false),
		MinBreadcrumbsPerEpoch:     envIntDefault("MIN_BREADCRUMBS_PER_EPOCH", 100),
		EpochBlockSize:             envIntDefault("EPOCH_BLOCK_SIZE", 10),
		MinBreadcrumbsForHandle:    envIntDefault("MIN_BREADCRUMBS_FOR_HANDLE", 100),
		MinTrustForHandle:          envFloatDefault("MIN_TRUST_FOR_HANDLE", 20.0),
		MinAccountAgeDaysForHandle: envIntDefault("MIN_ACCOUNT_AGE_DAYS_FOR_HANDLE", 7),
		MinUniqueCellsForHandle:    envIntDefault("MIN_UNIQUE_CELLS_FOR_HANDLE", 10),
		PolicyPath:                 os.Getenv("CLAIM_POLICY_PATH"),
		TrustScoreTTLSeconds:       envIntDefault("TRUST_SCORE_TTL_SECONDS", 300),
		RateLimitRequests:          envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:     envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:           envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		RedisPassword:              os.Getenv("REDIS_PASSWORD"),
		RedisDB:                    envIntDefault("REDIS_DB", 0),
	}
}

func (c Config) CollectionInterval() time.Duration {
	return time.Duration(c.CollectionIntervalSeconds) * time.Second
}

func (c Config) TrustScoreTTL() time.Duration {
	return time.Duration(c.TrustScoreTTLSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
