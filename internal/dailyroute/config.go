package dailyroute

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultTimeZone is the zone in which "today" is evaluated.
const DefaultTimeZone = "Africa/Johannesburg"

// Config holds environment-driven settings for daily runs.
type Config struct {
	// TimeZone is the IANA name of the reference zone.
	TimeZone string

	// DepotsFile is the path of the YAML depot list.
	DepotsFile string

	// Profile is the solver routing profile.
	Profile string

	// SolverAPIKey authenticates against the hosted solver.
	SolverAPIKey string

	// SolverBaseURL points at a self-hosted solver. Empty means the hosted API.
	SolverBaseURL string

	// SolverTimeout bounds a single solver call.
	SolverTimeout time.Duration

	// SolverRequestsPerSecond caps solver calls. Zero disables the cap.
	SolverRequestsPerSecond float64

	// SolverMaxAttempts bounds calls per run, the first one included.
	SolverMaxAttempts uint64

	// SolverRetryAmbiguous retries solver failures that may have been processed.
	SolverRetryAmbiguous bool
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		TimeZone:   getEnvOrDefault("APP_TIME_ZONE", DefaultTimeZone),
		DepotsFile: getEnvOrDefault("DEPOTS_FILE", "config/depots.yaml"),
		Profile:    getEnvOrDefault("ORS_PROFILE", "driving-car"),

		SolverAPIKey:            os.Getenv("ORS_API_KEY"),
		SolverBaseURL:           os.Getenv("ORS_BASE_URL"),
		SolverTimeout:           getDurationOrDefault("ORS_TIMEOUT", 0),
		SolverRequestsPerSecond: getFloatOrDefault("ORS_REQUESTS_PER_SECOND", 0),
		SolverMaxAttempts:       getUintOrDefault("ORS_MAX_ATTEMPTS", 3),
		SolverRetryAmbiguous:    getBoolOrDefault("ORS_RETRY_AMBIGUOUS", false),
	}
}

// Location loads the configured reference zone.
func (c Config) Location() (*time.Location, error) {
	name := c.TimeZone
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getUintOrDefault(key string, defaultValue uint64) uint64 {
	if n, err := strconv.ParseUint(os.Getenv(key), 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f >= 0 {
		return f
	}
	return defaultValue
}
