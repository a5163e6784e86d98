// Package worker runs daily route optimization in the background: on a daily
// schedule and on demand from Pub/Sub messages.
package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the worker process.
type Config struct {
	// RunAt is the local wall-clock time of the daily run, as HH:MM.
	// Default: 05:00
	RunAt string

	// SchedulerEnabled turns the daily run on.
	// Default: true
	SchedulerEnabled bool

	// RunTimeout bounds a single run.
	// Default: 10 minutes
	RunTimeout time.Duration

	// RedisURL enables the cross-replica run lock when set.
	RedisURL string

	// LockTTL is how long a replica holds the lock for a date.
	// Default: 20 hours
	LockTTL time.Duration

	// PubSubProjectID and PubSubSubscription enable on-demand runs when both are set.
	PubSubProjectID    string
	PubSubSubscription string
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		RunAt:            "05:00",
		SchedulerEnabled: true,
		RunTimeout:       10 * time.Minute,
		LockTTL:          20 * time.Hour,
	}
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	def := DefaultConfig()

	enabled, err := strconv.ParseBool(getEnvOrDefault("SCHEDULER_ENABLED", "true"))
	if err != nil {
		enabled = def.SchedulerEnabled
	}
	timeout, err := time.ParseDuration(getEnvOrDefault("RUN_TIMEOUT", def.RunTimeout.String()))
	if err != nil {
		timeout = def.RunTimeout
	}
	ttl, err := time.ParseDuration(getEnvOrDefault("RUN_LOCK_TTL", def.LockTTL.String()))
	if err != nil {
		ttl = def.LockTTL
	}

	return Config{
		RunAt:              getEnvOrDefault("RUN_AT", def.RunAt),
		SchedulerEnabled:   enabled,
		RunTimeout:         timeout,
		RedisURL:           os.Getenv("REDIS_URL"),
		LockTTL:            ttl,
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}
}

// PubSubEnabled reports whether on-demand runs are configured.
func (c Config) PubSubEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubSubscription != ""
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses an HH:MM time of day.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Next returns the first occurrence of c strictly after now, in now's location.
func (c ClockTime) Next(now time.Time) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, c.Hour, c.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, c.Hour, c.Minute, 0, 0, now.Location())
	}
	return next
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
