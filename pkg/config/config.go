package config

import (
	"os"
	"strconv"
	"time"
)

// Config gathers the environment settings the server and engine read.
type Config struct {
	Port string

	EngineWorkers      int
	RunTimeout         time.Duration
	SweepEvery         time.Duration
	AutoAssignLeadDays int
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port:               get("PORT", "8000"),
		EngineWorkers:      getInt("ENGINE_WORKERS", 2),
		RunTimeout:         time.Duration(getInt("RUN_TIMEOUT_SECONDS", 120)) * time.Second,
		SweepEvery:         time.Duration(getInt("SWEEP_SECONDS", 60)) * time.Second,
		AutoAssignLeadDays: getInt("SHIFTS_ASSIGNED_DAYS_BEFORE_START", 4),
	}
}
