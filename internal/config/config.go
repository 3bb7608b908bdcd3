// Package config holds the small set of process-wide tunables, overridable
// from the environment.
package config

import (
	"os"
	"strconv"
)

// Config carries the server port range and the batch registry's bounds.
type Config struct {
	PortMin            int
	PortMax            int
	BatchMaxJobs       int
	BatchMaxAgeSeconds int
}

// Default is the configuration loaded at process start.
var Default = Load()

// Load builds a Config from defaults, overridden by environment variables
// (APLTESTGEN_PORT_MIN, APLTESTGEN_PORT_MAX, APLTESTGEN_BATCH_MAX_JOBS,
// APLTESTGEN_BATCH_MAX_AGE_SECONDS) when present.
func Load() Config {
	return Config{
		PortMin:            envInt("APLTESTGEN_PORT_MIN", 18100),
		PortMax:            envInt("APLTESTGEN_PORT_MAX", 18200),
		BatchMaxJobs:       envInt("APLTESTGEN_BATCH_MAX_JOBS", 50),
		BatchMaxAgeSeconds: envInt("APLTESTGEN_BATCH_MAX_AGE_SECONDS", 3600),
	}
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
