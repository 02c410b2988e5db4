package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	API               time.Duration // Timeout for a single AWS control-plane call
	Playbook          time.Duration // Timeout for one ansible-playbook run
	Terraform         time.Duration // Timeout for terraform init/plan/apply together
	Lock              time.Duration // How long to wait for the registry index or an entity lock
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - HPCMAKER_TIMEOUT_API (default: 2m)
//   - HPCMAKER_TIMEOUT_PLAYBOOK (default: 30m)
//   - HPCMAKER_TIMEOUT_TERRAFORM (default: 60m)
//   - HPCMAKER_TIMEOUT_LOCK (default: 10s)
//   - HPCMAKER_RETRY_MAX_ATTEMPTS (default: 5)
//   - HPCMAKER_RETRY_INITIAL_DELAY (default: 2s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		API:               parseDuration("HPCMAKER_TIMEOUT_API", 2*time.Minute),
		Playbook:          parseDuration("HPCMAKER_TIMEOUT_PLAYBOOK", 30*time.Minute),
		Terraform:         parseDuration("HPCMAKER_TIMEOUT_TERRAFORM", 60*time.Minute),
		Lock:              parseDuration("HPCMAKER_TIMEOUT_LOCK", 10*time.Second),
		RetryMaxAttempts:  parseInt("HPCMAKER_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("HPCMAKER_RETRY_INITIAL_DELAY", 2*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}

	return i
}
