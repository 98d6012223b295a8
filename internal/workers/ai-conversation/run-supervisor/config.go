package runsupervisor

import "time"

type Config struct {
	// Timeout bounds a whole run: two specialist tiers plus synthesis.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 180 * time.Second,
	}
}
