// internal/workers/matching/match-opportunity/config.go
package matchopportunity

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Fan-out over the whole profile base; generous job-level timeout.
		Timeout: 120 * time.Second,
	}
}
