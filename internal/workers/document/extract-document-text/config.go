package extractdocumenttext

import "time"

type Config struct {
	Timeout      time.Duration
	CacheEnabled bool
	CacheTTL     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      120 * time.Second,
		CacheEnabled: true,
		CacheTTL:     24 * time.Hour,
	}
}
