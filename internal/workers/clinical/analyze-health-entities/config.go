package analyzehealthentities

import "time"

type Config struct {
	Timeout       time.Duration
	MaxChunkChars int
	BatchSize     int
	Language      string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       300 * time.Second,
		MaxChunkChars: 120_000, // service limit is 125k per document, keep a margin
		BatchSize:     25,      // async API limit per request
		Language:      "en",
	}
}
