package queryclinicalrecords

import "time"

type Config struct {
	Timeout    time.Duration
	IndexName  string
	MaxResults int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		IndexName:  "clinical-summaries",
		MaxResults: 20,
	}
}
