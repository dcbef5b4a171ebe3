package validatenoterequest

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	MaxNoteChars  int
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       10 * time.Second,
		MaxNoteChars:  1_000_000,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("maxJobsActive must be positive")
	}
	if c.MaxNoteChars <= 0 {
		return fmt.Errorf("maxNoteChars must be positive")
	}
	return nil
}
