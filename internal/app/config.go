package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectPath string            // project file to analyze
	Properties  map[string]string // global properties seeded into evaluation

	LogFormat       string
	LogLevel        string
	Watch           bool
	FailOnUnused    bool
	ClosedCacheSize int
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if cfg.ClosedCacheSize <= 0 {
		cfg.ClosedCacheSize = 16
	}
	return &cfg, nil
}
