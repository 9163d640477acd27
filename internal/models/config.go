package models

// Config represents the extraction service configuration
type Config struct {
	// Default currency assumed when the extractor found none
	DefaultCurrency string `yaml:"default_currency"`

	// Review holds the manual-review routing thresholds
	Review ReviewConfig `yaml:"review"`

	// Logging config
	Logging LoggingConfig `yaml:"logging"`
}

// ReviewConfig controls when a finalized result is routed to a human
type ReviewConfig struct {
	// MinConfidence is the overall confidence below which a document
	// needs manual review (default: 0.6)
	MinConfidence float64 `yaml:"min_confidence"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// ApplyDefaults fills unset configuration values
func (c *Config) ApplyDefaults() {
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "USD"
	}
	if c.Review.MinConfidence <= 0 {
		c.Review.MinConfidence = 0.6
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
