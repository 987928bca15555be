package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvValidationRulesFile         = "CLEARANCE_VALIDATION_RULES_FILE"
	EnvValidationRequirementsFile  = "CLEARANCE_VALIDATION_REQUIREMENTS_FILE"
	EnvValidationBatchConcurrency  = "CLEARANCE_VALIDATION_BATCH_CONCURRENCY"
	EnvValidationOverrideMinReason = "CLEARANCE_VALIDATION_OVERRIDE_MIN_REASON"
)

// ValidationConfig holds rule engine and override settings. Empty file
// paths select the embedded rule set and requirements table.
type ValidationConfig struct {
	RulesFile         string `toml:"rules_file"`
	RequirementsFile  string `toml:"requirements_file"`
	BatchConcurrency  int    `toml:"batch_concurrency"`
	OverrideMinReason int    `toml:"override_min_reason"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ValidationConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ValidationConfig) Merge(overlay *ValidationConfig) {
	if overlay.RulesFile != "" {
		c.RulesFile = overlay.RulesFile
	}
	if overlay.RequirementsFile != "" {
		c.RequirementsFile = overlay.RequirementsFile
	}
	if overlay.BatchConcurrency != 0 {
		c.BatchConcurrency = overlay.BatchConcurrency
	}
	if overlay.OverrideMinReason != 0 {
		c.OverrideMinReason = overlay.OverrideMinReason
	}
}

func (c *ValidationConfig) loadDefaults() {
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = 4
	}
	if c.OverrideMinReason == 0 {
		c.OverrideMinReason = 5
	}
}

func (c *ValidationConfig) loadEnv() {
	if v := os.Getenv(EnvValidationRulesFile); v != "" {
		c.RulesFile = v
	}
	if v := os.Getenv(EnvValidationRequirementsFile); v != "" {
		c.RequirementsFile = v
	}
	if v := os.Getenv(EnvValidationBatchConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchConcurrency = n
		}
	}
	if v := os.Getenv(EnvValidationOverrideMinReason); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.OverrideMinReason = n
		}
	}
}

func (c *ValidationConfig) validate() error {
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be positive: %d", c.BatchConcurrency)
	}
	if c.OverrideMinReason < 1 {
		return fmt.Errorf("override_min_reason must be positive: %d", c.OverrideMinReason)
	}
	for _, path := range []string{c.RulesFile, c.RequirementsFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("invalid file %s: %w", path, err)
		}
	}
	return nil
}
