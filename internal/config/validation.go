package config

import (
	"errors"
	"fmt"
)

// Validate rejects configuration values no run could work with.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %s", c.CommandTimeout)
	}

	if c.VirtualDevice == "" {
		return errors.New("virtual_device cannot be empty")
	}

	return nil
}

// MergeExclude appends command-line exclude selectors to the configured
// seed. The seed always survives the merge, so adding exclusions on the
// command line cannot drop the built-in SSH exclusion.
func (c *Config) MergeExclude(cli []string) []string {
	merged := make([]string, 0, len(c.Exclude)+len(cli))
	merged = append(merged, c.Exclude...)
	merged = append(merged, cli...)
	return merged
}
