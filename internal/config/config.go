package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Defaults applied when the config file and environment leave a key unset.
const (
	// DefaultLogLevel is the logging level used when none is configured
	DefaultLogLevel = "info"
	// DefaultCommandTimeout bounds a single tc/ip/modprobe invocation
	DefaultCommandTimeout = 30 * time.Second
	// DefaultVirtualDevice is the IFB device used for inbound impairment
	DefaultVirtualDevice = "ifb1"
)

// DefaultExcludeSelectors returns the built-in exclusion seed: SSH in both
// directions, so an impairment run cannot sever the operator's own session.
func DefaultExcludeSelectors() []string {
	return []string{"dport=22", "sport=22"}
}

// Config represents the runtime configuration for netimpair
type Config struct {
	// LogLevel specifies the logging level (debug, info, warn, error)
	LogLevel string `mapstructure:"log_level"`
	// CommandTimeout bounds each external tc/ip/modprobe invocation
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	// VirtualDevice names the IFB device used for inbound impairment
	VirtualDevice string `mapstructure:"virtual_device"`
	// Exclude is the seed list of flow selectors kept free of impairment;
	// selectors given on the command line are appended to it
	Exclude []string `mapstructure:"exclude"`
}

// Load reads configuration from a YAML file plus environment overrides using
// viper. An empty path searches for netimpair.yaml in the working directory
// and its absence simply yields the defaults; an explicit path that cannot
// be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("command_timeout", DefaultCommandTimeout)
	v.SetDefault("virtual_device", DefaultVirtualDevice)
	v.SetDefault("exclude", DefaultExcludeSelectors())

	v.AutomaticEnv() // read in environment variables that match

	if path != "" {
		// Use config file from the flag.
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		logrus.WithField("config", v.ConfigFileUsed()).Info("Using config file")
	} else {
		// Search config in current directory with name "netimpair" (without extension).
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("netimpair")
		if err := v.ReadInConfig(); err == nil {
			logrus.WithField("config", v.ConfigFileUsed()).Info("Using config file")
		} else {
			// No config file found, that's okay - we'll use defaults
			logrus.Debug("No config file found, using defaults")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}
