package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string            //nolint:gochecknoglobals
	logLevel  string            //nolint:gochecknoglobals
	nic       string            //nolint:gochecknoglobals
	inbound   bool              //nolint:gochecknoglobals
	includes  []string          //nolint:gochecknoglobals
	excludes  []string          //nolint:gochecknoglobals
	dockerRef string            //nolint:gochecknoglobals
	netnsPath string            //nolint:gochecknoglobals
	rootCmd   = &cobra.Command{ //nolint:gochecknoglobals
		Use:   "netimpair",
		Short: "Network impairment tool for Linux",
		Long: `netimpair injects packet loss, delay, jitter, duplication, reordering,
and rate limits on a network interface using tc and netem, optionally scoped
to specific flows and toggled on and off on a timed schedule. The
configuration is removed again on exit, on error, and on SIGINT/SIGTERM.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}
	return nil
}

func init() { //nolint:gochecknoinits
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is netimpair.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&nic, "nic", "n", "", "network interface to impair (required)")
	rootCmd.PersistentFlags().BoolVar(&inbound, "inbound", false, "impair inbound traffic through an IFB redirect instead of outbound")
	rootCmd.PersistentFlags().StringArrayVar(&includes, "include", nil, "flow selector to impair, e.g. dst=10.0.0.5,dport=80 (repeatable; default is all traffic)")
	rootCmd.PersistentFlags().StringArrayVar(&excludes, "exclude", nil, "flow selector to keep unimpaired, added to the configured seed (repeatable)")
	rootCmd.PersistentFlags().StringVar(&dockerRef, "docker", "", "run inside the named container's network namespace")
	rootCmd.PersistentFlags().StringVar(&netnsPath, "netns", "", "run inside the network namespace at this path")

	cobra.CheckErr(rootCmd.MarkPersistentFlagRequired("nic"))

	// Setup logging
	cobra.OnInitialize(setupLogging)
}

// setupLogging configures logrus based on the log level flag
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.WithError(err).WithField("level", logLevel).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
