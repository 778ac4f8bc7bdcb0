package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netimpair/netimpair/internal/config"
	"github.com/netimpair/netimpair/internal/service"
	"github.com/netimpair/netimpair/internal/types"
)

// runImpairment is the shared path behind the netem and rate subcommands:
// privilege and flag checks, configuration loading, signal wiring, and the
// hand-off to the service.
func runImpairment(cmd *cobra.Command, emulation *types.EmulationProfile, rate *types.RateProfile, toggle []int) error {
	// Before any state-mutating action; tc and ip refuse unprivileged
	// callers anyway, but failing here gives a clear error and exit code.
	if os.Geteuid() != 0 {
		return fmt.Errorf("%w: netimpair must run as root to modify traffic control state", types.ErrRootRequired)
	}

	if dockerRef != "" && netnsPath != "" {
		return errors.New("--docker and --netns are mutually exclusive")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The config file's log level applies unless the flag overrode it.
	if !cmd.Flags().Changed("log-level") {
		if level, parseErr := logrus.ParseLevel(cfg.LogLevel); parseErr == nil {
			logrus.SetLevel(level)
		}
	}

	schedule, err := types.NewSchedule(toggle)
	if err != nil {
		return err
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	go handleSignals(cancel)

	logrus.WithFields(logrus.Fields{
		"nic":     nic,
		"inbound": inbound,
		"phases":  schedule.Len(),
	}).Info("Starting netimpair")

	svc := service.NewService(cfg, logrus.StandardLogger())
	return svc.Run(ctx, service.Request{
		NIC:       nic,
		Inbound:   inbound,
		Include:   includes,
		Exclude:   cfg.MergeExclude(excludes),
		Docker:    dockerRef,
		NetnsPath: netnsPath,
		Emulation: emulation,
		Rate:      rate,
		Schedule:  schedule,
	})
}

// handleSignals cancels the run context on SIGINT or SIGTERM. The service
// reacts by aborting its current phase and tearing the configuration down.
func handleSignals(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logrus.WithField("signal", sig.String()).Info("Received shutdown signal, restoring network configuration")

	// Cancel the context to trigger teardown
	cancel()
}
