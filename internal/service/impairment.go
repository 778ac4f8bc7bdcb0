package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netimpair/netimpair/internal/config"
	"github.com/netimpair/netimpair/internal/docker"
	"github.com/netimpair/netimpair/internal/network"
	"github.com/netimpair/netimpair/internal/types"
)

// teardownTimeout bounds the cleanup commands issued after a run ends, since
// teardown runs on a fresh context that outlives run cancellation.
const teardownTimeout = time.Minute

// Request describes one impairment run: the target interface (optionally
// inside a container's or an explicit network namespace), the flow selectors
// scoping the impairment, exactly one impairment profile, and the toggle
// schedule. Include and Exclude carry already-merged selector lists.
type Request struct {
	NIC       string
	Inbound   bool
	Include   []string
	Exclude   []string
	Docker    string
	NetnsPath string
	Emulation *types.EmulationProfile
	Rate      *types.RateProfile
	Schedule  *types.Schedule
}

// Service orchestrates one impairment run end to end: namespace resolution,
// device provisioning, the toggle loop, and teardown. Teardown runs exactly
// once per run in every exit path, including setup failure and cancellation.
type Service struct {
	config   *config.Config
	executor network.Executor
	log      logrus.FieldLogger
}

// NewService creates a service that shells out through os/exec.
func NewService(cfg *config.Config, log logrus.FieldLogger) *Service {
	return NewServiceWithExecutor(cfg, log, nil)
}

// NewServiceWithExecutor creates a service whose external commands run
// through the given executor. A nil executor selects os/exec.
func NewServiceWithExecutor(cfg *config.Config, log logrus.FieldLogger, executor network.Executor) *Service {
	if log == nil {
		log = logrus.New()
	}

	return &Service{
		config:   cfg,
		executor: executor,
		log:      log.WithField("package", "service"),
	}
}

// Run executes the request to completion. The returned error wraps one of the
// sentinel errors in internal/types so the caller can map it to an exit code.
// Cancelling ctx interrupts the run; teardown still happens before Run
// returns.
func (s *Service) Run(ctx context.Context, req Request) error {
	if (req.Emulation == nil) == (req.Rate == nil) {
		return errors.New("exactly one of the emulation and rate profiles must be set")
	}
	if req.Schedule == nil {
		return fmt.Errorf("%w: no schedule given", types.ErrInvalidSchedule)
	}

	nsPath := req.NetnsPath
	if req.Docker != "" {
		resolved, err := s.resolveContainer(ctx, req.Docker)
		if err != nil {
			return err
		}
		nsPath = resolved
	}

	if nsPath == "" {
		return s.impair(ctx, req)
	}

	netnsManager := network.NewNetnsManager(s.log)
	return netnsManager.RunInNamespace(nsPath, func() error {
		return s.impair(ctx, req)
	})
}

// resolveContainer maps a container reference to its network namespace path.
func (s *Service) resolveContainer(ctx context.Context, ref string) (string, error) {
	resolver, err := docker.NewResolver(ctx, s.log)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := resolver.Close(); closeErr != nil {
			s.log.WithError(closeErr).Debug("Failed to close Docker client")
		}
	}()

	return resolver.NetworkNamespacePath(ctx, ref)
}

// impair runs the provisioning, toggle loop, and teardown sequence inside
// whatever namespace the caller has already entered.
func (s *Service) impair(ctx context.Context, req Request) error {
	if err := network.ValidateNIC(req.NIC); err != nil {
		return err
	}

	binding := types.NewBinding(req.NIC, req.Inbound, s.config.VirtualDevice)

	include := req.Include
	if len(include) == 0 {
		include = network.DefaultIncludeSelectors()
	}

	runner := s.newRunner()
	shaper := network.NewShaper(s.log, runner)

	// Teardown gets its own context so cleanup still runs after the run
	// context is cancelled by a signal.
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		shaper.Teardown(teardownCtx, binding)
	}()

	if err := shaper.Setup(ctx, binding, include, req.Exclude); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"nic":     req.NIC,
		"device":  binding.Device(),
		"inbound": req.Inbound,
		"phases":  req.Schedule.Remaining(),
	}).Info("Network impairment active, press Ctrl-C to restore")

	controller := network.NewController(s.log, runner, nil)
	if req.Emulation != nil {
		return controller.ApplyNetem(ctx, binding, *req.Emulation, req.Schedule)
	}
	return controller.ApplyRate(ctx, binding, *req.Rate, req.Schedule)
}

func (s *Service) newRunner() *network.Runner {
	if s.executor == nil {
		return network.NewRunner(s.log, s.config.CommandTimeout)
	}
	return network.NewRunnerWithExecutor(s.log, s.config.CommandTimeout, s.executor)
}
